// Package canon canonicalizes domain names. It strips organizational or
// public suffixes using a longest-match rule and deduplicates domain lists
// into sorted, lowercase sets.
package canon

import (
	"bufio"
	"cmp"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SuffixSet is a list of suffixes ordered longest-first, so the most
// specific suffix is tried before a shorter one that it ends with.
// Build one with NewSuffixSet or LoadSuffixes; a hand-built slice must keep
// that order.
type SuffixSet []string

// NewSuffixSet normalizes suffixes (trim, lowercase, drop empty and repeated
// entries) and orders them by descending length. Suffixes of equal length
// are ordered lexicographically so the set is deterministic.
func NewSuffixSet(suffixes []string) SuffixSet {
	seen := make(map[string]struct{}, len(suffixes))
	out := make(SuffixSet, 0, len(suffixes))
	for _, s := range suffixes {
		s = Normalize(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// LoadSuffixes reads a newline-delimited suffix list.
func LoadSuffixes(r io.Reader) (SuffixSet, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	return NewSuffixSet(lines), nil
}

// LoadSuffixFile reads the suffix list stored at path.
func LoadSuffixFile(path string) (SuffixSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSuffixes(f)
}

// Canonicalize lowercases domain and removes the first suffix in s that it
// ends with. Since s is ordered longest-first, the longest match wins and no
// further suffix is tried. A domain equal to a suffix yields "".
func (s SuffixSet) Canonicalize(domain string) string {
	domain = Normalize(domain)
	for _, suffix := range s {
		if strings.HasSuffix(domain, suffix) {
			return domain[:len(domain)-len(suffix)]
		}
	}
	return domain
}

// Canonicalize is the function form of SuffixSet.Canonicalize.
func Canonicalize(domain string, suffixes SuffixSet) string {
	return suffixes.Canonicalize(domain)
}

// Clean canonicalizes every non-blank domain against suffixes and returns the
// unique results in lexicographic order. With an empty suffix set this is
// the dedup-only mode.
func Clean(domains []string, suffixes SuffixSet) []string {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if strings.TrimSpace(d) == "" {
			continue
		}
		set[suffixes.Canonicalize(d)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Dedup lowercases and deduplicates domains without stripping suffixes.
func Dedup(domains []string) []string {
	return Clean(domains, nil)
}

// Normalize trims surrounding whitespace and lowercases s.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// ReadLines returns every line of r with its line terminator removed.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadLinesFile reads the lines of the file at path.
func ReadLinesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}

// WriteLines writes each value followed by a newline.
func WriteLines(w io.Writer, values []string) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		if _, err := bw.WriteString(v); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
