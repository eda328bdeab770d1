// Package utils holds small helpers shared by the service and HTTP layers.
package utils

import "strconv"

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Bounds fixes the size a page falls back to and the largest size allowed.
type Bounds struct {
	DefaultSize int
	MaxSize     int
}

// DefaultBounds are the directory API's paging limits.
var DefaultBounds = Bounds{DefaultSize: 20, MaxSize: 100}

// Parse reads a page from query values. Empty or malformed values fall back
// to page 1 and the default size before clamping.
func (b Bounds) Parse(number, size string) Page {
	return b.Clamp(Page{
		Number: atoiOr(number, 1),
		Size:   atoiOr(size, b.DefaultSize),
	})
}

// Clamp moves p into range: Number >= 1, and Size within [1, MaxSize] with
// non-positive sizes replaced by the default.
func (b Bounds) Clamp(p Page) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = b.DefaultSize
	}
	if p.Size < 1 {
		p.Size = DefaultBounds.DefaultSize
	}
	if b.MaxSize > 0 && p.Size > b.MaxSize {
		p.Size = b.MaxSize
	}
	return p
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages is the page count needed for total rows.
func (p Page) TotalPages(total int64) int {
	if total <= 0 || p.Size <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether rows remain after p.
func (p Page) HasNext(total int64) bool {
	return p.Number < p.TotalPages(total)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
