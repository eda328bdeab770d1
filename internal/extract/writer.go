package extract

import (
	"encoding/csv"
	"io"
	"iter"
	"os"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// WriteCSV writes records as a normalized CSV with domain.CSVHeader and
// returns the number of data rows written.
func WriteCSV(w io.Writer, records iter.Seq[domain.UserRecord]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CSVHeader); err != nil {
		return 0, err
	}
	n := 0
	for rec := range records {
		if err := cw.Write(rec.CSVRow()); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// WriteCSVFile creates (or truncates) path and writes records to it.
func WriteCSVFile(path string, records iter.Seq[domain.UserRecord]) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, records)
}
