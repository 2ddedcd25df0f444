// Package source reads lookup requests from tabular input.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/desertthunder/isrcx/internal/shared"
	"github.com/desertthunder/isrcx/internal/tasks"
)

// DefaultColumn is the identifier column used when none is configured.
const DefaultColumn = "ISRC"

const utf8BOM = "\ufeff"

// CSV is a restartable identifier source backed by a file with a header row.
// Each call to [CSV.Requests] re-opens the file.
type CSV struct {
	Path   string
	Column string // matched case-insensitively
}

// NewCSV creates a source over path reading column.
func NewCSV(path, column string) *CSV {
	if column == "" {
		column = DefaultColumn
	}
	return &CSV{Path: path, Column: column}
}

// Columns returns the header row.
func (c *CSV) Columns() ([]string, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	defer f.Close()
	return ReadColumns(f)
}

// Count returns the number of data rows.
func (c *CSV) Count() (int, error) {
	n := 0
	for _, err := range c.Requests() {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Requests yields one request per data row in file order.
// Open and header errors are yielded once, then the sequence ends.
func (c *CSV) Requests() iter.Seq2[tasks.LookupRequest, error] {
	return func(yield func(tasks.LookupRequest, error) bool) {
		f, err := os.Open(c.Path)
		if err != nil {
			yield(tasks.LookupRequest{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
		defer f.Close()

		for req, err := range Requests(f, c.Column) {
			if !yield(req, err) || err != nil {
				return
			}
		}
	}
}

// ReadColumns reads the header row of r.
func ReadColumns(r io.Reader) ([]string, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return cleanHeader(header), nil
}

// Requests streams column from r. Rows too short to hold the column yield an
// empty identifier. Values are trimmed of surrounding whitespace.
func Requests(r io.Reader, column string) iter.Seq2[tasks.LookupRequest, error] {
	return func(yield func(tasks.LookupRequest, error) bool) {
		cr := newReader(r)

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			yield(tasks.LookupRequest{}, fmt.Errorf("%w: empty file", shared.ErrInvalidInput))
			return
		}
		if err != nil {
			yield(tasks.LookupRequest{}, fmt.Errorf("read header: %w", err))
			return
		}

		header = cleanHeader(header)
		idx := columnIndex(header, column)
		if idx < 0 {
			yield(tasks.LookupRequest{}, fmt.Errorf("%w: %q not in %v", shared.ErrMissingColumn, column, header))
			return
		}

		for row := 1; ; row++ {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(tasks.LookupRequest{}, fmt.Errorf("read row %d: %w", row, err))
				return
			}

			var id string
			if idx < len(rec) {
				id = strings.TrimSpace(rec[idx])
			}
			if !yield(tasks.LookupRequest{Row: row, Identifier: id}, nil) {
				return
			}
		}
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		out[i] = strings.TrimSpace(col)
	}
	return out
}

func columnIndex(header []string, column string) int {
	column = strings.TrimSpace(column)
	for i, col := range header {
		if strings.EqualFold(col, column) {
			return i
		}
	}
	return -1
}
