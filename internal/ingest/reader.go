package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
)

// rowSource yields raw rows, header first; io.EOF ends the stream.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

type csvRows struct {
	r *csv.Reader
}

func (c csvRows) Next() ([]string, error) { return c.r.Read() }

func (csvRows) Close() error { return nil }

// Reader streams records from a tabular export with a header row.
type Reader struct {
	rows rowSource
	keys []string
	raw  []string
}

// workbookExtensions are the Office Open XML formats the workbook reader
// understands.
var workbookExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

var zipSignature = []byte("PK\x03\x04")

// NewReaderFor picks a reader for source: workbooks are recognized by their
// extension or zip signature, anything else is read as CSV.
func NewReaderFor(source string, r io.Reader) (*Reader, error) {
	ext := strings.ToLower(path.Ext(source))
	if ext == ".xls" {
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx or .csv", domain.ErrInvalidIngestSource)
	}

	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zipSignature))
	if workbookExtensions[ext] || bytes.Equal(head, zipSignature) {
		return NewExcelReader(br)
	}
	return NewReader(br)
}

// NewReader reads a CSV export.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return newReader(csvRows{r: cr})
}

func newReader(rows rowSource) (*Reader, error) {
	header, err := rows.Next()
	if err != nil {
		_ = rows.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = CleanKey(h)
	}
	return &Reader{rows: rows, keys: keys, raw: header}, nil
}

// Columns returns the cleaned metadata keys.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.keys...)
}

// RawColumns returns the header as found in the file.
func (r *Reader) RawColumns() []string {
	return append([]string(nil), r.raw...)
}

// Next returns the next record or io.EOF.
func (r *Reader) Next() (Record, error) {
	row, err := r.rows.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read row: %w", err)
	}
	return BuildRecord(r.keys, row), nil
}

// Close releases the workbook, if any. The underlying io.Reader is left to
// the caller.
func (r *Reader) Close() error {
	return r.rows.Close()
}
