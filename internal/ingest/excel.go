package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/xuri/excelize/v2"
)

// excelRows streams the first worksheet of a workbook. Cells come back with
// their display formatting, so dates read the way the spreadsheet shows them.
type excelRows struct {
	file *excelize.File
	rows *excelize.Rows
}

func (e *excelRows) Next() ([]string, error) {
	if !e.rows.Next() {
		if err := e.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return e.rows.Columns()
}

func (e *excelRows) Close() error {
	return errors.Join(e.rows.Close(), e.file.Close())
}

// NewExcelReader reads the first sheet of an .xlsx workbook; its first row
// is the header.
func NewExcelReader(r io.Reader) (*Reader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", domain.ErrInvalidIngestSource, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidIngestSource)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newReader(&excelRows{file: f, rows: rows})
}
