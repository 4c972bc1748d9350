package dataset

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// XLSXFile reads records from the first sheet of an Excel workbook. The first
// row holds the headers; CSV-export headers such as "Yield Gap (%)" are understood.
type XLSXFile struct {
	path  string
	sheet string
}

// NewXLSXFile creates an Excel source reading the first sheet.
func NewXLSXFile(path string) *XLSXFile {
	return &XLSXFile{path: path}
}

// WithSheet selects a sheet by name.
func (s *XLSXFile) WithSheet(sheet string) *XLSXFile {
	s.sheet = sheet
	return s
}

// Name returns the file name.
func (s *XLSXFile) Name() string {
	return filepath.Base(s.path)
}

// Load reads every data row. Rows that fail to convert are skipped and logged.
func (s *XLSXFile) Load(ctx context.Context) ([]Record, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", s.Name())
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", s.Name(), sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec Record
		var rowErr error
		for col, cell := range row {
			if col >= len(header) {
				break
			}
			if err := assign(&rec, header[col], cell); err != nil {
				rowErr = err
				break
			}
		}
		if rowErr != nil {
			log.Printf("[dataset] %s row %d skipped: %v", s.Name(), i+2, rowErr)
			continue
		}
		if rec.BoundaryName == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
