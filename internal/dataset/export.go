package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader is the column row of the CSV export.
var CSVHeader = []string{
	"Region", "Crop", "Year",
	"Actual Yield (t/ha)", "Potential Yield (t/ha)",
	"Yield Gap (t/ha)", "Yield Gap (%)", "Data Source",
}

// WriteCSV writes records in export format. Missing values are empty cells.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.BoundaryName,
			r.CropName,
			strconv.Itoa(r.Year),
			formatCell(r.ActualYield),
			formatCell(r.PotentialYield),
			formatCell(r.YieldGap),
			formatCell(r.YieldGapPct),
			r.DataSource,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(value(p), 'f', -1, 64)
}
