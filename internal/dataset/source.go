package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source loads the full record set from somewhere external.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Record, error)
}

// Open picks a source from a location string:
//
//	""                    no records
//	file.json             JSON array in the /api/yield-data shape
//	file.xlsx             first sheet of a workbook, header row first
//	file.csv, .parquet    read through DuckDB
//	duckdb:<table>        an existing DuckDB table
//
// db is only required by the DuckDB-backed forms.
func Open(location string, db *sql.DB) (Source, error) {
	if location == "" {
		return emptySource{}, nil
	}
	if table, ok := strings.CutPrefix(location, "duckdb:"); ok {
		if db == nil {
			return nil, fmt.Errorf("dataset %q: database not available", location)
		}
		return NewDuckDBTable(db, table), nil
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".json", ".geojson":
		return NewJSONFile(location), nil
	case ".xlsx":
		return NewXLSXFile(location), nil
	case ".csv", ".parquet", ".geoparquet":
		if db == nil {
			return nil, fmt.Errorf("dataset %q: database not available", location)
		}
		return NewDuckDBFile(db, location), nil
	default:
		return nil, fmt.Errorf("dataset %q: unsupported file type", location)
	}
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }

func (emptySource) Load(context.Context) ([]Record, error) { return nil, nil }

var (
	unitSuffix = regexp.MustCompile(`\([^)]*\)`)
	nonWord    = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalizeColumn turns headers like "Yield Gap (%)" or "crop__name" into
// the canonical snake_case key.
func normalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "(%)", " percent")
	s = unitSuffix.ReplaceAllString(s, " ")
	s = nonWord.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// columnAliases maps normalized headers to canonical record fields.
var columnAliases = map[string]string{
	"id":                      "id",
	"boundary_name":           "boundary_name",
	"region":                  "boundary_name",
	"name":                    "boundary_name",
	"province":                "boundary_name",
	"boundary_code":           "boundary_code",
	"code":                    "boundary_code",
	"crop_name":               "crop_name",
	"crop":                    "crop_name",
	"year":                    "year",
	"actual_yield":            "actual_yield",
	"potential_yield":         "potential_yield",
	"yield_gap":               "yield_gap",
	"yield_gap_percent":       "yield_gap_percent",
	"water_gap":               "water_gap",
	"nutrient_gap":            "nutrient_gap",
	"management_gap":          "management_gap",
	"fertilizer_response_gap": "fertilizer_response_gap",
	"data_source":             "data_source",
	"geometry":                "geometry",
	"geometry_json":           "geometry",
}

// assign sets the field named by a raw column header from a loosely typed value.
// Unknown columns are ignored.
func assign(r *Record, column string, v any) error {
	field, ok := columnAliases[normalizeColumn(column)]
	if !ok || v == nil {
		return nil
	}

	switch field {
	case "id":
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("%s: %w", column, err)
		}
		r.ID = n
	case "year":
		n, err := toInt(v)
		if err != nil {
			return fmt.Errorf("%s: %w", column, err)
		}
		r.Year = n
	case "boundary_name":
		r.BoundaryName = toString(v)
	case "boundary_code":
		r.BoundaryCode = toString(v)
	case "crop_name":
		r.CropName = toString(v)
	case "data_source":
		r.DataSource = toString(v)
	case "geometry":
		r.Geometry = toString(v)
	default:
		f, ok, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("%s: %w", column, err)
		}
		if !ok {
			return nil
		}
		switch field {
		case "actual_yield":
			r.ActualYield = Float(f)
		case "potential_yield":
			r.PotentialYield = Float(f)
		case "yield_gap":
			r.YieldGap = Float(f)
		case "yield_gap_percent":
			r.YieldGapPct = Float(f)
		case "water_gap":
			r.WaterGap = Float(f)
		case "nutrient_gap":
			r.NutrientGap = Float(f)
		case "management_gap":
			r.ManagementGap = Float(f)
		case "fertilizer_response_gap":
			r.FertilizerGap = Float(f)
		}
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int8:
		return int(t), nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case uint8:
		return int(t), nil
	case uint16:
		return int(t), nil
	case uint32:
		return int(t), nil
	case uint64:
		return int(t), nil
	case float32:
		return int(t), nil
	case float64:
		return int(t), nil
	}
	s := toString(v)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// toFloat returns ok=false for empty or NaN cells.
func toFloat(v any) (float64, bool, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		n, _ := toInt(t)
		f = float64(n)
	default:
		s := toString(v)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", s)
		}
		f = parsed
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}
