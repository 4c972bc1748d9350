package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// DuckDB reads records with a SQL query against DuckDB. Column names are
// mapped the same way as spreadsheet headers.
type DuckDB struct {
	db    *sql.DB
	name  string
	query string
}

// NewDuckDBTable reads every row of a table.
func NewDuckDBTable(db *sql.DB, table string) *DuckDB {
	return &DuckDB{
		db:    db,
		name:  table,
		query: fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(table, `"`, `""`)),
	}
}

// NewDuckDBFile reads a CSV or Parquet file through DuckDB's readers.
func NewDuckDBFile(db *sql.DB, path string) *DuckDB {
	reader := "read_csv_auto"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".geoparquet":
		reader = "read_parquet"
	}
	return &DuckDB{
		db:    db,
		name:  filepath.Base(path),
		query: fmt.Sprintf("SELECT * FROM %s('%s')", reader, strings.ReplaceAll(path, "'", "''")),
	}
}

// Name returns the table or file name.
func (s *DuckDB) Name() string {
	return s.name
}

// Load runs the query and converts each row.
func (s *DuckDB) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 0
	for rows.Next() {
		line++
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		var rec Record
		var rowErr error
		for i, col := range columns {
			if err := assign(&rec, col, values[i]); err != nil {
				rowErr = err
				break
			}
		}
		if rowErr != nil {
			log.Printf("[dataset] %s row %d skipped: %v", s.name, line, rowErr)
			continue
		}
		if rec.BoundaryName == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
