// Package db opens the embedded DuckDB database the dataset sources and the
// SQL endpoints share.
package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	// DataDir holds duckdb/<DBName>.duckdb. Empty opens an in-memory database.
	DataDir string
	DBName  string
	// Extensions are installed and loaded best effort, e.g. "parquet".
	Extensions []string
}

// Open opens the database and loads its extensions.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "yieldgap"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			log.Printf("[db] extension %s not loaded: %v", ext, err)
		}
	}
	return conn, nil
}
