package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile reads records from a JSON array on disk.
type JSONFile struct {
	path string
}

// NewJSONFile creates a JSON file source.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Name returns the file name.
func (s *JSONFile) Name() string {
	return filepath.Base(s.path)
}

// Load reads and decodes the file. Geometry may be a string or an inline
// GeoJSON object.
func (s *JSONFile) Load(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(data)
}

// DecodeJSON decodes a JSON array of records.
func DecodeJSON(data []byte) ([]Record, error) {
	var raw []struct {
		Record
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]Record, len(raw))
	for i, item := range raw {
		rec := item.Record
		rec.Geometry = geometryString(item.Geometry)
		records[i] = rec
	}
	return records, nil
}

func geometryString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
