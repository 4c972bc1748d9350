package dataset

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Filter narrows records by crop and year. Zero values match everything.
type Filter struct {
	Crop string `query:"crop" doc:"Crop name" example:"Wheat"`
	Year int    `query:"year" doc:"Harvest year, 9999 for the average" example:"2023"`
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.Crop != "" && r.CropName != f.Crop {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	return true
}

// Store holds the loaded records in source order.
type Store struct {
	source  Source
	records []Record
	mu      sync.RWMutex
}

// NewStore creates a store backed by source. Call Reload to populate it.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// NewStaticStore creates a store holding records and no source.
func NewStaticStore(records []Record) *Store {
	s := &Store{}
	s.Replace(records)
	return s
}

// Source returns the backing source, or nil.
func (s *Store) Source() Source {
	return s.source
}

// Reload re-reads the source. On error the previous records are kept.
func (s *Store) Reload(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	records, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.source.Name(), err)
	}
	s.Replace(records)
	return nil
}

// Replace swaps the record set. Records without an ID are numbered after the
// highest ID the source supplied, so ids stay unique.
func (s *Store) Replace(records []Record) {
	cp := make([]Record, len(records))
	copy(cp, records)
	next := 0
	for _, r := range cp {
		next = max(next, r.ID)
	}
	for i := range cp {
		if cp[i].ID == 0 {
			next++
			cp[i].ID = next
		}
	}

	s.mu.Lock()
	s.records = cp
	s.mu.Unlock()
}

// All returns a copy of every record in source order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Query returns matching records in source order.
func (s *Store) Query(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Get returns a record by ID.
func (s *Store) Get(id int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// ByRegion returns every record for a region name, in source order.
func (s *Store) ByRegion(name string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.BoundaryName == name {
			out = append(out, r)
		}
	}
	return out
}

// Regions returns the distinct region names, sorted.
func (s *Store) Regions() []string {
	return s.distinct(func(r Record) string { return r.BoundaryName })
}

// Crops returns the distinct crop names, sorted.
func (s *Store) Crops() []string {
	return s.distinct(func(r Record) string { return r.CropName })
}

// Years returns the distinct years, sorted, always ending with AverageYear.
func (s *Store) Years() []int {
	s.mu.RLock()
	seen := map[int]bool{}
	for _, r := range s.records {
		seen[r.Year] = true
	}
	s.mu.RUnlock()

	if len(seen) == 0 {
		return []int{2019, 2020, 2021, AverageYear}
	}
	seen[AverageYear] = true

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func (s *Store) distinct(key func(Record) string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, r := range s.records {
		k := key(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
