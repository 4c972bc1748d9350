package ndvi

import (
	"errors"
	"math/rand"
	"slices"
)

// ErrUnknownDate is returned for a date outside the fixed acquisition calendar.
var ErrUnknownDate = errors.New("ndvi: unknown date")

// Period is one acquisition date and the value range its samples are drawn from.
type Period struct {
	Date  string  `json:"date" doc:"Acquisition date" example:"2024-03-01"`
	Label string  `json:"label" doc:"Display label" example:"March 2024"`
	Min   float64 `json:"min" doc:"Lower bound of the sampled range"`
	Max   float64 `json:"max" doc:"Upper bound (exclusive) of the sampled range"`
}

// Periods is the fixed calendar. Ranges rise month over month to model the
// seasonal greening trend.
var Periods = []Period{
	{Date: "2024-01-01", Label: "January 2024", Min: 0.3, Max: 0.7},
	{Date: "2024-02-01", Label: "February 2024", Min: 0.4, Max: 0.8},
	{Date: "2024-03-01", Label: "March 2024", Min: 0.5, Max: 0.9},
	{Date: "2024-04-01", Label: "April 2024", Min: 0.6, Max: 0.95},
	{Date: "2024-05-01", Label: "May 2024", Min: 0.7, Max: 0.98},
	{Date: "2024-06-01", Label: "June 2024", Min: 0.8, Max: 0.99},
}

// DefaultDate is the date selected before the user picks one.
var DefaultDate = Periods[0].Date

// Regions are the twelve administrative regions covered by the sample set.
var Regions = []string{
	"Casablanca-Settat", "Rabat-Salé-Kénitra", "Fès-Meknès",
	"Marrakech-Safi", "Tanger-Tétouan-Al Hoceïma", "Oriental",
	"Béni Mellal-Khénifra", "Souss-Massa", "Drâa-Tafilalet",
	"Guelmim-Oued Noun", "Laâyoune-Sakia El Hamra", "Dakhla-Oued Ed-Dahab",
}

// ValidDate reports whether date is one of the fixed periods.
func ValidDate(date string) bool {
	return slices.ContainsFunc(Periods, func(p Period) bool { return p.Date == date })
}

// Dates returns the period dates in calendar order.
func Dates() []string {
	dates := make([]string, len(Periods))
	for i, p := range Periods {
		dates[i] = p.Date
	}
	return dates
}

// SampleSet maps date -> region name -> sample.
type SampleSet map[string]map[string]Sample

// ForDate returns the samples for a date, or nil.
func (s SampleSet) ForDate(date string) map[string]Sample {
	return s[date]
}

// Lookup returns the sample for a region on a date.
func (s SampleSet) Lookup(date, region string) (Sample, bool) {
	byRegion, ok := s[date]
	if !ok {
		return Sample{}, false
	}
	sample, ok := byRegion[region]
	return sample, ok
}

// Generate draws one sample per region for every period. Pass a seeded
// source for reproducible sets.
func Generate(rng *rand.Rand) SampleSet {
	set := make(SampleSet, len(Periods))
	for _, p := range Periods {
		set[p.Date] = generatePeriod(rng, p.Min, p.Max)
	}
	return set
}

func generatePeriod(rng *rand.Rand, lo, hi float64) map[string]Sample {
	samples := make(map[string]Sample, len(Regions))
	for _, region := range Regions {
		v := rng.Float64()*(hi-lo) + lo
		samples[region] = Classify(v)
	}
	return samples
}
