package dataset

import (
	"github.com/montanaflynn/stats"
)

// Summary describes the distribution of yield gaps over a set of records.
type Summary struct {
	Count  int     `json:"count" doc:"Records with a yield gap"`
	Mean   float64 `json:"mean" doc:"Mean yield gap (t/ha)"`
	Median float64 `json:"median" doc:"Median yield gap (t/ha)"`
	Min    float64 `json:"min" doc:"Smallest yield gap (t/ha)"`
	Max    float64 `json:"max" doc:"Largest yield gap (t/ha)"`
	StdDev float64 `json:"std" doc:"Standard deviation (t/ha)"`
}

// Summarize computes yield-gap statistics. The average pseudo-year is left out.
func Summarize(records []Record) (Summary, error) {
	var gaps stats.Float64Data
	for _, r := range records {
		if r.Year == AverageYear {
			continue
		}
		if gap, ok := r.Gap(); ok {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return Summary{}, nil
	}

	var s Summary
	var err error
	s.Count = gaps.Len()
	if s.Mean, err = gaps.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = gaps.Median(); err != nil {
		return Summary{}, err
	}
	if s.Min, err = gaps.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = gaps.Max(); err != nil {
		return Summary{}, err
	}
	if s.StdDev, err = gaps.StandardDeviation(); err != nil {
		return Summary{}, err
	}
	return s, nil
}
