// Package dataset loads and queries the regional yield records the
// dashboard visualizes.
package dataset

// AverageYear is the pseudo-year standing for the multi-year average.
const AverageYear = 9999

// Record is one administrative region for one crop and year.
// Yields are in t/ha.
type Record struct {
	ID             int      `json:"id" doc:"Record identifier" example:"1"`
	BoundaryName   string   `json:"boundary_name" doc:"Region name, the join key with map geometry" example:"Souss-Massa"`
	BoundaryCode   string   `json:"boundary_code,omitempty" doc:"Region code" example:"MA-09"`
	CropName       string   `json:"crop_name" doc:"Crop" example:"Wheat"`
	Year           int      `json:"year" doc:"Harvest year, 9999 for the average" example:"2023"`
	ActualYield    *float64 `json:"actual_yield" doc:"Observed yield (t/ha)" example:"2.1"`
	PotentialYield *float64 `json:"potential_yield" doc:"Potential yield (t/ha)" example:"4.0"`
	YieldGap       *float64 `json:"yield_gap" doc:"Potential minus actual (t/ha)" example:"1.9"`
	YieldGapPct    *float64 `json:"yield_gap_percent" doc:"Yield gap as a percent of potential" example:"47.5"`

	WaterGap      *float64 `json:"water_gap,omitempty" doc:"Potential minus water-limited yield (t/ha)"`
	NutrientGap   *float64 `json:"nutrient_gap,omitempty" doc:"Water-limited minus nutrient-limited yield (t/ha)"`
	ManagementGap *float64 `json:"management_gap,omitempty" doc:"Nutrient-limited minus actual yield (t/ha)"`
	FertilizerGap *float64 `json:"fertilizer_response_gap,omitempty" doc:"Actual minus unfertilized yield (t/ha)"`
	DataSource    string   `json:"data_source,omitempty" doc:"Where the record came from" example:"Excel Import"`
	Geometry      string   `json:"geometry,omitempty" doc:"GeoJSON geometry of the region"`
}

// HasGeometry reports whether the record can be drawn.
func (r Record) HasGeometry() bool {
	return r.Geometry != ""
}

// Gap returns the stored yield gap, or potential minus actual when it is missing.
func (r Record) Gap() (float64, bool) {
	if r.YieldGap != nil {
		return *r.YieldGap, true
	}
	if r.ActualYield != nil && r.PotentialYield != nil {
		return *r.PotentialYield - *r.ActualYield, true
	}
	return 0, false
}

// GapPercent returns the stored gap percent, or the gap relative to potential.
func (r Record) GapPercent() (float64, bool) {
	if r.YieldGapPct != nil {
		return *r.YieldGapPct, true
	}
	gap, ok := r.Gap()
	if !ok || r.PotentialYield == nil || *r.PotentialYield == 0 {
		return 0, false
	}
	return gap / *r.PotentialYield * 100, true
}

// Float returns a pointer to v, for building records in code.
func Float(v float64) *float64 {
	return &v
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
