// Package api defines the Huma REST routes of the yield-gap dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-yieldgap/internal/archive"
	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/humastar"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Store    *dataset.Store
	Samples  ndvi.SampleSet
	Sessions *dashboard.Registry
	Archive  archive.Store
	// Now defaults to time.Now; used for archive keys.
	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Keep stores a copy of an export in the archive. Failures are logged only.
func (s *Services) Keep(ctx context.Context, session string, d dashboard.Download) {
	if s.Archive == nil || s.Archive.Driver() == archive.DriverNone {
		return
	}
	key := archive.Key(s.now(), session, d.Filename)
	if _, err := s.Archive.Put(ctx, key, d.Data, d.ContentType); err != nil {
		log.Printf("[api] archive %s: %v", key, err)
	}
}

// Types

type HealthBody struct {
	Status   string `json:"status" doc:"Health status" example:"ok"`
	Version  string `json:"version" doc:"API version" example:"0.1.0"`
	Records  int    `json:"records" doc:"Loaded yield records"`
	Sessions int    `json:"sessions" doc:"Open dashboard sessions"`
}

type YieldDataInput struct {
	dataset.Filter
	Offset   int  `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit    int  `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Page size"`
	Geometry bool `query:"geometry" doc:"Include region geometry"`
}

type YieldDataOutput struct {
	Body humastar.PageBody[dataset.Record]
}

type RecordIDInput struct {
	ID int `path:"id" doc:"Record ID" example:"1"`
}

type SummaryInput struct {
	Region string `query:"region" doc:"Region name" example:"Souss-Massa"`
	dataset.Filter
}

type SummaryBody struct {
	Region string `json:"region,omitempty" doc:"Region filter"`
	Crop   string `json:"crop,omitempty" doc:"Crop filter"`
	dataset.Summary
}

type DateInput struct {
	Date string `path:"date" doc:"NDVI acquisition date" example:"2024-01-01"`
}

type CSVInput struct {
	dataset.Filter
}

// FileOutput is a downloadable file.
type FileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func fileOutput(d dashboard.Download) *FileOutput {
	return &FileOutput{
		ContentType:        d.ContentType,
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s"`, d.Filename),
		Body:               d.Data,
	}
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers the health check.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterDataset registers the yield dataset routes.
func (h *APIHandler) RegisterDataset(api huma.API) {
	huma.Get(api, "/api/v1/yield-data", h.GetYieldData, huma.OperationTags("dataset"))
	huma.Get(api, "/api/v1/yield-data/summary", h.GetSummary, huma.OperationTags("dataset"))
	huma.Get(api, "/api/v1/yield-data/{id}", h.GetRecord, huma.OperationTags("dataset"))
	huma.Get(api, "/api/v1/regions", h.GetRegions, huma.OperationTags("dataset"))
	huma.Get(api, "/api/v1/crops", h.GetCrops, huma.OperationTags("dataset"))
	huma.Get(api, "/api/v1/years", h.GetYears, huma.OperationTags("dataset"))
}

// RegisterNDVI registers the NDVI sample routes.
func (h *APIHandler) RegisterNDVI(api huma.API) {
	huma.Get(api, "/api/v1/ndvi/dates", h.GetNDVIDates, huma.OperationTags("ndvi"))
	huma.Get(api, "/api/v1/ndvi/samples/{date}", h.GetNDVISamples, huma.OperationTags("ndvi"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: Version, Records: h.svc.Store.Len()}
	if h.svc.Sessions != nil {
		body.Sessions = h.svc.Sessions.Len()
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}

func (h *APIHandler) GetYieldData(ctx context.Context, input *YieldDataInput) (*YieldDataOutput, error) {
	records := h.svc.Store.Query(input.Filter)
	if !input.Geometry {
		for i := range records {
			records[i].Geometry = ""
		}
	}
	return &YieldDataOutput{Body: humastar.Page(records, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetRecord(ctx context.Context, input *RecordIDInput) (*struct{ Body dataset.Record }, error) {
	r, ok := h.svc.Store.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("record %d not found", input.ID))
	}
	return &struct{ Body dataset.Record }{Body: r}, nil
}

func (h *APIHandler) GetSummary(ctx context.Context, input *SummaryInput) (*struct{ Body SummaryBody }, error) {
	records := h.svc.Store.Query(input.Filter)
	if input.Region != "" {
		var kept []dataset.Record
		for _, r := range records {
			if r.BoundaryName == input.Region {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	sum, err := dataset.Summarize(records)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to summarize", err)
	}
	return &struct{ Body SummaryBody }{Body: SummaryBody{Region: input.Region, Crop: input.Crop, Summary: sum}}, nil
}

func (h *APIHandler) GetRegions(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: nonNil(h.svc.Store.Regions())}, nil
}

func (h *APIHandler) GetCrops(ctx context.Context, input *struct{}) (*struct{ Body []string }, error) {
	return &struct{ Body []string }{Body: nonNil(h.svc.Store.Crops())}, nil
}

func (h *APIHandler) GetYears(ctx context.Context, input *struct{}) (*struct{ Body []int }, error) {
	return &struct{ Body []int }{Body: h.svc.Store.Years()}, nil
}

func (h *APIHandler) GetNDVIDates(ctx context.Context, input *struct{}) (*struct{ Body []ndvi.Period }, error) {
	return &struct{ Body []ndvi.Period }{Body: ndvi.Periods}, nil
}

func (h *APIHandler) GetNDVISamples(ctx context.Context, input *DateInput) (*struct{ Body map[string]ndvi.Sample }, error) {
	if !ndvi.ValidDate(input.Date) {
		return nil, huma.Error404NotFound(fmt.Sprintf("unknown NDVI date %s", input.Date))
	}
	samples := h.svc.Samples.ForDate(input.Date)
	if samples == nil {
		return nil, huma.Error404NotFound(dashboard.ErrNoNDVIData.Error())
	}
	return &struct{ Body map[string]ndvi.Sample }{Body: samples}, nil
}

// exportError maps dashboard errors to HTTP errors.
func exportError(err error) error {
	switch {
	case errors.Is(err, dashboard.ErrNoSelection):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, dashboard.ErrNoNDVIData):
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError("Export failed", err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
