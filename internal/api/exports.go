package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-yieldgap/internal/archive"
	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/humastar"
	"github.com/joeblew999/plat-yieldgap/internal/mapview"
)

type SessionInput struct {
	SID string `path:"sid" doc:"Dashboard session ID"`
}

type SessionExportInput struct {
	SessionInput
	Kind string `path:"kind" enum:"map,region,ndvi,csv" doc:"Export kind"`
}

type ArchiveInput struct {
	Prefix string `query:"prefix" doc:"Key prefix, e.g. a day (2024-03-01) or day/session"`
}

// SessionBody is the state of a dashboard session. Its export actions
// depend on that state.
type SessionBody struct {
	ID         string                      `json:"id" doc:"Session ID"`
	NDVIState  string                      `json:"ndvi_state" enum:"hidden,visible" doc:"NDVI overlay visibility"`
	NDVIDate   string                      `json:"ndvi_date" doc:"Selected NDVI date" example:"2024-01-01"`
	Viewport   mapview.Viewport            `json:"viewport" doc:"Last reported map view"`
	Opacity    float64                     `json:"opacity" doc:"Fill opacity of map shapes"`
	Filter     dataset.Filter              `json:"filter" doc:"Crop/year filter of the base layer"`
	Selected   *dataset.Record             `json:"selected,omitempty" doc:"Selected region record"`
	Statistics *dashboard.RegionStatistics `json:"statistics,omitempty" doc:"Snapshot taken at selection"`

	ndviData bool
}

var sessionActions = struct {
	Map, CSV, Region, Chart, NDVI humastar.ActionDef
}{
	Map:    humastar.ActionDef{Rel: "export-map", Pattern: "/api/v1/sessions/%s/export/map", Method: "GET", Title: "Download map image"},
	CSV:    humastar.ActionDef{Rel: "export-csv", Pattern: "/api/v1/sessions/%s/export/csv", Method: "GET", Title: "Download filtered data"},
	Region: humastar.ActionDef{Rel: "export-region", Pattern: "/api/v1/sessions/%s/export/region", Method: "GET", Title: "Download region statistics"},
	Chart:  humastar.ActionDef{Rel: "chart", Pattern: "/api/v1/sessions/%s/chart.png", Method: "GET", Title: "Region chart image"},
	NDVI:   humastar.ActionDef{Rel: "export-ndvi", Pattern: "/api/v1/sessions/%s/export/ndvi", Method: "GET", Title: "Download NDVI samples"},
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	actions := []humastar.Action{sessionActions.Map.For(b.ID), sessionActions.CSV.For(b.ID)}
	if b.Selected != nil {
		actions = append(actions, sessionActions.Region.For(b.ID), sessionActions.Chart.For(b.ID))
	}
	if b.ndviData {
		actions = append(actions, sessionActions.NDVI.For(b.ID))
	}
	return actions
}

// RegisterExports registers session state, exports and the archive listing.
func (h *APIHandler) RegisterExports(api huma.API) {
	huma.Get(api, "/api/v1/export/csv", h.ExportCSV, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/sessions/{sid}", h.GetSession, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/sessions/{sid}/export/{kind}", h.ExportSession, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/sessions/{sid}/chart.png", h.ChartImage, huma.OperationTags("export"))
	huma.Get(api, "/api/v1/exports", h.ListArchive, huma.OperationTags("export"))
}

func (h *APIHandler) session(sid string) (*dashboard.Controller, error) {
	if h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("session not found")
	}
	c, ok := h.svc.Sessions.Get(sid)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return c, nil
}

func (h *APIHandler) ExportCSV(ctx context.Context, input *CSVInput) (*FileOutput, error) {
	d, err := dashboard.CSVDownload(h.svc.Store, input.Filter)
	if err != nil {
		return nil, exportError(err)
	}
	return fileOutput(d), nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*struct{ Body SessionBody }, error) {
	c, err := h.session(input.SID)
	if err != nil {
		return nil, err
	}
	v := c.View()
	return &struct{ Body SessionBody }{Body: SessionBody{
		ID:         v.SessionID,
		NDVIState:  v.NDVIState.String(),
		NDVIDate:   v.NDVIDate,
		Viewport:   v.Viewport,
		Opacity:    v.Opacity,
		Filter:     v.Filter,
		Selected:   v.Selected,
		Statistics: v.Stats,
		ndviData:   h.svc.Samples.ForDate(v.NDVIDate) != nil,
	}}, nil
}

func (h *APIHandler) ExportSession(ctx context.Context, input *SessionExportInput) (*FileOutput, error) {
	c, err := h.session(input.SID)
	if err != nil {
		return nil, err
	}

	var d dashboard.Download
	switch input.Kind {
	case dashboard.ExportMap:
		d, err = c.ExportMapImage()
	case dashboard.ExportRegion:
		d, err = c.ExportRegionData()
	case dashboard.ExportNDVI:
		d, err = c.ExportNDVIData()
	case dashboard.ExportCSV:
		d, err = c.ExportCSV()
	default:
		return nil, huma.Error422UnprocessableEntity("unknown export kind " + input.Kind)
	}
	if err != nil {
		return nil, exportError(err)
	}
	h.svc.Keep(ctx, input.SID, d)
	return fileOutput(d), nil
}

// ImageOutput is an inline image.
type ImageOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (h *APIHandler) ChartImage(ctx context.Context, input *SessionInput) (*ImageOutput, error) {
	c, err := h.session(input.SID)
	if err != nil {
		return nil, err
	}
	d, err := c.ChartImage()
	if err != nil {
		return nil, exportError(err)
	}
	return &ImageOutput{ContentType: d.ContentType, Body: d.Data}, nil
}

func (h *APIHandler) ListArchive(ctx context.Context, input *ArchiveInput) (*struct{ Body []archive.Info }, error) {
	if h.svc.Archive == nil {
		return &struct{ Body []archive.Info }{Body: []archive.Info{}}, nil
	}
	list, err := h.svc.Archive.List(ctx, input.Prefix)
	if err != nil {
		return nil, huma.Error502BadGateway("Failed to list archive", err)
	}
	return &struct{ Body []archive.Info }{Body: nonNil(list)}, nil
}
