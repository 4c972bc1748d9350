package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataset string
	archive string
	dbOK    bool
}

func NewInfoHandler(dataset, archive string, dbOK bool) *InfoHandler {
	return &InfoHandler{dataset: dataset, archive: archive, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Dataset  string   `json:"dataset" doc:"Where yield records are loaded from"`
	Archive  string   `json:"archive" doc:"Export archive driver" enum:"none,fs,s3"`
	DB       bool     `json:"db" doc:"Whether DuckDB is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	archive := h.archive
	if archive == "" {
		archive = "none"
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-yieldgap",
		Version:  Version,
		Dataset:  h.dataset,
		Archive:  archive,
		DB:       h.dbOK,
		Features: []string{"yield-gap", "ndvi", "exports", "duckdb", "xlsx"},
	}}, nil
}
