package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-yieldgap/internal/analytics"
	"github.com/joeblew999/plat-yieldgap/internal/api"
	"github.com/joeblew999/plat-yieldgap/internal/api/mapui"
	"github.com/joeblew999/plat-yieldgap/internal/archive"
	"github.com/joeblew999/plat-yieldgap/internal/dashboard"
	"github.com/joeblew999/plat-yieldgap/internal/dataset"
	"github.com/joeblew999/plat-yieldgap/internal/db"
	"github.com/joeblew999/plat-yieldgap/internal/humastar"
	"github.com/joeblew999/plat-yieldgap/internal/metrics"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
	"github.com/joeblew999/plat-yieldgap/internal/templates"
)

// DefaultSessionTTL is how long an idle dashboard session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // DuckDB files; empty for an in-memory database
	WebDir  string // Path to web/ directory for static files and template overrides
	Dataset string // Yield record location, see dataset.Open

	// NDVISeed seeds the sample generator. Zero picks a time-based seed.
	NDVISeed int64

	AnalyticsURL     string
	AnalyticsTimeout time.Duration

	Archive    archive.Config
	SessionTTL time.Duration
}

// Server is the yield-gap dashboard HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	store    *dataset.Store
	sessions *dashboard.Registry
	bus      *dashboard.EventBus
	tracker  *analytics.Tracker
	services *api.Services
	renderer *templates.Renderer
	stop     context.CancelFunc
}

// New creates the server and loads the dataset. A dataset that fails to
// load leaves the dashboard empty until the next refresh.
func New(cfg Config) (*Server, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("Morocco Yield Gap API", api.Version)
	humaConfig.Info.Description = "Regional crop yield gaps, NDVI samples and dashboard exports."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links))

	humaAPI := humago.New(mux, humaConfig)

	renderer, err := loadTemplates(cfg.WebDir)
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		renderer: renderer,
		bus:      dashboard.NewEventBus(),
		tracker:  analytics.NewTracker(cfg.AnalyticsURL, cfg.AnalyticsTimeout),
		stop:     stop,
	}

	conn, err := db.Open(db.Config{
		DataDir:    cfg.DataDir,
		DBName:     "yieldgap",
		Extensions: []string{"parquet"},
	})
	if err != nil {
		log.Printf("[server] DuckDB unavailable: %v", err)
	} else {
		s.db = conn
	}

	source, err := dataset.Open(cfg.Dataset, s.db)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = dataset.NewStore(source)
	if err := s.store.Reload(ctx); err != nil {
		log.Printf("[server] dataset: %v", err)
	}
	metrics.Records.Set(float64(s.store.Len()))

	seed := cfg.NDVISeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	samples := ndvi.Generate(rand.New(rand.NewSource(seed)))

	s.sessions = dashboard.NewRegistry(func(id string) *dashboard.Controller {
		return dashboard.New(id, s.store, dashboard.Options{Samples: samples, Tracker: s.tracker})
	})

	exports, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		log.Printf("[server] archive %s unavailable, exports are not kept: %v", cfg.Archive.Driver, err)
		exports = archive.None{}
	}

	s.services = &api.Services{
		Store:    s.store,
		Samples:  samples,
		Sessions: s.sessions,
		Archive:  exports,
	}

	s.routes()
	go s.janitor(ctx)
	return s, nil
}

// loadTemplates prefers web/templates/fragments so fragments can be edited
// without a rebuild, and falls back to the embedded copies.
func loadTemplates(webDir string) (*templates.Renderer, error) {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates", "fragments")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fmt.Printf("Loaded fragment templates from %s\n", dir)
			return templates.New(dir)
		}
	}
	return templates.New("")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close stops background work and closes server resources.
func (s *Server) Close() error {
	s.stop()
	s.tracker.Wait()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// REST routes: every Register* method of the handler.
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))

	archiveDriver := string(s.services.Archive.Driver())
	api.NewInfoHandler(s.config.Dataset, archiveDriver, s.db != nil).RegisterRoutes(s.humaAPI)
	if s.db != nil {
		api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)
	}

	// Dashboard SSE routes using Huma + Datastar SDK
	ui := mapui.NewHandler(s.sessions, s.store, s.bus, s.services, s.renderer)
	ui.RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/", ui.Page)
}

// janitor drops idle sessions until ctx is done.
func (s *Server) janitor(ctx context.Context) {
	interval := s.config.SessionTTL / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.prune(now)
		}
	}
}

func (s *Server) prune(now time.Time) {
	if n := s.sessions.Prune(now.Add(-s.config.SessionTTL)); n > 0 {
		log.Printf("[server] dropped %d idle sessions", n)
	}
	metrics.Sessions.Set(float64(s.sessions.Len()))
}
