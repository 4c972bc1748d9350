package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-yieldgap/internal/archive"
	"github.com/joeblew999/plat-yieldgap/internal/ndvi"
	"github.com/joeblew999/plat-yieldgap/internal/server"
)

// Options defines all CLI flags and env vars for the dashboard server.
// Flags: --host, --port, --dataset, --archive, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATASET, SERVICE_ARCHIVE, ...
// A .env file in the working directory is loaded first.
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir string `doc:"Directory for DuckDB files, empty for in-memory" default:".data"`
	WebDir  string `doc:"Path to web/ directory" default:"web"`
	Dataset string `doc:"Yield records: file.json, file.xlsx, file.csv, file.parquet or duckdb:<table>" default:""`

	NDVISeed int64 `doc:"Seed for the NDVI sample generator, 0 for a random seed" default:"0"`

	AnalyticsURL     string `doc:"Collector URL for interaction events, empty to disable" default:""`
	AnalyticsTimeout int    `doc:"Analytics request timeout in seconds" default:"5"`

	Archive         string `doc:"Export archive driver: none, fs or s3" default:"none"`
	ArchiveDir      string `doc:"Root directory of the fs archive" default:"exports"`
	ArchiveBucket   string `doc:"Bucket of the s3 archive" default:""`
	ArchiveRegion   string `doc:"Region of the s3 archive" default:"us-east-1"`
	ArchiveEndpoint string `doc:"Custom S3 endpoint, e.g. MinIO" default:""`

	SessionTTL int `doc:"Minutes an idle dashboard session is kept" default:"120"`
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host:             opts.Host,
		Port:             fmt.Sprintf("%d", opts.Port),
		DataDir:          opts.DataDir,
		WebDir:           opts.WebDir,
		Dataset:          opts.Dataset,
		NDVISeed:         opts.NDVISeed,
		AnalyticsURL:     opts.AnalyticsURL,
		AnalyticsTimeout: time.Duration(opts.AnalyticsTimeout) * time.Second,
		Archive: archive.Config{
			Driver:   archive.Driver(opts.Archive),
			Root:     opts.ArchiveDir,
			Bucket:   opts.ArchiveBucket,
			Region:   opts.ArchiveRegion,
			Endpoint: opts.ArchiveEndpoint,
		},
		SessionTTL: time.Duration(opts.SessionTTL) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Server setup error: %v", err)
	}
	return srv
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error loading .env: %v", err)
	}

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server

		hooks.OnStart(func() {
			srv = newServer(opts)
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			dataset := opts.Dataset
			if dataset == "" {
				dataset = "(none)"
			}

			fmt.Println()
			fmt.Printf("plat-yieldgap dashboard starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Dataset: %s\n", dataset)
			fmt.Printf("  Archive: %s\n", opts.Archive)
			fmt.Println()
			fmt.Printf("  Page:    %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "yieldgap"
	cli.Root().Short = "Morocco crop yield gap map dashboard"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// samples subcommand: print the NDVI samples a seed produces
	samplesCmd := &cobra.Command{
		Use:   "samples",
		Short: "Print the NDVI samples generated for --ndvi-seed as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			seed := opts.NDVISeed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			out, err := yaml.Marshal(ndvi.Generate(rand.New(rand.NewSource(seed))))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling samples: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("# seed: %d\n%s", seed, out)
		}),
	}
	cli.Root().AddCommand(samplesCmd)

	cli.Run()
}
