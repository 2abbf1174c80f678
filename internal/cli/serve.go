package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/perfmap/perfmap/internal/execcontext"
	"github.com/perfmap/perfmap/internal/server"
	"github.com/perfmap/perfmap/internal/style"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Serve command flags
	servePort       int
	serveHost       string
	serveJobs       int
	serveMaxUpload  int64
	serveResultWait time.Duration
	serveCacheSize  int
	serveOrigins    []string
	serveMetrics    bool
	serveCORS       bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analytics API",
	Long: `Start an HTTP server that accepts spreadsheet uploads and serves the
analysis of each sheet.

The server provides:
- REST API for uploading files and fetching per sheet analytics
- WebSocket streaming of analysis progress
- Explicit column analysis for a chosen department column
- Prometheus metrics endpoint

Every flag can also be set in the config file under the server key, or
through PERFMAP_SERVER_* environment variables.

Examples:
  perfmap serve                                # Listen on localhost:8080
  perfmap serve --port 9000 --host 0.0.0.0     # Custom host and port
  perfmap serve --jobs 10 --cache-size 200     # More parallel uploads, bounded memory
  perfmap serve --allowed-origin https://hr.example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		runCtx := execcontext.RunContext{
			Context: cmd.Context(),
			StdOut:  cmd.OutOrStdout(),
			StdErr:  cmd.OutOrStderr(),
		}

		startServer(runCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := server.DefaultConfig()

	// Server configuration
	serveCmd.Flags().IntVarP(&servePort, "port", "p", defaults.Port, "server port")
	serveCmd.Flags().StringVar(&serveHost, "host", defaults.Host, "server host")
	serveCmd.Flags().IntVar(&serveJobs, "jobs", defaults.Concurrency, "maximum files analyzed at once")
	serveCmd.Flags().Int64Var(&serveMaxUpload, "max-upload", defaults.MaxUploadBytes, "maximum upload size in bytes")
	serveCmd.Flags().DurationVar(&serveResultWait, "result-wait", defaults.ResultWait, "how long analytics requests wait for a running analysis")
	serveCmd.Flags().IntVar(&serveCacheSize, "cache-size", defaults.CacheSize, "maximum files and sheet results kept in memory (0 keeps everything)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origin", defaults.AllowedOrigins, "origins allowed by CORS (repeatable)")

	// Features
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", defaults.EnableMetrics, "enable Prometheus metrics endpoint")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", defaults.EnableCORS, "enable CORS headers")

	for _, name := range []string{"port", "host", "jobs", "max-upload", "result-wait", "cache-size", "allowed-origin", "metrics", "cors"} {
		_ = viper.BindPFlag("server."+name, serveCmd.Flags().Lookup(name))
	}
}

// serverConfig maps the bound settings onto a server configuration.
func serverConfig() *server.Config {
	config := server.DefaultConfig()
	config.Host = viper.GetString("server.host")
	config.Port = viper.GetInt("server.port")
	config.Concurrency = viper.GetInt("server.jobs")
	config.MaxUploadBytes = viper.GetInt64("server.max-upload")
	config.ResultWait = viper.GetDuration("server.result-wait")
	config.CacheSize = viper.GetInt("server.cache-size")
	config.AllowedOrigins = viper.GetStringSlice("server.allowed-origin")
	config.EnableMetrics = viper.GetBool("server.metrics")
	config.EnableCORS = viper.GetBool("server.cors")
	config.SheetWorkers = viper.GetInt("concurrency")
	config.CatalogPath = viper.GetString("catalog")
	return config
}

func startServer(runCtx execcontext.RunContext) {
	config := serverConfig()

	// Default to info logging for the server
	if viper.GetString("log-level") == "disabled" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Create server
	srv, err := server.New(config)
	if err != nil {
		style.Error(runCtx, fmt.Sprintf("Failed to create server: %v", err))
		os.Exit(1)
	}

	// Display startup info
	if !viper.GetBool("quiet") {
		style.Success(runCtx, fmt.Sprintf("perfmap server starting at http://%s", srv.GetAddr()))
		fmt.Fprintf(runCtx, "📤 Upload: POST http://%s/api/v1/files\n", srv.GetAddr())
		fmt.Fprintf(runCtx, "❤️  Health: http://%s/health\n", srv.GetAddr())
		if config.EnableMetrics {
			fmt.Fprintf(runCtx, "📊 Metrics: http://%s/metrics\n", srv.GetAddr())
		}
	}

	// Start server with graceful shutdown
	if err := srv.StartWithGracefulShutdown(); err != nil {
		style.Error(runCtx, fmt.Sprintf("Server error: %v", err))
		os.Exit(1)
	}
}
