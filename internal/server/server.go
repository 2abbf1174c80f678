package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/engine"
	"github.com/perfmap/perfmap/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	Concurrency     int
	SheetWorkers    int
	EnableMetrics   bool
	EnableCORS      bool
	AllowedOrigins  []string
	MaxUploadBytes  int64
	ResultWait      time.Duration
	CacheSize       int
	CatalogPath     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Registerer receives the server metrics. Nil selects the default
	// prometheus registry.
	Registerer prometheus.Registerer
	// Gatherer serves /metrics. Nil selects the default prometheus registry.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		Concurrency:     5,
		SheetWorkers:    engine.DefaultConcurrency,
		EnableMetrics:   true,
		EnableCORS:      true,
		AllowedOrigins:  []string{"*"},
		MaxUploadBytes:  100 << 20,
		ResultWait:      60 * time.Second,
		CacheSize:       0,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    90 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server represents the perfmap HTTP server
type Server struct {
	config   *Config
	analyzer *analysis.Analyzer
	files    store.Store[*dataset.Workbook]
	results  store.Store[*engine.SheetOutcome]
	manager  *JobManager
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a new perfmap server
func New(config *Config) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	cat, err := catalog.Load(config.CatalogPath)
	if err != nil {
		return nil, err
	}

	files, err := store.New[*dataset.Workbook](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	results, err := store.New[*engine.SheetOutcome](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result store: %w", err)
	}

	registerer := config.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	server := &Server{
		config:   config,
		analyzer: analysis.New(cat),
		files:    files,
		results:  results,
		manager:  NewJobManagerWithRegistry(config.Concurrency, registerer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return config.EnableCORS && originAllowed(config.AllowedOrigins, r.Header.Get("Origin"))
			},
		},
	}

	return server, nil
}

// Handler builds the router with every route and middleware.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(securityHeadersMiddleware)

	// Apply CORS middleware to all routes if enabled
	if s.config.EnableCORS {
		router.Use(s.corsMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	api.HandleFunc("/files", s.uploadFile).Methods("POST")
	api.HandleFunc("/files", s.clearFiles).Methods("DELETE")
	api.HandleFunc("/files/{id}/progress", s.getProgress).Methods("GET")
	api.HandleFunc("/files/{id}/stream", s.streamProgress).Methods("GET")
	api.HandleFunc("/files/{id}/sheets/{sheet}/analytics", s.getAnalytics).Methods("GET")
	api.HandleFunc("/files/{id}/sheets/{sheet}/columns", s.getColumns).Methods("GET")
	api.HandleFunc("/files/{id}/sheets/{sheet}/analyze", s.analyzeColumns).Methods("POST")

	// Handle OPTIONS for CORS preflight
	if s.config.EnableCORS {
		api.Methods("OPTIONS").HandlerFunc(s.handleOptions)
	}

	if s.config.EnableMetrics {
		gatherer := s.config.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.HandleFunc("/health", s.healthCheck)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().
		Str("addr", addr).
		Int("concurrency", s.config.Concurrency).
		Int("cache_size", s.config.CacheSize).
		Bool("metrics", s.config.EnableMetrics).
		Msg("Starting perfmap server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Info().Msg("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// StartWithGracefulShutdown starts the server and handles graceful shutdown
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer shutdownCancel()

		if err := s.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}

		cancel()
	}()

	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// handleOptions handles CORS preflight requests
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
