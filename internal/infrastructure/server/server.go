package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/widgetkit/internal/api/http"
	"github.com/GriffinCanCode/widgetkit/internal/api/middleware"
	"github.com/GriffinCanCode/widgetkit/internal/api/ws"
	"github.com/GriffinCanCode/widgetkit/internal/domain/bus"
	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/config"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/providers/http/client"
	"github.com/GriffinCanCode/widgetkit/internal/providers/storage"
	"github.com/GriffinCanCode/widgetkit/internal/providers/template"
)

// Server wraps the HTTP server and the widget runtime behind it
type Server struct {
	config  *config.Config
	router  *gin.Engine
	handler http.Handler
	http    *http.Server

	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	store   storage.Store
	pool    *sandbox.Pool
	bus     *bus.Bus
	ticker  *bus.Ticker
	manager *widget.Manager
}

// Option customises a Server
type Option func(*options)

type options struct {
	loader   widget.Loader
	logger   *logging.Logger
	registry *prometheus.Registry
}

// WithLoader replaces the bundle resolver, mostly for tests
func WithLoader(l widget.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger replaces the logger built from config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers metrics on reg instead of the default registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Sample:      cfg.Logging.Sample && !cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing widget server",
		zap.String("port", cfg.Server.Port),
		zap.String("bundle_dir", cfg.Bundle.Dir),
		zap.Bool("watch", cfg.Bundle.Watch),
	)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if o.registry != nil {
		registerer, gatherer = o.registry, o.registry
	}
	metrics := monitoring.NewMetricsWith(registerer)
	tracer := tracing.New("widgetkit", logger)

	var store storage.Store
	if cfg.Storage.Path != "" {
		sqlite, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			metrics.Close()
			tracer.Close()
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		store = sqlite
		logger.Info("Persisted state in SQLite", zap.String("path", cfg.Storage.Path))
	} else {
		store = storage.NewMemory()
		logger.Info("Persisted state in memory")
	}

	sandboxCfg := sandbox.Config{
		HandlerTimeout:   cfg.Widget.HandlerTimeout,
		MaxCallStackSize: cfg.Widget.MaxCallStackSize,
		EnableConsole:    true,
	}
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Widget.PoolSize)
	if err != nil {
		store.Close()
		metrics.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	eventBus := bus.New(logger.Named("bus"))
	ticker := bus.NewTicker(eventBus, cfg.Widget.TickInterval)

	fetchCfg := client.DefaultConfig()
	if cfg.Bundle.FetchTimeout > 0 {
		fetchCfg.Timeout = cfg.Bundle.FetchTimeout
	}
	fetchClient := client.New(fetchCfg, logger.Named("fetch"))

	loader := o.loader
	if loader == nil {
		loader = &bundle.Resolver{Root: cfg.Bundle.Dir, Fetcher: bundle.NewFetcher(fetchClient)}
	}

	host := &widget.Host{
		Engine:  template.NewEngine(template.WithDefaultLocale(cfg.Widget.Locale)),
		Bus:     eventBus,
		Spawner: pool,
		Store:   store,
		Logger:  logger.Named("widget"),
		Metrics: metrics,
		Config: widget.Config{
			Sandbox:         sandboxCfg,
			PersistInterval: cfg.Widget.PersistInterval,
			RemovalGrace:    cfg.Widget.RemovalGrace,
		},
	}
	manager := widget.NewManager(host, loader).WithWatch(cfg.Bundle.Watch)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rateCfg := middleware.DefaultRateLimitConfig()
		rateCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rateCfg.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rateCfg))
	}

	handlers := api.NewHandlers(manager, api.NewHandlerMetrics(metrics), logger.Named("api"))
	wsHandler := ws.NewHandler(manager, metrics, logger.Named("ws"))
	aggregator := api.NewMetricsAggregator(metrics, manager, pool, fetchClient)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Widgets
	router.GET("/widgets", handlers.ListWidgets)
	router.POST("/widgets", handlers.MountWidget)
	router.GET("/widgets/:id", handlers.GetWidget)
	router.GET("/widgets/:id/query", handlers.QueryWidget)
	router.POST("/widgets/:id/resize", handlers.ResizeWidget)
	router.POST("/widgets/:id/persist", handlers.PersistWidget)
	router.POST("/widgets/:id/transitions", handlers.TransitionWidget)
	router.DELETE("/widgets/:id", handlers.CloseWidget)
	router.GET("/widgets/:id/stream", wsHandler.HandleStream)

	// Bus and client logs
	router.POST("/events", handlers.PublishEvent)
	router.POST("/logs", handlers.IngestLogs)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/metrics/json", aggregator.GetAggregatedMetrics)

	logger.Info("Server initialized successfully")

	return &Server{
		config:  cfg,
		router:  router,
		handler: compress(router),
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		store:   store,
		pool:    pool,
		bus:     eventBus,
		ticker:  ticker,
		manager: manager,
	}, nil
}

// compress gzips responses except websocket upgrades, which need the raw
// connection
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manager returns the widget manager
func (s *Server) Manager() *widget.Manager {
	return s.manager
}

// Start begins publishing TICK events
func (s *Server) Start() {
	s.ticker.Start()
}

// Run starts ticking and serves HTTP until Shutdown
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{Addr: addr, Handler: s.handler}

	s.Start()
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops serving, unmounts every widget and releases resources
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.ticker.Stop()
	s.manager.Shutdown()
	s.bus.Dispose()

	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sandbox pool: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("state store: %w", err))
	}
	s.tracer.Close()
	s.metrics.Close()

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown finished with errors", zap.Error(err))
		return err
	}
	s.logger.Info("Server stopped")
	_ = s.logger.Sync()
	return nil
}
