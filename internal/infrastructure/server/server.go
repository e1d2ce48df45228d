package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AdminConsole/backend/internal/api/http"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/api/middleware"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/api/ws"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/descriptor"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/discovery"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/events"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/modfs"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/packager"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/security"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/storage"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/watch"
)

const shutdownTimeout = 15 * time.Second

// Version is reported by the root endpoint; set at build time
var Version = "dev"

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	controller *lifecycle.Controller
	bus        *events.Bus
	tracer     *tracing.Tracer
	storage    *storage.Store
	watcher    *watch.Watcher
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	closeOnce  sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing module registry server",
		zap.String("addr", cfg.Address()),
		zap.String("modules_root", cfg.Modules.Root),
		zap.String("host_version", cfg.Modules.HostVersion),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("console", logger.Component("trace"))

	area, err := modfs.New(modfs.Config{
		Root:     cfg.Modules.Root,
		Ignore:   cfg.Modules.Ignore,
		MaxBytes: cfg.Modules.MaxPackageBytes,
	}, logger.Component("modfs"))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open module root: %w", err)
	}

	// Storage collaborator (optional)
	var (
		store    *storage.Store
		migrator lifecycle.Migrator
	)
	if cfg.Storage.Enabled {
		store, err = storage.Open(cfg.Storage.Path, logger.Component("storage"))
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to open module database: %w", err)
		}
		migrator = store
		logger.Info("Module database opened", zap.String("path", cfg.Storage.Path))
	} else {
		logger.Warn("Module database disabled; schemas will not be applied")
	}

	reg := registry.NewStore(logger.Component("registry"))
	parser := descriptor.NewParser()
	validator := security.NewValidator(cfg.Modules.HostVersion)
	bus := events.NewBus(logger.Component("events"))

	controller := lifecycle.NewController(lifecycle.Deps{
		Store:   reg,
		Area:    area,
		Scanner: discovery.NewScanner(reg, area, parser, cfg.Modules.ScanWorkers, logger.Component("discovery")),
		Packager: packager.New(reg, area, parser, validator, packager.Options{
			ImportTimeout: cfg.Modules.ImportTimeout,
			MaxBytes:      cfg.Modules.MaxPackageBytes,
		}, logger.Component("packager")),
		Validator: validator,
		Migrator:  migrator,
		Bus:       bus,
		Metrics:   metrics,
		Logger:    logger.Component("lifecycle"),
	})

	s := &Server{
		controller: controller,
		bus:        bus,
		tracer:     tracer,
		storage:    store,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}

	if cfg.Watch.Enabled {
		w, err := watch.New(watch.Config{
			Root:     cfg.Modules.Root,
			Ignore:   rootRelative(cfg.Modules.Ignore),
			Debounce: cfg.Watch.Debounce,
			OnChange: func(ctx context.Context, changed []string) error {
				_, err := controller.Rediscover(ctx)
				return err
			},
		}, logger.Component("watch"))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.watcher = w
	}

	s.router = s.buildRouter()
	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(s.controller, apihttp.NewHandlerMetrics(s.metrics), apihttp.Options{
		MaxPackageBytes: s.config.Modules.MaxPackageBytes,
		Version:         Version,
	}, s.logger.Component("http"))
	apihttp.Register(router, handlers)

	wsHandler := ws.NewHandler(s.bus, s.controller.Store(), s.metrics, s.logger.Component("ws"))
	router.GET("/events", wsHandler.HandleConnection)

	aggregator := apihttp.NewMetricsAggregator(s.metrics, s.controller)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/metrics/json", aggregator.GetAggregatedMetrics)

	return router
}

// Router exposes the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Controller exposes the lifecycle controller
func (s *Server) Controller() *lifecycle.Controller {
	return s.controller
}

// Start repairs the module area and runs the first scan
func (s *Server) Start(ctx context.Context) error {
	summary, err := s.controller.Start(ctx)
	if err != nil {
		return fmt.Errorf("initial rediscovery failed: %w", err)
	}
	s.logger.Info("Initial rediscovery complete",
		zap.Int("discovered", len(summary.Discovered)),
		zap.Int("restored", len(summary.Restored)),
		zap.Int("errors", len(summary.Errors)),
	)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	watchErr := make(chan error, 1)
	if s.watcher != nil {
		go func() {
			watchErr <- s.watcher.Run(ctx)
		}()
		s.logger.Info("Watching module root for changes", zap.Duration("debounce", s.config.Watch.Debounce))
	}

	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case err := <-watchErr:
		if err != nil {
			s.logger.Error("Watcher stopped", zap.Error(err))
		}
		<-ctx.Done()
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// event streams end when the bus closes
	s.bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Close releases the server's resources
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.bus.Close()
		s.tracer.Close()
		if s.storage != nil {
			if cerr := s.storage.Close(); cerr != nil {
				s.logger.Error("Failed to close module database", zap.Error(cerr))
				err = fmt.Errorf("failed to close module database: %w", cerr)
			}
		}
		// Sync logger before exit
		_ = s.logger.Sync()
	})
	return err
}

// rootRelative turns module-relative ignore globs into globs relative to
// the module root
func rootRelative(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, "*/"+p)
	}
	return out
}
