package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/windowsync/backend/internal/api/http"
	"github.com/GriffinCanCode/windowsync/backend/internal/api/middleware"
	"github.com/GriffinCanCode/windowsync/backend/internal/api/ws"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/content"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/registry"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/router"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/window"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/loop"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/windowsync/backend/internal/providers/wshost"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
)

const (
	loopCapacity    = 1024
	shutdownTimeout = 5 * time.Second
)

// Option customizes a Server
type Option func(*options)

type options struct {
	logger   *logging.Logger
	launcher wshost.Launcher
}

// WithLogger replaces the logger built from config
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLauncher replaces the launcher built from BRIDGE_LAUNCH_COMMAND
func WithLauncher(launcher wshost.Launcher) Option {
	return func(o *options) { o.launcher = launcher }
}

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	loop     *loop.Loop
	registry *registry.Registry
	host     *wshost.Host
	windows  *window.Manager
	router   *router.Router
	engine   *gin.Engine

	primaryClosed chan struct{}
	closeOnce     sync.Once
}

// New creates a server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing windowsync server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("dev_mode", cfg.Content.DevMode()),
	)

	profiles, err := config.LoadProfiles(cfg.Window.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load window profiles: %w", err)
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("windowsync", logger.Logger)

	lp := loop.New(loopCapacity, logger.Logger)
	reg := registry.New()

	launcher := o.launcher
	if launcher == nil {
		launcher = wshost.NewLauncher(cfg.Bridge.LaunchCommand, logger.Logger)
	}
	host := wshost.New(wshost.Config{
		PublicURL: publicURL(cfg),
		QueueSize: cfg.Bridge.QueueSize,
	}, launcher, logger.Logger).WithMetrics(metrics)

	resolver := content.NewResolver(cfg.Content.DevServerURL, cfg.Content.RendererDist)
	loader := content.NewLoader(content.LoaderConfig{
		Prober:  content.NewProber(content.ProbeConfig{MaxRetries: cfg.Window.LoadRetries}, logger.Logger),
		Timeout: cfg.Window.LoadTimeout,
		Metrics: metrics,
		Logger:  logger.Logger,
	})

	windows := window.NewManager(lp, reg, host, resolver, loader, window.Options{
		MainPage:  cfg.Content.MainPage,
		ChildPage: cfg.Content.ChildPage,
		Defaults:  cfg.Window,
		Profiles:  profiles,
	}, logger.Logger).WithMetrics(metrics)

	rt := router.New(lp, reg, windows, logger.Logger).WithMetrics(metrics).WithTracer(tracer)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(tracing.HTTPMiddleware(tracer))
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		engine.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(rt, reg, windows, resolver, metrics, logger.Logger)
	handlers.Register(engine)

	bridge := ws.NewHandler(host, rt, ws.Config{
		InboundRPS:   cfg.Bridge.InboundRPS,
		InboundBurst: cfg.Bridge.InboundBurst,
	}, logger.Logger).WithMetrics(metrics)
	bridge.Register(engine)

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	s := &Server{
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		loop:          lp,
		registry:      reg,
		host:          host,
		windows:       windows,
		router:        rt,
		engine:        engine,
		primaryClosed: make(chan struct{}),
	}

	windows.OnClosed(func(info types.WindowInfo) {
		if info.Primary {
			s.closeOnce.Do(func() { close(s.primaryClosed) })
		}
	})

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler serves the API with gzip, leaving the bridge route uncompressed
// so websocket upgrades reach gin untouched
func (s *Server) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(s.engine)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, wshost.BridgePath+"/") {
			s.engine.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Router returns the message router
func (s *Server) Router() *router.Router { return s.router }

// Registry returns the session registry
func (s *Server) Registry() *registry.Registry { return s.registry }

// Windows returns the window manager
func (s *Server) Windows() *window.Manager { return s.windows }

// Metrics returns the metrics collector
func (s *Server) Metrics() *monitoring.Metrics { return s.metrics }

// Run listens on the configured address until ctx ends or the primary
// window closes
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the event loop and HTTP server on ln, opens the primary
// window, and shuts everything down when ctx ends or the primary closes
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() {
		if err := s.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Event loop stopped", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var openErr error
	if err := s.loop.Call(ctx, func() {
		_, openErr = s.windows.OpenPrimary(ctx)
	}); err != nil {
		openErr = err
	}

	var runErr error
	if openErr != nil {
		runErr = fmt.Errorf("failed to open primary window: %w", openErr)
	} else {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutdown requested")
		case <-s.primaryClosed:
			s.logger.Info("Primary window closed")
		case err := <-serveErr:
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	s.shutdown(httpServer)
	return runErr
}

func (s *Server) shutdown(httpServer *http.Server) {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.loop.Call(ctx, s.windows.CloseAll); err != nil {
		s.logger.Warn("Failed to close windows", zap.Error(err))
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	s.host.Close()
	s.tracer.Close()
	_ = s.logger.Sync()
}

// publicURL is the base renderers dial. Without BRIDGE_PUBLIC_URL it points
// at the loopback interface on the listen port.
func publicURL(cfg *config.Config) string {
	if cfg.Bridge.PublicURL != "" {
		return cfg.Bridge.PublicURL
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "ws://" + net.JoinHostPort(host, cfg.Server.Port)
}
