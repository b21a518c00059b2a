// Package server contains the HTTP and WebSocket handlers for the feed and tip API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aurafeed/internal/cache"
	"aurafeed/internal/config"
	"aurafeed/internal/feed"
	"aurafeed/internal/ledger"
	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/notifications"
	"aurafeed/internal/storage"
	"aurafeed/internal/tipping"
	"aurafeed/internal/wallet"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators a Server runs on. NewServer builds them from
// config; tests hand their own to NewServerWithDeps.
type Deps struct {
	Store      storage.Store
	StoreClose func() error
	Source     feed.Source
	Provider   wallet.Provider
	Redis      *redis.Client
	Clock      clockwork.Clock
	Poller     tipping.Poller
	// Closers run on Shutdown after the store is closed.
	Closers []func()
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	store      storage.Store
	storeClose func() error
	closers    []func()
	ledger     *ledger.Store
	source     feed.Source
	feed       *feed.State
	wallet     *wallet.Session
	buttons    *tipping.Registry
	notifier   *notifications.Notifier
	hub        *notifications.Hub
}

// NewServer creates a new server instance with dependencies built from cfg.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = cache.InitRedis(cfg.RedisURL)
	}

	store, storeClose, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger storage: %w", err)
	}

	source, closeSource, err := BuildSource(ctx, cfg)
	if err != nil {
		_ = storeClose()
		return nil, fmt.Errorf("feed source: %w", err)
	}

	provider, closeProvider, err := BuildProvider(ctx, cfg)
	if err != nil {
		_ = storeClose()
		closeSource()
		return nil, fmt.Errorf("wallet: %w", err)
	}

	return NewServerWithDeps(ctx, cfg, Deps{
		Store:      store,
		StoreClose: storeClose,
		Source:     source,
		Provider:   provider,
		Redis:      rdb,
		Closers:    []func(){closeSource, closeProvider},
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies
// and loads the feed once. A failed first load is logged, not fatal.
func NewServerWithDeps(ctx context.Context, cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Source == nil {
		return nil, errors.New("store and source are required")
	}
	if deps.StoreClose == nil {
		deps.StoreClose = func() error { return nil }
	}

	shutdownCtx, shutdownFn := context.WithCancel(context.Background())

	source := deps.Source
	if deps.Redis != nil {
		source = feed.NewCachedSource(source, deps.Redis, cfg.FeedCacheTTL)
	}

	ledgerStore := ledger.Open(ctx, deps.Store, ledger.WithLogger(middleware.Logger))
	feedState := feed.NewState(source, ledgerStore, middleware.Logger)
	session := wallet.NewSession(deps.Provider, cfg.TipChainID, middleware.Logger)

	hub := notifications.NewHub()
	notifier := notifications.NewNotifier(deps.Redis)

	buttons := tipping.NewRegistry(tipping.Deps{
		Wallet:   session,
		Feed:     feedState,
		Clock:    deps.Clock,
		Poller:   deps.Poller,
		Listener: hub.Listener(shutdownCtx),
		Logger:   middleware.Logger,
	})

	s := &Server{
		config:         cfg,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("aurafeed-api"),
		shutdownCtx:    shutdownCtx,
		shutdownFn:     shutdownFn,
		store:          deps.Store,
		storeClose:     deps.StoreClose,
		closers:        deps.Closers,
		ledger:         ledgerStore,
		source:         source,
		feed:           feedState,
		wallet:         session,
		buttons:        buttons,
		notifier:       notifier,
		hub:            hub,
	}

	if err := feedState.Refresh(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "Initial feed load failed; serving an empty feed until refresh",
			slog.String("source", source.Name()),
		)
	}
	middleware.Logger.InfoContext(ctx, "Ledger loaded",
		slog.String("source", string(ledgerStore.Source())),
		slog.Int("records", len(ledgerStore.State().Records)),
	)
	return s, nil
}

// App builds the Fiber app with middleware and routes. Start calls it; tests
// drive the returned app with app.Test.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "Aurafeed API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Aurafeed Metrics"}))

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	// Specific /:id/tip routes before the generic /:id route.
	posts.Get("/:id/tip", s.GetTipStatus)
	posts.Post("/:id/tip/click", s.ClickTip)
	posts.Post("/:id/tip/edit", s.EditTip)
	posts.Put("/:id/tip/amount", s.SetTipAmount)
	posts.Post("/:id/tip/blur", s.BlurTip)
	posts.Post("/:id/tip/submit", submitLimiter(), s.SubmitTip)
	posts.Post("/:id/tip/cancel", s.CancelTip)
	posts.Get("/:id", s.GetPost)

	feedGroup := api.Group("/feed")
	feedGroup.Get("/mode", s.GetFeedMode)
	feedGroup.Put("/mode", s.SetFeedMode)
	feedGroup.Post("/refresh", s.RefreshFeed)

	tips := api.Group("/tips")
	tips.Get("/", s.GetTips)
	tips.Get("/:postId", s.GetTip)

	walletGroup := api.Group("/wallet")
	walletGroup.Get("/", s.GetWallet)
	walletGroup.Post("/connect", s.ConnectWallet)

	api.Get("/ws", s.RequireUpgrade, s.TipStreamHandler())
}

func submitLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + ":" + c.Params("id")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many tip submissions, please slow down.",
			})
		},
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports the ledger storage and, when configured, Redis.
// Redis is optional here, so its absence does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storageStatus := "healthy"
	if p, ok := s.store.(storage.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			storageStatus = "unhealthy"
		}
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storageStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"ledger_storage": storageStatus,
			"redis":          redisStatus,
		},
		"feed_source": s.feed.SourceName(),
		"time":        time.Now(),
	})
}

// Start wires the hub to Redis when available and listens on the configured port.
func (s *Server) Start() error {
	app := s.App()

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Warn("Tip stream Redis wiring failed; events stay local",
				slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("Error shutting down tip stream", slog.String("error", err.Error()))
	}

	if err := s.storeClose(); err != nil {
		middleware.Logger.Error("Error closing ledger storage", slog.String("error", err.Error()))
	}
	for _, closeFn := range s.closers {
		if closeFn != nil {
			closeFn()
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("Error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
