// Package api wires the HTTP surface: the WebSocket endpoint, the broadcast
// trigger, dashboard auth and management routes, health, and metrics.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/auth"
	"github.com/notifmoo/notif/internal/config"
	"github.com/notifmoo/notif/internal/database"
	"github.com/notifmoo/notif/internal/observability"
	"github.com/notifmoo/notif/internal/pubsub"
	"github.com/notifmoo/notif/internal/realtime"
	"github.com/notifmoo/notif/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	app    *fiber.App
	config *config.Config
	db     *database.Connection
	bus    pubsub.Bus

	hub     *realtime.Hub
	metrics *observability.Metrics

	wsHandler        *realtime.Handler
	broadcastHandler *BroadcastHandler
	authHandler      *AuthHandler
	dashboardHandler *DashboardHandler
	jwtManager       *auth.JWTManager
}

// NewServer creates the HTTP server with all handlers wired.
func NewServer(cfg *config.Config, db *database.Connection, bus pubsub.Bus) *Server {
	app := fiber.New(fiber.Config{
		ServerHeader:          "Notif",
		AppName:               "Notif v1.0.0",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          customErrorHandler,
	})

	metrics := observability.NewMetrics()

	// Repositories
	users := store.NewUserRepository(db)
	domains := store.NewDomainRepository(db)
	channels := store.NewChannelRepository(db)
	conns := store.NewConnectionRepository(db)
	audit := store.NewAudit(channels, conns)

	// Realtime core
	hub := realtime.NewHub(bus, cfg.Realtime.ChannelBufferSize)
	hub.SetMetrics(metrics)
	roster := realtime.NewRoster(bus)
	signer := realtime.NewSigner(cfg.App.Secret)

	wsHandler := realtime.NewHandler(hub, roster, signer, audit, &domainResolver{domains: domains})
	wsHandler.SetMetrics(metrics)

	// Dashboard auth
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.PasswordMinLen)
	authService := auth.NewService(users, jwtManager, hasher)

	server := &Server{
		app:              app,
		config:           cfg,
		db:               db,
		bus:              bus,
		hub:              hub,
		metrics:          metrics,
		wsHandler:        wsHandler,
		broadcastHandler: NewBroadcastHandler(hub, domains, cfg.App.Key, metrics),
		authHandler:      NewAuthHandler(authService),
		dashboardHandler: NewDashboardHandler(users, domains, channels, conns),
		jwtManager:       jwtManager,
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

// setupMiddlewares sets up global middlewares.
func (s *Server) setupMiddlewares() {
	s.app.Use(requestid.New())

	if s.config.Debug {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
		}))
	}

	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.config.Debug,
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,x-app-key",
	}))
}

// setupRoutes sets up all routes.
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", observability.PrometheusHandler())

	s.app.Get("/ws", s.wsHandler.Upgrade)

	s.app.Post("/api/broadcast", s.broadcastHandler.Broadcast)

	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", s.authHandler.Register)
	authGroup.Post("/login", s.authHandler.Login)

	dashboard := s.app.Group("/dashboard", RequireUser(s.jwtManager))
	dashboard.Get("/user", s.dashboardHandler.GetUser)
	dashboard.Get("/domains", s.dashboardHandler.ListDomains)
	dashboard.Post("/domains", s.dashboardHandler.CreateDomain)
	dashboard.Patch("/domains/:id", s.dashboardHandler.UpdateDomain)
	dashboard.Delete("/domains/:id", s.dashboardHandler.DeleteDomain)
	dashboard.Get("/channels", s.dashboardHandler.ListChannels)
	dashboard.Get("/ws-status", s.dashboardHandler.WsStatus)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbHealthy := true
	if err := s.db.Health(ctx); err != nil {
		dbHealthy = false
		log.Error().Err(err).Msg("Database health check failed")
	}

	status := "ok"
	httpStatus := fiber.StatusOK
	if !dbHealthy {
		status = "degraded"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"service": "notif",
		"status":  status,
		"services": fiber.Map{
			"database": dbHealthy,
			"bus":      s.config.Bus.Backend,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return s.bus.Close()
}

// App returns the underlying Fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// customErrorHandler handles errors globally.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.As(err, &appErr):
		code = apperrors.HTTPStatus(appErr)
		message = appErr.Error()
	}

	if code >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("Server error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// domainResolver adapts the domain repository to the WebSocket handler.
type domainResolver struct {
	domains *store.DomainRepository
}

func (r *domainResolver) ResolveKey(ctx context.Context, key string) (*realtime.AuthorizedDomain, error) {
	d, err := r.domains.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, nil
	}
	return &realtime.AuthorizedDomain{ID: d.ID, Name: d.DomainName}, nil
}
