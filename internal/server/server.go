// Package server exposes the bowltab services over a JSON HTTP API.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akarpov/bowltab/internal/audit"
	"github.com/akarpov/bowltab/internal/auth"
	"github.com/akarpov/bowltab/internal/calculator"
	"github.com/akarpov/bowltab/internal/config"
	"github.com/akarpov/bowltab/internal/directory"
	"github.com/akarpov/bowltab/internal/ledger"
	"github.com/akarpov/bowltab/internal/telegram"
)

// Server wires the services to HTTP routes.
type Server struct {
	cfg       *config.Config
	verifier  *telegram.Verifier
	tokens    *auth.TokenService
	directory *directory.Directory
	ledger    *ledger.Service
	calc      *calculator.Calculator
	auditLog  *audit.Log

	app *fiber.App
}

// New builds the fiber application with all routes and middleware attached.
func New(
	cfg *config.Config,
	verifier *telegram.Verifier,
	tokens *auth.TokenService,
	dir *directory.Directory,
	ledgerSvc *ledger.Service,
	calc *calculator.Calculator,
	auditLog *audit.Log,
) *Server {
	s := &Server{
		cfg:       cfg,
		verifier:  verifier,
		tokens:    tokens,
		directory: dir,
		ledger:    ledgerSvc,
		calc:      calc,
		auditLog:  auditLog,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestLogger())
	app.Use(requestMetrics())

	origins := cfg.CORSAllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/auth/telegram", s.handleLogin)

	authed := app.Group("", s.requireAuth)
	authed.Get("/me", s.handleMe)
	authed.Get("/participants", s.handleListParticipants)
	authed.Post("/participants/settings", s.handleUpdateSettings)
	authed.Post("/participants/promote", s.handlePromote)
	authed.Get("/sessions/current", s.handleCurrentSession)
	authed.Get("/sessions/history", s.handleSessionHistory)
	authed.Post("/sessions", s.handleCreateSession)
	authed.Post("/sessions/:id/end", s.handleEndSession)
	authed.Post("/sessions/:id/bowls", s.handleAddBowl)
	authed.Post("/sessions/:id/bowls/:bowlId/participants", s.handleAddParticipant)
	authed.Get("/admin/logs", s.handleAuditLogs)

	s.app = app
	return s
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on the configured address until the app is shut down.
func (s *Server) Listen() error {
	slog.Info("http server starting", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
