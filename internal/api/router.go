package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facegate/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facegate/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facegate/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facegate/internal/ws"
)

// Accounts is the account service behind the user and login routes.
type Accounts interface {
	handler.AccountService
	handler.FaceLogin
}

type Dependencies struct {
	Version     string
	Accounts    Accounts
	Sessions    handler.SessionManager
	Tokens      middleware.TokenValidator
	Hub         *ws.Hub
	ReadyChecks []handler.ReadyCheck
	// RateLimitMax is the default per-IP budget per minute. Zero keeps the
	// middleware default.
	RateLimitMax int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	cancelHub   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facegate API",
		BodyLimit:    handler.MaxFrameSize,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints
	var checks []handler.ReadyCheck
	version := ""
	if r.deps != nil {
		checks = r.deps.ReadyChecks
		version = r.deps.Version
	}
	healthHandler := handler.NewHealthHandler(version, checks...)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	// The hub lives as long as the router
	hubCtx, hubCancel := context.WithCancel(context.Background())
	r.cancelHub = hubCancel
	go r.deps.Hub.Run(hubCtx)

	v1 := r.app.Group("/v1")

	// Rate limiting (per client IP). Frames arrive at camera rate and are
	// bounded by the session instead.
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if r.deps.RateLimitMax > 0 {
		limiterCfg.Max = r.deps.RateLimitMax
	}
	limiterCfg.PerEndpoint = middleware.LoginRateLimits()
	limiterCfg.Skip = func(c *fiber.Ctx) bool {
		return strings.HasSuffix(c.Path(), "/frames")
	}
	r.rateLimiter = middleware.NewRateLimiter(limiterCfg)
	v1.Use(r.rateLimiter.Handler())

	// Account routes
	accountHandler := handler.NewAccountHandler(r.deps.Accounts, r.logger)
	v1.Post("/users", accountHandler.Register)
	v1.Get("/users", accountHandler.List)
	v1.Post("/login", accountHandler.Login)
	v1.Get("/me", middleware.Auth(r.deps.Tokens, r.logger), accountHandler.Me)

	// Session routes
	// A face is only ever enrolled for the logged in user
	sessionHandler := handler.NewSessionHandler(r.deps.Sessions, r.deps.Accounts, r.logger)
	sessions := v1.Group("/sessions")
	sessions.Post("/verification", sessionHandler.StartVerification)
	sessions.Post("/enrollment", middleware.Auth(r.deps.Tokens, r.logger), sessionHandler.StartEnrollment)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/frames", sessionHandler.PushFrame)
	sessions.Post("/:id/retry", sessionHandler.Retry)
	sessions.Post("/:id/confirm", sessionHandler.Confirm)
	sessions.Delete("/:id", sessionHandler.Cancel)

	// WebSocket endpoint: session events out, frames in
	r.app.Get("/ws/sessions/:id", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub, r.deps.Sessions, r.logger))
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	// Stop WebSocket hub, closing every connection
	if r.cancelHub != nil {
		r.cancelHub()
	}

	return r.app.Shutdown()
}
