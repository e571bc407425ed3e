package bootstrap

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/sanskarm7/JobCATGmail/adapter/in/http"
	"github.com/sanskarm7/JobCATGmail/infra/middleware"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// API is the HTTP process. With Redis it also relays sync events published by workers.
type API struct {
	App    *fiber.App
	deps   *Dependencies
	cancel context.CancelFunc
}

func NewAPI(deps *Dependencies) *API {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             cfg.MaxBodyBytes,
		ReadBufferSize:        16384,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))

	// AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := allowOrigins != "" && allowOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Public routes
	http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB).Register(app)
	mailboxHandler := http.NewMailboxHandler(deps.MailboxService, deps.OAuthStates, cfg.FrontendURL)
	mailboxHandler.RegisterCallback(app)

	// Authenticated routes
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Secret:  cfg.JWTSecret,
		JWKSURL: cfg.JWKSURL,
		Redis:   deps.Redis,
	})
	api := app.Group("/api/v1", auth.Handler())

	syncLimiter := middleware.NewRateLimiter(cfg.SyncRateLimit, cfg.SyncRateWindow)

	mailboxHandler.Register(api)
	http.NewSyncHandler(deps.SyncService, deps.Sinks, deps.MessageProducer, syncLimiter.Handler()).Register(api)
	http.NewApplicationHandler(deps.ApplicationService).Register(api)
	http.NewSSEHandler(deps.Realtime, logger.Default().Zerolog()).Register(api)

	logger.Info("[API] routes registered")
	return &API{App: app, deps: deps}
}

// Listen serves until Shutdown. The feed relay runs for the lifetime of the server.
func (a *API) Listen(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.deps.Relay != nil {
		go func() {
			if err := a.deps.Relay.Run(ctx, a.deps.Realtime); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("[API.Listen] feed relay stopped")
			}
		}()
	}
	return a.App.Listen(addr)
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.App.ShutdownWithContext(ctx)
}
