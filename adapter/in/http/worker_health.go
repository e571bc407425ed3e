package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
	mongo *mongo.Client
}

// NewHealthHandler accepts nil for any backend that is not configured.
func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, mongo *mongo.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, mongo: mongo}
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true
	check := func(name string, configured bool, ping func() error) {
		if !configured {
			checks[name] = "not configured"
			return
		}
		if err := ping(); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			healthy = false
			return
		}
		checks[name] = "healthy"
	}

	check("postgres", h.db != nil, func() error { return h.db.Ping(ctx) })
	check("redis", h.redis != nil, func() error { return h.redis.Ping(ctx).Err() })
	check("mongodb", h.mongo != nil, func() error { return h.mongo.Ping(ctx, readpref.Primary()) })

	status, code := "ready", fiber.StatusOK
	if !healthy {
		status, code = "not ready", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
