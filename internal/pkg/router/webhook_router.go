package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/coursepass/coursepass/app/controllers"
	"github.com/coursepass/coursepass/internal/pkg/config"
)

// WebhookRouter exposes the gateway notification endpoints.
type WebhookRouter struct {
	cfg        *config.Config
	controller *controllers.WebhookController
}

func NewWebhookRouter(cfg *config.Config, wc *controllers.WebhookController) *WebhookRouter {
	return &WebhookRouter{cfg: cfg, controller: wc}
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Rate limit keyed by client IP, shared across instances via Redis.
	// Legitimate gateways redeliver on 429 like on any 5xx.
	group := app.Group("/webhook", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    h.limiterStorage(),
	}))
	group.Post("/:gateway", h.controller.HandleNotification)
}

func (h WebhookRouter) limiterStorage() fiber.Storage {
	port, err := strconv.Atoi(h.cfg.CachePort)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: h.cfg.CacheHost,
		Port: port,
	})
}
