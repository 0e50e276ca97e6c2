package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursepass/coursepass/app/controllers"
	"github.com/coursepass/coursepass/internal/pkg/config"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all route groups: the public webhook endpoints and
// the authenticated admin surface.
func InstallRouter(app *fiber.App, cfg *config.Config, wc *controllers.WebhookController, ac *controllers.AdminController) {
	setup(app, NewWebhookRouter(cfg, wc), NewAdminRouter(cfg, ac))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
