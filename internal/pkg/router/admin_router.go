package router

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursepass/coursepass/app/controllers"
	"github.com/coursepass/coursepass/internal/pkg/config"
)

// AdminRouter exposes the operator endpoints and the Prometheus scrape
// target, both behind HTTP basic auth.
type AdminRouter struct {
	cfg        *config.Config
	controller *controllers.AdminController
}

func NewAdminRouter(cfg *config.Config, ac *controllers.AdminController) *AdminRouter {
	return &AdminRouter{cfg: cfg, controller: ac}
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	auth := basicauth.New(basicauth.Config{
		Authorizer: h.authorize,
	})

	admin := app.Group("/admin", auth)
	admin.Post("/sweep", h.controller.HandleTriggerSweep)
	admin.Get("/sweep/last", h.controller.HandleLastSweep)

	app.Get("/metrics", auth, adaptor.HTTPHandler(promhttp.Handler()))
}

// authorize checks the configured operator account. The password is stored
// as a bcrypt hash; with no hash configured every request is refused.
func (h AdminRouter) authorize(user, pass string) bool {
	if h.cfg.AdminPasswordHash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(h.cfg.AdminUser)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPasswordHash), []byte(pass)) == nil
}
