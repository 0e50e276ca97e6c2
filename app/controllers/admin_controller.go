package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/coursepass/coursepass/internal/pkg/cache"
	"github.com/coursepass/coursepass/internal/pkg/reconciler"
	"github.com/coursepass/coursepass/internal/pkg/report"
)

// AdminController exposes the operator endpoints behind basic auth.
type AdminController struct {
	manager *reconciler.Manager
}

// NewAdminController wires the admin endpoints to the sweep manager.
func NewAdminController(m *reconciler.Manager) *AdminController {
	return &AdminController{manager: m}
}

// HandleTriggerSweep runs one reconciliation sweep synchronously and returns
// its summary. Concurrent triggers are refused, not queued.
func (ac *AdminController) HandleTriggerSweep(c *fiber.Ctx) error {
	summary, err := ac.manager.RunLocked(c.Context(), time.Now())
	if err != nil {
		if errors.Is(err, reconciler.ErrSweepRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a sweep is already running"})
		}
		log.Errorf("[Admin] Manual sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep failed"})
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

// HandleLastSweep returns the summary of the most recent sweep, if any.
func (ac *AdminController) HandleLastSweep(c *fiber.Ctx) error {
	raw, err := cache.Get(report.LastSummaryKey)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no sweep recorded yet"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).SendString(raw)
}
