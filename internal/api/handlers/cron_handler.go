package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/postdeck/postdeck/internal/scheduler"
)

// CronHandler exposes the scheduler sweep to an external trigger. The
// shared secret in the query string is the only guard; the endpoint sits
// outside the authenticated group.
type CronHandler struct {
	runner *scheduler.Runner
	secret string
}

func NewCronHandler(runner *scheduler.Runner, secret string) *CronHandler {
	return &CronHandler{runner: runner, secret: secret}
}

func (h *CronHandler) Run(c *fiber.Ctx) error {
	if h.secret == "" || c.Query("secret") != h.secret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid cron secret",
		})
	}

	stats, err := h.runner.Run(c.Context())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "scheduler run failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}
