package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/helpdeskpro/internal/services"
)

// CronHandler exposes the maintenance jobs to external schedulers.
type CronHandler struct {
	runner *services.JobRunner
}

// NewCronHandler constructs CronHandler.
func NewCronHandler(runner *services.JobRunner) *CronHandler {
	return &CronHandler{runner: runner}
}

func runJob[T any](c *fiber.Ctx, run func(context.Context) (T, error)) error {
	result, err := run(c.UserContext())
	if errors.Is(err, services.ErrJobRunning) {
		return c.JSON(fiber.Map{"success": true, "skipped": true, "message": "job already running"})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": result})
}

// PendingReminders triggers the unanswered ticket reminders.
func (h *CronHandler) PendingReminders(c *fiber.Ctx) error {
	return runJob(c, h.runner.PendingReminders)
}

// DailyNewProducts triggers the new products digest.
func (h *CronHandler) DailyNewProducts(c *fiber.Ctx) error {
	return runJob(c, h.runner.DailyNewProducts)
}
