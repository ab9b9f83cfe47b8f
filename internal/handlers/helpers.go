package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/middleware"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
)

func parseIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// requireIdentity returns the caller's id and role or a 401.
func requireIdentity(c *fiber.Ctx) (uuid.UUID, string, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, "", fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return userID, middleware.GetCurrentRole(c), nil
}

// notFoundOr maps gorm.ErrRecordNotFound to a 404 with message.
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, message)
	}
	return err
}

func loadUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

func recordActivity(ctx context.Context, activity services.ActivityLog, entry services.Activity) {
	if err := activity.Record(ctx, entry); err != nil {
		log.Printf("[Activity] Failed to record %s %s on %s: %v", entry.Action, entry.SubjectType, entry.SubjectID, err)
	}
}
