package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const resetCodeTTL = 10 * time.Minute

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	db       *gorm.DB
	notifier *services.Notifier
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, notifier *services.Notifier) *PasswordResetHandler {
	return &PasswordResetHandler{db: db, notifier: notifier}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword generates a 6-digit code, emails it and returns a reset token.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = normalizeEmail(req.Email)
	if err := utils.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return notFoundOr(err, "user not found")
	}

	code, err := generateResetCode()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate code")
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	resetToken := hex.EncodeToString(tokenBytes)

	now := time.Now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("email = ? AND used_at IS NULL AND expires_at > ?", req.Email, now).
			Update("expires_at", now).Error; err != nil {
			return err
		}

		return tx.Create(&models.PasswordResetToken{
			Email:     req.Email,
			Token:     resetToken,
			Code:      code,
			ExpiresAt: now.Add(resetCodeTTL),
		}).Error
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create reset token")
	}

	if err := h.notifier.PasswordResetCode(user.Email, code); err != nil {
		log.Printf("[PasswordReset] Failed to email code to %s: %v", user.Email, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   resetToken,
	})
}

type verifyResetCodeRequest struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

func (h *PasswordResetHandler) loadActiveToken(token string) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	if err := h.db.Where("token = ?", token).First(&record).Error; err != nil {
		return nil, notFoundOr(err, "invalid reset token")
	}

	if record.UsedAt != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "token already used")
	}

	if record.ExpiresAt.Before(time.Now()) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "token expired")
	}

	return &record, nil
}

// VerifyResetCode verifies the code submitted by the user.
func (h *PasswordResetHandler) VerifyResetCode(c *fiber.Ctx) error {
	var req verifyResetCodeRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	record, err := h.loadActiveToken(req.Token)
	if err != nil {
		return err
	}

	if record.Code != req.Code {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	if err := h.db.Model(record).Update("verified", true).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"verified": true,
		"token":    record.Token,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// ResetPassword updates the user's password after successful code verification.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	record, err := h.loadActiveToken(req.Token)
	if err != nil {
		return err
	}

	if !record.Verified {
		return fiber.NewError(fiber.StatusBadRequest, "code not verified")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	now := time.Now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("email = ?", record.Email).
			Update("password_hash", hash).Error; err != nil {
			return err
		}
		return tx.Model(record).Update("used_at", &now).Error
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update password")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated successfully",
	})
}

func generateResetCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
