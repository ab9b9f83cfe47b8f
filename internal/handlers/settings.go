package handlers

import (
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
)

// SettingsHandler manages the store contact settings.
type SettingsHandler struct {
	db           *gorm.DB
	appName      string
	supportEmail string
}

// NewSettingsHandler constructs SettingsHandler. supportEmail and appName seed the defaults.
func NewSettingsHandler(db *gorm.DB, appName, supportEmail string) *SettingsHandler {
	return &SettingsHandler{db: db, appName: appName, supportEmail: supportEmail}
}

const defaultBusinessHours = "Mon - Fri: 09:00 - 18:00"

func (h *SettingsHandler) applyDefaults(settings *models.StoreSettings) {
	if strings.TrimSpace(settings.SupportEmail) == "" {
		settings.SupportEmail = h.supportEmail
	}
	if strings.TrimSpace(settings.BusinessHours) == "" {
		settings.BusinessHours = defaultBusinessHours
	}
	if strings.TrimSpace(settings.Copyright) == "" {
		settings.Copyright = "© " + h.appName + ". All rights reserved."
	}
}

// GetSettings returns the store settings, falling back to defaults before the first save.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	var settings models.StoreSettings
	if err := h.db.First(&settings).Error; err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	h.applyDefaults(&settings)
	return c.JSON(fiber.Map{"success": true, "data": settings})
}

// UpdateSettings creates or replaces the store settings.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var input models.StoreSettings
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if email := strings.TrimSpace(input.SupportEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "support_email must be a valid email")
		}
	}

	var existing models.StoreSettings
	err := h.db.First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	// Copy only editable fields so id and timestamps from the payload are ignored.
	existing.SupportEmail = strings.TrimSpace(input.SupportEmail)
	existing.SupportPhone = strings.TrimSpace(input.SupportPhone)
	existing.Address = strings.TrimSpace(input.Address)
	existing.BusinessHours = strings.TrimSpace(input.BusinessHours)
	existing.Copyright = strings.TrimSpace(input.Copyright)
	existing.Instagram = input.Instagram
	existing.Facebook = input.Facebook
	existing.TikTok = input.TikTok
	existing.Youtube = input.Youtube
	existing.InstagramEnabled = input.InstagramEnabled
	existing.FacebookEnabled = input.FacebookEnabled
	existing.TikTokEnabled = input.TikTokEnabled
	existing.YoutubeEnabled = input.YoutubeEnabled

	if err := h.db.Save(&existing).Error; err != nil {
		return err
	}

	h.applyDefaults(&existing)
	return c.JSON(fiber.Map{"success": true, "data": existing})
}
