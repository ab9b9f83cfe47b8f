package handlers

import (
	"bytes"
	"encoding/base64"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const profileImageSize = 300

// ProfileHandler manages the signed-in user's profile.
type ProfileHandler struct {
	db    *gorm.DB
	media services.MediaStore
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, media services.MediaStore) *ProfileHandler {
	return &ProfileHandler{db: db, media: media}
}

// GetProfile returns the current user.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	user, err := loadUser(h.db, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=50"`
	ImageBase64 string  `json:"image_base64" validate:"omitempty,startswith=data:image/"`
}

// UpdateProfile changes the display name and/or the profile picture.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := utils.Validate(&req); err != nil {
		return err
	}

	user, err := loadUser(h.db, userID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}

	if req.ImageBase64 != "" {
		data, err := decodeDataURL(req.ImageBase64)
		if err != nil {
			return err
		}

		uploaded, err := h.media.Upload(c.UserContext(), bytes.NewReader(data), services.UploadOptions{
			Folder:   "profiles",
			Filename: "avatar",
			Square:   profileImageSize,
			Size:     int64(len(data)),
		})
		if err != nil {
			return err
		}
		updates["image_url"] = uploaded.URL
		updates["image_public_id"] = uploaded.PublicID
	}

	oldPublicID := user.ImagePublicID
	if len(updates) > 0 {
		if err := h.db.Model(user).Updates(updates).Error; err != nil {
			if newID, ok := updates["image_public_id"].(string); ok {
				_ = h.media.Destroy(c.UserContext(), newID)
			}
			return err
		}
	}

	// The previous avatar goes only once the new one is stored.
	if _, replaced := updates["image_public_id"]; replaced && oldPublicID != "" {
		if err := h.media.Destroy(c.UserContext(), oldPublicID); err != nil {
			log.Printf("[Profile] Failed to delete old image %s: %v", oldPublicID, err)
		}
	}

	user, err = loadUser(h.db, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

// decodeDataURL extracts the payload of a base64 data:image/... URL.
func decodeDataURL(value string) ([]byte, error) {
	idx := strings.Index(value, ";base64,")
	if idx < 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "image must be a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(value[idx+len(";base64,"):])
	if err != nil || len(data) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid image data")
	}
	return data, nil
}
