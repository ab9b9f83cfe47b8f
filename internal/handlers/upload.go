package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/helpdeskpro/internal/services"
)

const maxUploadSize = 10 << 20

// UploadHandler proxies file uploads to the media host.
type UploadHandler struct {
	media services.MediaStore
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(media services.MediaStore) *UploadHandler {
	return &UploadHandler{media: media}
}

// Upload stores the multipart "file" field and returns its hosted URL.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if header.Size > maxUploadSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file is too large")
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := h.media.Upload(c.UserContext(), file, services.UploadOptions{
		Folder:      "products",
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}

// Delete removes a hosted file by public id.
func (h *UploadHandler) Delete(c *fiber.Ctx) error {
	publicID := c.Query("public_id")
	if publicID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "public_id is required")
	}

	if err := h.media.Destroy(c.UserContext(), publicID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
