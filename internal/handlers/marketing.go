package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/utils"
)

// MarketingHandler manages storefront hero slides.
type MarketingHandler struct {
	db *gorm.DB
}

// NewMarketingHandler constructs MarketingHandler.
func NewMarketingHandler(db *gorm.DB) *MarketingHandler {
	return &MarketingHandler{db: db}
}

type heroSlideRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Subtitle    string `json:"subtitle" validate:"max=250"`
	ButtonLabel string `json:"button_label" validate:"max=40"`
	ButtonLink  string `json:"button_link" validate:"max=250"`
	Image       string `json:"image" validate:"required"`
}

func (r *heroSlideRequest) apply(item *models.HeroSlide) {
	item.Title = strings.TrimSpace(r.Title)
	item.Subtitle = strings.TrimSpace(r.Subtitle)
	item.ButtonLabel = strings.TrimSpace(r.ButtonLabel)
	item.ButtonLink = strings.TrimSpace(r.ButtonLink)
	item.Image = r.Image
	if item.ButtonLabel == "" {
		item.ButtonLabel = "Shop now"
	}
	if item.ButtonLink == "" {
		item.ButtonLink = "/products"
	}
}

// Hero slides

func (h *MarketingHandler) ListHeroSlides(c *fiber.Ctx) error {
	items := []models.HeroSlide{}
	if err := h.db.Order("created_at asc").Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (h *MarketingHandler) CreateHeroSlide(c *fiber.Ctx) error {
	var req heroSlideRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	var item models.HeroSlide
	req.apply(&item)
	if err := h.db.Create(&item).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (h *MarketingHandler) UpdateHeroSlide(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var item models.HeroSlide
	if err := h.db.First(&item, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "hero slide not found")
	}

	var req heroSlideRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	req.apply(&item)
	if err := h.db.Save(&item).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": item})
}

func (h *MarketingHandler) DeleteHeroSlide(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.Delete(&models.HeroSlide{}, "id = ?", id).Error; err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
