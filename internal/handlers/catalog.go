package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

// CatalogHandler serves categories and collections.
type CatalogHandler struct {
	db    *gorm.DB
	cache services.Cache
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB, cache services.Cache) *CatalogHandler {
	return &CatalogHandler{db: db, cache: cache}
}

// ListCategories returns categories, optionally filtered by kind.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	query := h.db.Model(&models.Category{})
	if kind := c.Query("kind"); kind == models.KindCategory || kind == models.KindCollection {
		query = query.Where("kind = ?", kind)
	}

	var categories []models.Category
	if err := query.Order("created_at desc").Find(&categories).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// GetCategory returns a single category.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.First(&category, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "category not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"max=500"`
	Kind        string `json:"kind" validate:"omitempty,oneof=category collection"`
}

func (r *categoryRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Kind == "" {
		r.Kind = models.KindCategory
	}
}

func (h *CatalogHandler) ensureSlugFree(slug string, except *models.Category) error {
	query := h.db.Model(&models.Category{}).Where("slug = ?", slug)
	if except != nil {
		query = query.Where("id <> ?", except.ID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "category already exists")
	}
	return nil
}

// CreateCategory inserts a new category or collection.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.normalize()
	if err := utils.Validate(&req); err != nil {
		return err
	}

	slug := utils.Slugify(req.Name)
	if err := h.ensureSlugFree(slug, nil); err != nil {
		return err
	}

	category := models.Category{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Kind:        req.Kind,
	}
	if err := h.db.Create(&category).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": category})
}

// UpdateCategory replaces a category's fields and recomputes its slug.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.First(&category, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "category not found")
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.normalize()
	if err := utils.Validate(&req); err != nil {
		return err
	}

	slug := utils.Slugify(req.Name)
	if err := h.ensureSlugFree(slug, &category); err != nil {
		return err
	}

	category.Name = req.Name
	category.Slug = slug
	category.Description = req.Description
	category.Kind = req.Kind
	if err := h.db.Save(&category).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory removes a category.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.First(&category, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "category not found")
	}

	// Products must belong to a category; collections are optional and
	// are simply detached.
	var inUse int64
	if err := h.db.Model(&models.Product{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
		return err
	}
	if inUse > 0 {
		return fiber.NewError(fiber.StatusConflict, "category is in use")
	}

	var detached int64
	err = h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).Where("collection_id = ?", id).Update("collection_id", nil)
		if res.Error != nil {
			return res.Error
		}
		detached = res.RowsAffected
		return tx.Delete(&category).Error
	})
	if err != nil {
		return err
	}

	if detached > 0 {
		if err := h.cache.Bump(c.UserContext(), productCacheNamespace); err != nil {
			log.Printf("[Catalog] Cache invalidation failed: %v", err)
		}
	}

	return c.JSON(fiber.Map{"success": true})
}
