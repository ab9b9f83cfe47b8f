package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const (
	productCacheNamespace = "products"
	productCacheTTL       = 5 * time.Minute
	defaultProductLimit   = 12
)

// ProductHandler manages product CRUD.
type ProductHandler struct {
	db    *gorm.DB
	cache services.Cache
	media services.MediaStore
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, cache services.Cache, media services.MediaStore) *ProductHandler {
	return &ProductHandler{db: db, cache: cache, media: media}
}

type productPage struct {
	Success    bool                   `json:"success"`
	Data       []models.Product       `json:"data"`
	Total      int64                  `json:"total"`
	TotalPages int64                  `json:"total_pages"`
	Pagination map[string]interface{} `json:"pagination"`
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, defaultProductLimit)
	search := strings.TrimSpace(c.Query("search"))
	categoryID := c.Query("category_id")
	collectionID := c.Query("collection_id")
	status := c.Query("status")
	sort := c.Query("sort", "newest")

	ctx := c.UserContext()
	version, err := h.cache.Version(ctx, productCacheNamespace)
	if err != nil {
		log.Printf("[Product] Cache version lookup failed: %v", err)
	}
	key := services.VersionedKey(productCacheNamespace, version, fmt.Sprintf(
		"page=%d&limit=%d&search=%s&category=%s&collection=%s&status=%s&sort=%s",
		pg.Page, pg.Limit, strings.ToLower(search), categoryID, collectionID, status, sort))

	var page productPage
	if err == nil {
		if cerr := h.cache.GetJSON(ctx, key, &page); cerr == nil {
			c.Set("X-Cache", "HIT")
			return c.JSON(page)
		} else if !errors.Is(cerr, services.ErrCacheMiss) {
			log.Printf("[Product] Cache read failed: %v", cerr)
		}
	}

	query := h.db.Model(&models.Product{})

	if search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if id, err := uuid.Parse(categoryID); err == nil {
		query = query.Where("category_id = ?", id)
	}
	if id, err := uuid.Parse(collectionID); err == nil {
		query = query.Where("collection_id = ?", id)
	}
	if status == models.ProductActive || status == models.ProductInactive {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	switch sort {
	case "price_asc":
		query = query.Order("price asc")
	case "price_desc":
		query = query.Order("price desc")
	default:
		query = query.Order("created_at desc")
	}

	products := []models.Product{}
	if err := query.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order asc") }).
		Preload("Category").
		Preload("Collection").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	page = productPage{
		Success:    true,
		Data:       products,
		Total:      total,
		TotalPages: pg.TotalPages(total),
		Pagination: pg.Meta(total),
	}
	if err := h.cache.SetJSON(ctx, key, page, productCacheTTL); err != nil {
		log.Printf("[Product] Cache write failed: %v", err)
	}

	c.Set("X-Cache", "MISS")
	return c.JSON(page)
}

// GetProduct loads a product with relations.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	product, err := h.loadProduct(h.db, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) loadProduct(db *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := db.
		Preload("Category").
		Preload("Collection").
		Preload("Variants").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order asc") }).
		First(&product, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "product not found")
	}
	return &product, nil
}

type variantRequest struct {
	Color string `json:"color"`
	Size  string `json:"size"`
	Stock int    `json:"stock" validate:"gte=0"`
}

type imageRequest struct {
	URL      string `json:"url" validate:"required"`
	PublicID string `json:"public_id"`
}

type productRequest struct {
	Title        string           `json:"title" validate:"required,max=200"`
	Description  string           `json:"description" validate:"required,max=5000"`
	Brand        string           `json:"brand" validate:"required,max=100"`
	CategoryID   string           `json:"category_id" validate:"required,uuid"`
	CollectionID string           `json:"collection_id" validate:"omitempty,uuid"`
	Price        float64          `json:"price" validate:"gte=0"`
	Discount     float64          `json:"discount" validate:"gte=0,lte=100"`
	Colors       []string         `json:"colors"`
	Sizes        []string         `json:"sizes"`
	Variants     []variantRequest `json:"variants" validate:"dive"`
	Images       []imageRequest   `json:"images" validate:"dive"`
	Status       string           `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *ProductHandler) parseProductRequest(c *fiber.Ctx) (*productRequest, error) {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Brand = strings.TrimSpace(req.Brand)
	req.CollectionID = strings.TrimSpace(req.CollectionID)
	if req.Status == "" {
		req.Status = models.ProductActive
	}
	if err := utils.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// applyRequest copies the request onto product and checks the category references.
func (h *ProductHandler) applyRequest(tx *gorm.DB, product *models.Product, req *productRequest) error {
	categoryID := uuid.MustParse(req.CategoryID)
	if err := requireCategoryKind(tx, categoryID, models.KindCategory); err != nil {
		return err
	}

	product.CollectionID = nil
	if req.CollectionID != "" {
		collectionID := uuid.MustParse(req.CollectionID)
		if err := requireCategoryKind(tx, collectionID, models.KindCollection); err != nil {
			return err
		}
		product.CollectionID = &collectionID
	}

	product.Title = req.Title
	product.Description = req.Description
	product.Brand = req.Brand
	product.CategoryID = categoryID
	product.Price = req.Price
	product.Discount = req.Discount
	product.Colors = utils.CleanStrings(req.Colors)
	product.Sizes = utils.CleanStrings(req.Sizes)
	product.Status = req.Status

	product.Variants = make([]models.ProductVariant, 0, len(req.Variants))
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			Color: strings.TrimSpace(v.Color),
			Size:  strings.TrimSpace(v.Size),
			Stock: v.Stock,
		})
	}

	product.Images = make([]models.ProductImage, 0, len(req.Images))
	for i, img := range req.Images {
		product.Images = append(product.Images, models.ProductImage{
			URL:          img.URL,
			PublicID:     img.PublicID,
			DisplayOrder: i,
		})
	}

	return nil
}

func requireCategoryKind(db *gorm.DB, id uuid.UUID, kind string) error {
	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid "+kind)
		}
		return err
	}
	if category.Kind != kind {
		return fiber.NewError(fiber.StatusBadRequest, "invalid "+kind)
	}
	return nil
}

func (h *ProductHandler) invalidate(c *fiber.Ctx) {
	if err := h.cache.Bump(c.UserContext(), productCacheNamespace); err != nil {
		log.Printf("[Product] Cache invalidation failed: %v", err)
	}
}

// CreateProduct inserts a product with its variants and images.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	req, err := h.parseProductRequest(c)
	if err != nil {
		return err
	}

	var product models.Product
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := h.applyRequest(tx, &product, req); err != nil {
			return err
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return err
	}
	h.invalidate(c)

	created, err := h.loadProduct(h.db, product.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
}

// UpdateProduct replaces a product, including its variants and images.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	req, err := h.parseProductRequest(c)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "product not found")
		}

		if err := h.applyRequest(tx, &product, req); err != nil {
			return err
		}

		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}

		variants, images := product.Variants, product.Images
		product.Variants, product.Images = nil, nil
		if err := tx.Omit("CreatedAt").Save(&product).Error; err != nil {
			return err
		}

		for i := range variants {
			variants[i].ProductID = id
		}
		for i := range images {
			images[i].ProductID = id
		}
		if len(variants) > 0 {
			if err := tx.Create(&variants).Error; err != nil {
				return err
			}
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.invalidate(c)

	updated, err := h.loadProduct(h.db, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

// DeleteProduct removes a product and its hosted images.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	product, err := h.loadProduct(h.db, id)
	if err != nil {
		return err
	}

	for _, img := range product.Images {
		if img.PublicID == "" {
			continue
		}
		if err := h.media.Destroy(c.UserContext(), img.PublicID); err != nil {
			log.Printf("[Product] Failed to delete image %s: %v", img.PublicID, err)
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	h.invalidate(c)

	return c.JSON(fiber.Map{"success": true})
}

// RegisterProductRoutes attaches product endpoints. Writes go through adminOnly.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, adminOnly ...fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)

	write := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, adminOnly...), handler)
	}
	router.Post("/", write(h.CreateProduct)...)
	router.Put("/:id", write(h.UpdateProduct)...)
	router.Delete("/:id", write(h.DeleteProduct)...)
}
