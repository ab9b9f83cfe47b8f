package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/helpdeskpro/internal/middleware"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/utils"
)

const (
	maxCartLineQty   = 10
	untitledProduct  = "Untitled"
	placeholderImage = "/placeholder.png"
)

// CartHandler manages the signed-in user's cart.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

type cartItemDTO struct {
	ProductID  uuid.UUID `json:"product_id"`
	Title      string    `json:"title"`
	Image      string    `json:"image"`
	Qty        int       `json:"qty"`
	PriceAtAdd float64   `json:"price_at_add"`
	Variant    string    `json:"variant"`
}

type cartDTO struct {
	Items []cartItemDTO `json:"items"`
	Total float64       `json:"total"`
}

func emptyCart() cartDTO {
	return cartDTO{Items: []cartItemDTO{}}
}

// buildCartDTO reads the cart lines and decorates them with product titles and images.
func buildCartDTO(db *gorm.DB, userID uuid.UUID) (cartDTO, error) {
	var cart models.Cart
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Where("user_id = ?", userID).First(&cart).Error
	if err == gorm.ErrRecordNotFound {
		return emptyCart(), nil
	}
	if err != nil {
		return cartDTO{}, err
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products := map[uuid.UUID]*models.Product{}
	if len(ids) > 0 {
		var found []models.Product
		if err := db.Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order asc") }).
			Where("id IN ?", ids).Find(&found).Error; err != nil {
			return cartDTO{}, err
		}
		for i := range found {
			products[found[i].ID] = &found[i]
		}
	}

	dto := emptyCart()
	for _, item := range cart.Items {
		line := cartItemDTO{
			ProductID:  item.ProductID,
			Title:      untitledProduct,
			Image:      placeholderImage,
			Qty:        item.Quantity,
			PriceAtAdd: item.PriceAtAdd,
			Variant:    item.Variant,
		}
		if p, ok := products[item.ProductID]; ok {
			if p.Title != "" {
				line.Title = p.Title
			}
			line.Image = p.PrimaryImage(placeholderImage)
		}
		dto.Items = append(dto.Items, line)
		dto.Total += item.PriceAtAdd * float64(item.Quantity)
	}

	return dto, nil
}

// ensureCart returns the user's cart, creating it when missing.
func ensureCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	created := models.Cart{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&created).Error; err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// addLine inserts a cart line or increments an existing one, never past
// maxCartLineQty. The price snapshot of an existing line is kept unless it
// was never captured.
func addLine(tx *gorm.DB, cartID, productID uuid.UUID, variant string, qty int, price float64) error {
	item := models.CartItem{
		CartID:     cartID,
		ProductID:  productID,
		Variant:    variant,
		Quantity:   qty,
		PriceAtAdd: price,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}, {Name: "variant"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("CASE WHEN cart_items.quantity + excluded.quantity > ? THEN ? ELSE cart_items.quantity + excluded.quantity END",
				maxCartLineQty, maxCartLineQty),
			"price_at_add": gorm.Expr("CASE WHEN cart_items.price_at_add = 0 THEN excluded.price_at_add ELSE cart_items.price_at_add END"),
			"updated_at":   gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&item).Error
}

func (h *CartHandler) respond(c *fiber.Ctx, userID uuid.UUID) error {
	dto, err := buildCartDTO(h.db, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto})
}

// GetCart returns the cart. Anonymous visitors get an empty cart.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return c.JSON(fiber.Map{"success": true, "data": emptyCart()})
	}
	return h.respond(c, userID)
}

type addToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,min=1,max=10"`
	Variant   string `json:"variant" validate:"max=100"`
}

// AddItem adds a product to the cart, capturing its current discounted price.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req addToCartRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	productID := uuid.MustParse(req.ProductID)
	variant := strings.TrimSpace(req.Variant)

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		return notFoundOr(err, "product not found")
	}
	if product.Status == models.ProductInactive {
		return fiber.NewError(fiber.StatusBadRequest, "product is not available")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}
		return addLine(tx, cart.ID, productID, variant, req.Qty, product.EffectivePrice())
	})
	if err != nil {
		return err
	}

	return h.respond(c, userID)
}

type updateCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"min=0,max=10"`
	Variant   string `json:"variant"`
}

// UpdateItem sets a line quantity. Quantity 0 removes the line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req updateCartRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	var cart models.Cart
	if err := h.db.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(fiber.Map{"success": true, "data": emptyCart()})
		}
		return err
	}

	line := h.db.Model(&models.CartItem{}).Where("cart_id = ? AND product_id = ? AND variant = ?",
		cart.ID, uuid.MustParse(req.ProductID), strings.TrimSpace(req.Variant))

	var res *gorm.DB
	if req.Qty == 0 {
		res = line.Delete(&models.CartItem{})
	} else {
		res = line.Update("quantity", req.Qty)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "item not found in cart")
	}

	return h.respond(c, userID)
}

type removeCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Variant   string `json:"variant"`
}

// RemoveItem deletes one line from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req removeCartRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	sub := h.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	if err := h.db.Where("cart_id IN (?) AND product_id = ? AND variant = ?",
		sub, uuid.MustParse(req.ProductID), strings.TrimSpace(req.Variant)).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}

	return h.respond(c, userID)
}

// ClearCart removes every line from the cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	if err := clearCart(h.db, userID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": emptyCart()})
}

func clearCart(tx *gorm.DB, userID uuid.UUID) error {
	sub := tx.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	return tx.Where("cart_id IN (?)", sub).Delete(&models.CartItem{}).Error
}

type guestCartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Variant   string `json:"variant"`
}

type mergeCartRequest struct {
	Items []guestCartItem `json:"items"`
}

// MergeCart folds a guest cart into the user's cart after sign-in. Invalid
// lines are dropped and prices are snapshotted from the catalog.
func (h *CartHandler) MergeCart(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req mergeCartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	type mergeLine struct {
		productID uuid.UUID
		variant   string
		qty       int
	}
	lines := make([]mergeLine, 0, len(req.Items))
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil || item.Qty <= 0 {
			continue
		}
		qty := item.Qty
		if qty > maxCartLineQty {
			qty = maxCartLineQty
		}
		lines = append(lines, mergeLine{productID: id, variant: strings.TrimSpace(item.Variant), qty: qty})
		ids = append(ids, id)
	}

	if len(lines) > 0 {
		var products []models.Product
		if err := h.db.Where("id IN ? AND status = ?", ids, models.ProductActive).Find(&products).Error; err != nil {
			return err
		}
		prices := make(map[uuid.UUID]float64, len(products))
		for i := range products {
			prices[products[i].ID] = products[i].EffectivePrice()
		}

		err = h.db.Transaction(func(tx *gorm.DB) error {
			cart, err := ensureCart(tx, userID)
			if err != nil {
				return err
			}
			for _, line := range lines {
				price, ok := prices[line.productID]
				if !ok {
					continue
				}
				if err := addLine(tx, cart.ID, line.productID, line.variant, line.qty, price); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return h.respond(c, userID)
}
