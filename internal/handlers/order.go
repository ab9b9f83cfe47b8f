package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/config"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const defaultOrderLimit = 10

var errEmptyCart = fiber.NewError(fiber.StatusBadRequest, "cart is empty")

// OrderHandler manages checkout and order lookups.
type OrderHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	payments services.PaymentGateway
	alerts   services.AdminAlerter
	activity services.ActivityLog
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, cfg *config.Config, payments services.PaymentGateway, alerts services.AdminAlerter, activity services.ActivityLog) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg, payments: payments, alerts: alerts, activity: activity}
}

// snapshotCart copies the cart lines into order items.
func snapshotCart(tx *gorm.DB, userID uuid.UUID) ([]models.OrderItem, float64, error) {
	cart, err := buildCartDTO(tx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(cart.Items) == 0 {
		return nil, 0, errEmptyCart
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, models.OrderItem{
			ProductID:  line.ProductID,
			Quantity:   line.Qty,
			PriceAtAdd: line.PriceAtAdd,
			Variant:    line.Variant,
			Title:      line.Title,
			Image:      line.Image,
		})
	}
	return items, cart.Total, nil
}

// placeOrder snapshots the cart into a new order and empties the cart in one transaction.
func placeOrder(db *gorm.DB, order *models.Order) error {
	return db.Transaction(func(tx *gorm.DB) error {
		items, total, err := snapshotCart(tx, order.UserID)
		if err != nil {
			return err
		}
		order.Items = items
		if order.Total <= 0 {
			order.Total = total
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return clearCart(tx, order.UserID)
	})
}

func (h *OrderHandler) recordOrder(c *fiber.Ctx, order *models.Order, action string, actorID uuid.UUID, data map[string]interface{}) {
	recordActivity(c.UserContext(), h.activity, services.Activity{
		SubjectType: services.SubjectOrder,
		SubjectID:   order.ID.String(),
		Action:      action,
		ActorID:     actorID.String(),
		Data:        data,
	})
}

// CreatePaypalOrder starts a PayPal checkout for the current cart.
func (h *OrderHandler) CreatePaypalOrder(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	cart, err := buildCartDTO(h.db, userID)
	if err != nil {
		return err
	}
	if len(cart.Items) == 0 || cart.Total <= 0 {
		return errEmptyCart
	}

	session, err := h.payments.CreateOrder(c.UserContext(), services.CheckoutRequest{
		Total:     cart.Total,
		CustomID:  userID.String(),
		ReturnURL: h.cfg.PublicURL + "/api/paypal/capture-order",
		CancelURL: h.cfg.PublicURL + "/cart",
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": session})
}

func checkoutLocale(referer string) string {
	if strings.Contains(referer, "/en/") {
		return "en"
	}
	return "es"
}

// CapturePaypalOrder is the PayPal return URL. It captures the payment,
// records a paid order and redirects the browser back to the storefront.
func (h *OrderHandler) CapturePaypalOrder(c *fiber.Ctx) error {
	token := c.Query("token")
	failURL := h.cfg.PublicURL + "/cart?payment=error"
	successURL := fmt.Sprintf("%s/%s/checkout/success?orderId=%s", h.cfg.PublicURL, checkoutLocale(c.Get("Referer")), token)

	if token == "" {
		return c.Redirect(failURL, fiber.StatusFound)
	}

	var existing int64
	if err := h.db.Model(&models.Order{}).Where("paypal_order_id = ?", token).Count(&existing).Error; err != nil {
		log.Printf("[PayPal] Lookup for %s failed: %v", token, err)
		return c.Redirect(failURL, fiber.StatusFound)
	}
	if existing > 0 {
		return c.Redirect(successURL, fiber.StatusFound)
	}

	captured, err := h.payments.CaptureOrder(c.UserContext(), token)
	if err != nil {
		log.Printf("[PayPal] Capture of %s failed: %v", token, err)
		return c.Redirect(failURL, fiber.StatusFound)
	}

	userID, err := uuid.Parse(captured.CustomID)
	if err != nil {
		log.Printf("[PayPal] Capture %s has invalid custom id %q", token, captured.CustomID)
		return c.Redirect(failURL, fiber.StatusFound)
	}

	order := models.Order{
		UserID:         userID,
		PaypalOrderID:  token,
		Total:          captured.Amount,
		Status:         models.OrderPaid,
		PaymentMethod:  models.PaymentPaypal,
		ShippingStatus: models.ShippingPending,
	}
	err = placeOrder(h.db, &order)
	if isEmptyCart(err) {
		log.Printf("[PayPal] Cart of %s was empty at capture of %s, recording order without items", userID, token)
		err = h.db.Create(&order).Error
	}
	if err != nil {
		var dup int64
		if cerr := h.db.Model(&models.Order{}).Where("paypal_order_id = ?", token).Count(&dup).Error; cerr != nil {
			log.Printf("[PayPal] Failed to record order %s: %v (duplicate check: %v)", token, err, cerr)
			return c.Redirect(failURL, fiber.StatusFound)
		}
		if dup > 0 {
			return c.Redirect(successURL, fiber.StatusFound)
		}
		log.Printf("[PayPal] Failed to record order %s: %v", token, err)
		return c.Redirect(failURL, fiber.StatusFound)
	}

	h.recordOrder(c, &order, "created", userID, map[string]interface{}{
		"paypal_order_id": token,
		"total":           order.Total,
		"payment_method":  order.PaymentMethod,
	})
	h.notifyNewOrder(&order)

	return c.Redirect(successURL, fiber.StatusFound)
}

// notifyNewOrder builds the admin alert now and sends it in the background.
func (h *OrderHandler) notifyNewOrder(order *models.Order) {
	n := services.OrderNotification{
		OrderID:       order.ID.String(),
		PaypalOrderID: order.PaypalOrderID,
		TotalAmount:   order.Total,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
	}
	if user, err := loadUser(h.db, order.UserID); err == nil {
		n.CustomerName = user.Name
		n.CustomerEmail = user.Email
	}
	for _, item := range order.Items {
		n.Items = append(n.Items, services.OrderItemNotification{
			Name:     item.Title,
			Quantity: item.Quantity,
			Price:    item.PriceAtAdd,
		})
	}
	go func() {
		if err := h.alerts.NotifyNewOrder(n); err != nil {
			log.Printf("[Order] Failed to notify admins about %s: %v", n.PaypalOrderID, err)
		}
	}()
}

// CreateTestingOrder places a pending order from the cart without payment.
func (h *OrderHandler) CreateTestingOrder(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	order := models.Order{
		UserID:         userID,
		PaypalOrderID:  "TEST-" + strings.ToUpper(uuid.NewString()),
		Status:         models.OrderPending,
		PaymentMethod:  models.PaymentTesting,
		ShippingStatus: models.ShippingPending,
	}
	if err := placeOrder(h.db, &order); err != nil {
		return err
	}

	h.recordOrder(c, &order, "created", userID, map[string]interface{}{
		"paypal_order_id": order.PaypalOrderID,
		"total":           order.Total,
		"payment_method":  order.PaymentMethod,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c, defaultOrderLimit)
	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	orders := []models.Order{}
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

func findOrder(db *gorm.DB, column, value string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").Preload("User").
		First(&order, column+" = ?", value).Error; err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	return &order, nil
}

// GetOrder returns an order by its PayPal order id. Only the owner or an admin may see it.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, role, err := requireIdentity(c)
	if err != nil {
		return err
	}

	order, err := findOrder(h.db, "paypal_order_id", c.Params("id"))
	if err != nil {
		return err
	}
	if order.UserID != userID && role != models.RoleAdmin {
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type shippingStatusRequest struct {
	ShippingStatus string `json:"shipping_status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

// updateShipping changes the shipping status of the order matched by column.
func (h *OrderHandler) updateShipping(c *fiber.Ctx, column, value string) error {
	actorID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req shippingStatusRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	order, err := findOrder(h.db, column, value)
	if err != nil {
		return err
	}

	previous := order.ShippingStatus
	if previous != req.ShippingStatus {
		if err := h.db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("shipping_status", req.ShippingStatus).Error; err != nil {
			return err
		}
		order.ShippingStatus = req.ShippingStatus

		h.recordOrder(c, order, "shipping_status", actorID, map[string]interface{}{
			"from": previous,
			"to":   req.ShippingStatus,
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateShippingStatus changes shipping status by PayPal order id.
func (h *OrderHandler) UpdateShippingStatus(c *fiber.Ctx) error {
	return h.updateShipping(c, "paypal_order_id", c.Params("id"))
}

// AdminUpdateOrder changes shipping status by internal order id.
func (h *OrderHandler) AdminUpdateOrder(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	return h.updateShipping(c, "id", id.String())
}

// AdminGetOrder returns an order by internal id.
func (h *OrderHandler) AdminGetOrder(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	order, err := findOrder(h.db, "id", id.String())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// AdminListOrders returns every order with optional status filters and search.
func (h *OrderHandler) AdminListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, defaultOrderLimit)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if shipping := c.Query("shipping_status"); models.ValidShippingStatus(shipping) {
		query = query.Where("shipping_status = ?", shipping)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		users := h.db.Model(&models.User{}).Select("id").Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", q, q)
		query = query.Where("LOWER(paypal_order_id) LIKE ? OR user_id IN (?)", q, users)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	orders := []models.Order{}
	if err := query.Preload("Items").Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// OrderHistory returns the activity timeline of an order.
func (h *OrderHandler) OrderHistory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if _, err := findOrder(h.db, "id", id.String()); err != nil {
		return err
	}

	entries, err := h.activity.List(c.UserContext(), services.SubjectOrder, id.String())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": entries})
}

// isEmptyCart reports whether err came from checking out an empty cart.
func isEmptyCart(err error) bool {
	return errors.Is(err, errEmptyCart)
}
