package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/plutov/paypal/v4"
)

// ErrPaymentNotCompleted is returned when a capture did not complete.
var ErrPaymentNotCompleted = errors.New("payment not completed")

// CheckoutRequest describes an order to be approved by the buyer.
type CheckoutRequest struct {
	Total     float64
	CustomID  string
	ReturnURL string
	CancelURL string
}

// CheckoutSession is a created provider order awaiting approval.
type CheckoutSession struct {
	ID         string `json:"id"`
	ApproveURL string `json:"approve_url"`
}

// CaptureResult is a completed payment.
type CaptureResult struct {
	OrderID  string
	CustomID string
	Amount   float64
}

// PaymentGateway creates and captures buyer approved orders.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error)
}

// PaypalGateway talks to the PayPal Orders v2 API.
type PaypalGateway struct {
	client *paypal.Client
}

// NewPaypalGateway creates a gateway. mode is "live" or "sandbox".
func NewPaypalGateway(clientID, secret, mode string) (*PaypalGateway, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, err
	}
	return &PaypalGateway{client: client}, nil
}

// CreateOrder creates a USD order with intent CAPTURE.
func (g *PaypalGateway) CreateOrder(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if _, err := g.client.GetAccessToken(ctx); err != nil {
		return CheckoutSession{}, err
	}

	units := []paypal.PurchaseUnitRequest{{
		CustomID: req.CustomID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    fmt.Sprintf("%.2f", req.Total),
		},
	}}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return CheckoutSession{}, err
	}

	session := CheckoutSession{ID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			session.ApproveURL = link.Href
		}
	}
	return session, nil
}

// CaptureOrder captures an approved order and returns its custom id and amount.
func (g *PaypalGateway) CaptureOrder(ctx context.Context, orderID string) (CaptureResult, error) {
	if _, err := g.client.GetAccessToken(ctx); err != nil {
		return CaptureResult{}, err
	}

	captured, err := g.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return CaptureResult{}, err
	}
	if captured.Status != "COMPLETED" {
		return CaptureResult{}, ErrPaymentNotCompleted
	}

	order, err := g.client.GetOrder(ctx, orderID)
	if err != nil {
		return CaptureResult{}, err
	}
	if len(order.PurchaseUnits) == 0 {
		return CaptureResult{}, errors.New("paypal order has no purchase units")
	}

	unit := order.PurchaseUnits[0]
	result := CaptureResult{OrderID: order.ID, CustomID: unit.CustomID}
	if unit.Amount != nil {
		result.Amount, _ = strconv.ParseFloat(unit.Amount.Value, 64)
	}
	return result, nil
}
