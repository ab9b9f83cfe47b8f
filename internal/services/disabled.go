package services

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by integrations whose credentials are missing.
var ErrNotConfigured = errors.New("integration not configured")

// DisabledMediaStore rejects uploads when no media host is configured.
type DisabledMediaStore struct{}

// Upload always fails.
func (DisabledMediaStore) Upload(context.Context, io.Reader, UploadOptions) (UploadResult, error) {
	return UploadResult{}, ErrNotConfigured
}

// Destroy always fails.
func (DisabledMediaStore) Destroy(context.Context, string) error { return ErrNotConfigured }

// DisabledPaymentGateway rejects checkouts when PayPal is not configured.
type DisabledPaymentGateway struct{}

// CreateOrder always fails.
func (DisabledPaymentGateway) CreateOrder(context.Context, CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{}, ErrNotConfigured
}

// CaptureOrder always fails.
func (DisabledPaymentGateway) CaptureOrder(context.Context, string) (CaptureResult, error) {
	return CaptureResult{}, ErrNotConfigured
}
