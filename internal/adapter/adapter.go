// Package adapter defines the storefront backend the wallet flows talk to.
// The OPF client in internal/opf is the production implementation.
package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"opf-quickbuy/internal/model"
)

// Storefront abstracts the cart and payment endpoints of one shopper's
// storefront session.
//
// Submission methods re-send their request up to maxAttempts times and report
// an exhausted budget as *model.PaymentError.
type Storefront interface {
	// GetActiveConfigurations lists payment configurations; the Quick Buy one
	// is chosen with model.SelectQuickBuyConfiguration.
	GetActiveConfigurations(ctx context.Context) ([]model.ActiveConfiguration, error)

	// GetSupportedDeliveryModes quotes delivery modes for the cart address.
	GetSupportedDeliveryModes(ctx context.Context) ([]model.DeliveryMode, error)
	SetDeliveryMode(ctx context.Context, modeID string) error

	// SetDeliveryAddress creates an address and assigns it to the cart.
	SetDeliveryAddress(ctx context.Context, addr model.Address) (*model.Address, error)

	CreateCartGuestUser(ctx context.Context) error
	UpdateCartGuestUserEmail(ctx context.Context, email string) error
	SetPaymentInfo(ctx context.Context) error

	// GetApplePayWebSession validates the merchant with Apple. The session
	// is opaque to this service.
	GetApplePayWebSession(ctx context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error)

	SubmitPayment(ctx context.Context, paymentSessionID string, req *model.PaymentSubmissionRequest, maxAttempts int) (*model.PaymentResponse, error)
	SubmitPaymentComplete(ctx context.Context, req *model.PaymentSubmitCompleteRequest, maxAttempts int) (*model.PaymentResponse, error)
	PlaceOrder(ctx context.Context) (*model.Order, error)
	VerifyPayment(ctx context.Context, params url.Values) error

	// Origin and ContextPath locate storefront pages for browser redirects.
	Origin() string
	ContextPath() string
}

// Factory binds a Storefront to the shopper identified by request cookies.
type Factory interface {
	ForShopper(cookies []*http.Cookie) Storefront
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(cookies []*http.Cookie) Storefront

// ForShopper calls f.
func (f FactoryFunc) ForShopper(cookies []*http.Cookie) Storefront {
	return f(cookies)
}
