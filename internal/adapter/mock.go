package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"opf-quickbuy/internal/model"
)

// Mock implements Storefront for testing.
// Each method can be configured via function fields; unset fields use a
// benign default. Every call is recorded by name in Calls.
type Mock struct {
	GetActiveConfigurationsFunc   func(ctx context.Context) ([]model.ActiveConfiguration, error)
	GetSupportedDeliveryModesFunc func(ctx context.Context) ([]model.DeliveryMode, error)
	SetDeliveryModeFunc           func(ctx context.Context, modeID string) error
	SetDeliveryAddressFunc        func(ctx context.Context, addr model.Address) (*model.Address, error)
	CreateCartGuestUserFunc       func(ctx context.Context) error
	UpdateCartGuestUserEmailFunc  func(ctx context.Context, email string) error
	SetPaymentInfoFunc            func(ctx context.Context) error
	GetApplePayWebSessionFunc     func(ctx context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error)
	SubmitPaymentFunc             func(ctx context.Context, paymentSessionID string, req *model.PaymentSubmissionRequest, maxAttempts int) (*model.PaymentResponse, error)
	SubmitPaymentCompleteFunc     func(ctx context.Context, req *model.PaymentSubmitCompleteRequest, maxAttempts int) (*model.PaymentResponse, error)
	PlaceOrderFunc                func(ctx context.Context) (*model.Order, error)
	VerifyPaymentFunc             func(ctx context.Context, params url.Values) error

	OriginURL string
	Path      string

	mu        sync.Mutex
	calls     []string
	addresses int
}

func (m *Mock) record(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls in order, e.g. "SetDeliveryMode(pickup)".
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Called reports whether a call with the given name was recorded.
func (m *Mock) Called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if len(c) > len(name) && c[:len(name)] == name && c[len(name)] == '(' {
			return true
		}
	}
	return false
}

// GetActiveConfigurations calls the configured func or returns no configurations.
func (m *Mock) GetActiveConfigurations(ctx context.Context) ([]model.ActiveConfiguration, error) {
	m.record("GetActiveConfigurations()")
	if m.GetActiveConfigurationsFunc != nil {
		return m.GetActiveConfigurationsFunc(ctx)
	}
	return nil, nil
}

// GetSupportedDeliveryModes calls the configured func or returns no modes.
func (m *Mock) GetSupportedDeliveryModes(ctx context.Context) ([]model.DeliveryMode, error) {
	m.record("GetSupportedDeliveryModes()")
	if m.GetSupportedDeliveryModesFunc != nil {
		return m.GetSupportedDeliveryModesFunc(ctx)
	}
	return nil, nil
}

// SetDeliveryMode calls the configured func or succeeds.
func (m *Mock) SetDeliveryMode(ctx context.Context, modeID string) error {
	m.record("SetDeliveryMode(%s)", modeID)
	if m.SetDeliveryModeFunc != nil {
		return m.SetDeliveryModeFunc(ctx, modeID)
	}
	return nil
}

// SetDeliveryAddress calls the configured func or echoes addr with a fresh id.
func (m *Mock) SetDeliveryAddress(ctx context.Context, addr model.Address) (*model.Address, error) {
	m.record("SetDeliveryAddress(%s)", addr.Line1)
	if m.SetDeliveryAddressFunc != nil {
		return m.SetDeliveryAddressFunc(ctx, addr)
	}
	m.mu.Lock()
	m.addresses++
	addr.ID = fmt.Sprintf("addr-%d", m.addresses)
	m.mu.Unlock()
	return &addr, nil
}

// CreateCartGuestUser calls the configured func or succeeds.
func (m *Mock) CreateCartGuestUser(ctx context.Context) error {
	m.record("CreateCartGuestUser()")
	if m.CreateCartGuestUserFunc != nil {
		return m.CreateCartGuestUserFunc(ctx)
	}
	return nil
}

// UpdateCartGuestUserEmail calls the configured func or succeeds.
func (m *Mock) UpdateCartGuestUserEmail(ctx context.Context, email string) error {
	m.record("UpdateCartGuestUserEmail(%s)", email)
	if m.UpdateCartGuestUserEmailFunc != nil {
		return m.UpdateCartGuestUserEmailFunc(ctx, email)
	}
	return nil
}

// SetPaymentInfo calls the configured func or succeeds.
func (m *Mock) SetPaymentInfo(ctx context.Context) error {
	m.record("SetPaymentInfo()")
	if m.SetPaymentInfoFunc != nil {
		return m.SetPaymentInfoFunc(ctx)
	}
	return nil
}

// GetApplePayWebSession calls the configured func or returns an empty session.
func (m *Mock) GetApplePayWebSession(ctx context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error) {
	m.record("GetApplePayWebSession(%s)", req.CartID)
	if m.GetApplePayWebSessionFunc != nil {
		return m.GetApplePayWebSessionFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

// SubmitPayment calls the configured func or returns an error.
func (m *Mock) SubmitPayment(ctx context.Context, paymentSessionID string, req *model.PaymentSubmissionRequest, maxAttempts int) (*model.PaymentResponse, error) {
	m.record("SubmitPayment(%s)", req.PaymentMethod)
	if m.SubmitPaymentFunc != nil {
		return m.SubmitPaymentFunc(ctx, paymentSessionID, req, maxAttempts)
	}
	return nil, model.NewNetworkFailure(0, "error")
}

// SubmitPaymentComplete calls the configured func or returns an error.
func (m *Mock) SubmitPaymentComplete(ctx context.Context, req *model.PaymentSubmitCompleteRequest, maxAttempts int) (*model.PaymentResponse, error) {
	m.record("SubmitPaymentComplete(%s)", req.PaymentSessionID)
	if m.SubmitPaymentCompleteFunc != nil {
		return m.SubmitPaymentCompleteFunc(ctx, req, maxAttempts)
	}
	return nil, model.NewNetworkFailure(0, "error")
}

// PlaceOrder calls the configured func or returns an error.
func (m *Mock) PlaceOrder(ctx context.Context) (*model.Order, error) {
	m.record("PlaceOrder()")
	if m.PlaceOrderFunc != nil {
		return m.PlaceOrderFunc(ctx)
	}
	return nil, model.NewUpstreamError("storefront", fmt.Errorf("place order not configured"))
}

// VerifyPayment calls the configured func or succeeds.
func (m *Mock) VerifyPayment(ctx context.Context, params url.Values) error {
	m.record("VerifyPayment(%s)", params.Get("opfPaymentSessionId"))
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, params)
	}
	return nil
}

// Origin returns OriginURL or a fixed test origin.
func (m *Mock) Origin() string {
	if m.OriginURL != "" {
		return m.OriginURL
	}
	return "https://shop.example.com"
}

// ContextPath returns Path or a fixed test context path.
func (m *Mock) ContextPath() string {
	if m.Path != "" {
		return m.Path
	}
	return "/electronics/en/USD"
}

// Factory returns a Factory that hands out m for every shopper.
func (m *Mock) Factory() Factory {
	return FactoryFunc(func([]*http.Cookie) Storefront { return m })
}

// Verify Mock implements Storefront interface at compile time.
var _ Storefront = (*Mock)(nil)
