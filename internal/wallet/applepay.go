package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/address"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/payment"
)

// Apple Pay request defaults.
var (
	applePayCapabilities  = []string{"supports3DS"}
	applePayNetworks      = []string{"visa", "masterCard", "amex", "discover"}
	applePayContactFields = []string{"email", "name", "postalAddress"}
)

// Apple Pay sheet messages.
const (
	MessageNoShipmentMethods = "No shipment methods available for this delivery address"
	applePayErrorUnknown     = "unknown"
)

// ApplePaySession handles the ApplePaySession callbacks for one checkout.
type ApplePaySession struct {
	*Orchestrator
}

// NewApplePaySession creates an idle Apple Pay session.
func NewApplePaySession(id, key string, opts Options) *ApplePaySession {
	return &ApplePaySession{newOrchestrator(id, key, model.ProviderApplePay, opts)}
}

// ApplePayStart is what the browser needs to construct an ApplePaySession.
type ApplePayStart struct {
	SessionID string                       `json:"sessionId"`
	Version   int                          `json:"version"`
	Request   model.ApplePayPaymentRequest `json:"paymentRequest"`
}

// Start begins a payment attempt for cart. clientVersion is the newest
// ApplePaySession version the browser supports; empty skips the check.
func (s *ApplePaySession) Start(ctx context.Context, sf adapter.Storefront, cart *model.Cart, cfg *model.ApplePayConfig, clientVersion string) (*ApplePayStart, error) {
	if err := s.checkVersion(clientVersion); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &model.ApplePayConfig{}
	}
	return start(ctx, s.Orchestrator, sf, cart, func(ctx context.Context) (*ApplePayStart, error) {
		return &ApplePayStart{
			SessionID: s.id,
			Version:   s.settings.ApplePayVersion,
			Request:   s.paymentRequest(cfg),
		}, nil
	})
}

func (s *ApplePaySession) checkVersion(clientVersion string) error {
	if clientVersion == "" || s.settings.ApplePayMinVersion == "" {
		return nil
	}
	v := clientVersion
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return model.NewValidationError("applePayVersion", fmt.Sprintf("%q is not a version", clientVersion))
	}
	if semver.Compare(v, s.settings.ApplePayMinVersion) < 0 {
		return model.NewValidationError("applePayVersion", fmt.Sprintf("%s is older than %s", clientVersion, s.settings.ApplePayMinVersion))
	}
	return nil
}

func (s *ApplePaySession) paymentRequest(cfg *model.ApplePayConfig) model.ApplePayPaymentRequest {
	req := model.ApplePayPaymentRequest{
		CountryCode:                   s.countryCode(cfg.CountryCode),
		CurrencyCode:                  s.tx.Total.Currency,
		MerchantCapabilities:          applePayCapabilities,
		SupportedNetworks:             applePayNetworks,
		RequiredShippingContactFields: applePayContactFields,
		RequiredBillingContactFields:  applePayContactFields,
		ShippingType:                  model.ApplePayShippingTypeShipping,
		ShippingMethods:               []model.ApplePayShippingMethod{},
		Total:                         s.total(),
	}
	if s.tx.DeliveryInfo.Type == model.DeliveryPickup {
		req.ShippingType = model.ApplePayShippingTypeStorePickup
		req.RequiredShippingContactFields = []string{"email", "name"}
	}
	return req
}

func (s *ApplePaySession) total() model.ApplePayLineItem {
	return model.ApplePayLineItem{Label: s.tx.Total.Label, Amount: s.tx.Total.Amount}
}

// refreshTotal takes the sheet total from the cart price.
func (s *ApplePaySession) refreshTotal() error {
	cart := s.tx.Cart
	if cart == nil || cart.TotalPrice == nil || cart.TotalPrice.Value.IsZero() {
		return &payment.FlowError{Message: "Total Price not available"}
	}
	s.tx.SetTotalAmount(cart.TotalPrice.Value)
	return nil
}

// ValidateMerchant obtains the opaque merchant session for
// completeMerchantValidation.
func (s *ApplePaySession) ValidateMerchant(ctx context.Context, validationURL string) (json.RawMessage, error) {
	if validationURL == "" {
		return nil, model.NewValidationError("validationUrl", "is required")
	}
	return run(ctx, s.Orchestrator, EventValidateMerchant, func(ctx context.Context) (json.RawMessage, error) {
		if err := s.ensureGuest(ctx); err != nil {
			return nil, err
		}
		return s.sf.GetApplePayWebSession(ctx, model.ApplePayWebSessionRequest{
			ValidationURL:     validationURL,
			Initiative:        "web",
			InitiativeContext: s.hostname(),
			CartID:            s.tx.Cart.Code,
		})
	})
}

// ShippingContactSelected quotes delivery modes for the partially revealed
// contact. No available mode is reported in the sheet and keeps the session
// open.
func (s *ApplePaySession) ShippingContactSelected(ctx context.Context, contact *model.ApplePayPaymentContact) (*model.ApplePayUpdate, error) {
	return run(ctx, s.Orchestrator, EventSelectShippingContact, func(ctx context.Context) (*model.ApplePayUpdate, error) {
		if err := s.setAddress(ctx, address.Normalize(address.FromAppleContact(contact), true)); err != nil {
			return nil, err
		}
		modes, err := s.sf.GetSupportedDeliveryModes(ctx)
		if err != nil {
			return nil, err
		}
		if len(modes) == 0 {
			return &model.ApplePayUpdate{
				NewTotal: s.total(),
				Errors:   []model.ApplePayError{{Code: applePayErrorUnknown, Message: MessageNoShipmentMethods}},
			}, nil
		}

		methods := make([]model.ApplePayShippingMethod, 0, len(modes))
		for _, m := range modes {
			methods = append(methods, shippingMethod(m))
		}
		if err := s.refreshTotal(); err != nil {
			return nil, err
		}
		return &model.ApplePayUpdate{NewTotal: s.total(), NewShippingMethods: methods}, nil
	})
}

func shippingMethod(m model.DeliveryMode) model.ApplePayShippingMethod {
	amount := "0.00"
	if m.DeliveryCost != nil {
		amount = model.FormatAmount(m.DeliveryCost.Value)
	}
	detail := m.Description
	if detail == "" {
		detail = m.Name
	}
	return model.ApplePayShippingMethod{
		Identifier: m.Code,
		Label:      m.Name,
		Amount:     amount,
		Detail:     detail,
	}
}

// ShippingMethodSelected sets the chosen delivery mode.
func (s *ApplePaySession) ShippingMethodSelected(ctx context.Context, method model.ApplePayShippingMethod) (*model.ApplePayUpdate, error) {
	if method.Identifier == "" {
		return nil, model.NewValidationError("shippingMethod.identifier", "is required")
	}
	return run(ctx, s.Orchestrator, EventSelectShippingMethod, func(ctx context.Context) (*model.ApplePayUpdate, error) {
		if err := s.sf.SetDeliveryMode(ctx, method.Identifier); err != nil {
			return nil, err
		}
		if err := s.refreshTotal(); err != nil {
			return nil, err
		}
		return &model.ApplePayUpdate{NewTotal: s.total()}, nil
	})
}

// PaymentMethodSelected echoes the current total.
func (s *ApplePaySession) PaymentMethodSelected(ctx context.Context) (*model.ApplePayUpdate, error) {
	return run(ctx, s.Orchestrator, EventSelectPaymentMethod, func(ctx context.Context) (*model.ApplePayUpdate, error) {
		return &model.ApplePayUpdate{NewTotal: s.total()}, nil
	})
}

// Authorize completes the purchase with the authorized payment. Failures
// are reported as a FAILURE result and end the session; only a cancelled
// session yields an error.
func (s *ApplePaySession) Authorize(ctx context.Context, p *model.ApplePayPayment, browser *model.BrowserInfo) (*model.ApplePayAuthorizationResult, error) {
	if p == nil {
		return nil, model.NewValidationError("payment", "is required")
	}
	return run(ctx, s.Orchestrator, EventAuthorize, func(ctx context.Context) (*model.ApplePayAuthorizationResult, error) {
		out, err := s.authorize(ctx, p, browser)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil && out.Error != nil {
			err = out.Error
		}
		if err != nil {
			s.fail(ctx, err)
			return &model.ApplePayAuthorizationResult{
				Status: model.ApplePayStatusFailure,
				Errors: []model.ApplePayError{{Code: applePayErrorUnknown, Message: failureMessage(err)}},
			}, nil
		}
		s.complete(ctx, out.RedirectURL)
		return &model.ApplePayAuthorizationResult{
			Status:      model.ApplePayStatusSuccess,
			RedirectURL: out.RedirectURL,
		}, nil
	})
}

func (s *ApplePaySession) authorize(ctx context.Context, p *model.ApplePayPayment, browser *model.BrowserInfo) (*payment.Outcome, error) {
	if p.BillingContact == nil {
		return nil, &payment.FlowError{Message: "Error: empty billingContact"}
	}
	shipping := s.tx.DeliveryInfo.Type == model.DeliveryShipping
	if shipping && p.ShippingContact == nil {
		return nil, &payment.FlowError{Message: "Error: empty shippingContact"}
	}

	if shipping {
		if err := s.setAddress(ctx, address.Normalize(address.FromAppleContact(p.ShippingContact), false)); err != nil {
			return nil, err
		}
	} else if err := s.sf.SetDeliveryMode(ctx, model.PickupDeliveryModeID); err != nil {
		return nil, err
	}

	email := p.BillingContact.EmailAddress
	if p.ShippingContact != nil && p.ShippingContact.EmailAddress != "" {
		email = p.ShippingContact.EmailAddress
	}
	if err := s.updateEmail(ctx, email); err != nil {
		return nil, err
	}

	token, err := encodeApplePayToken(p.Token.PaymentData)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Submit(ctx, s.sf, payment.Submission{
		Token:       token,
		Method:      model.PaymentMethodApplePay,
		BrowserInfo: browser,
	}, payment.Callbacks{})
}

// encodeApplePayToken base64-encodes the compact JSON of paymentData.
func encodeApplePayToken(data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", &payment.FlowError{Message: "Error: empty payment token"}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return "", fmt.Errorf("encoding apple pay token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(compact.Bytes()), nil
}

func failureMessage(err error) string {
	if msg := payment.UserMessage(err); msg != "" {
		return msg
	}
	return model.DefaultPaymentMessage
}
