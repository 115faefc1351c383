// MCP transport handler for the Quick Buy service using the official MCP Go SDK.
// Exposes the wallet session operations as MCP tools. The storefront session
// is taken from the Cookie header of the MCP HTTP request.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/browser"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/session"
	"opf-quickbuy/internal/wallet"
)

// === MCP Tool Input/Output Types ===
// Tool payloads avoid types with custom JSON encodings (decimals, raw JSON)
// so the inferred schemas match what goes over the wire.

// ConfigurationInput is the input schema for get_quickbuy_configuration.
type ConfigurationInput struct{}

// ConfigurationOutput describes the Quick Buy configuration.
type ConfigurationOutput struct {
	ID           int          `json:"id"`
	ProviderType string       `json:"provider_type"`
	DisplayName  string       `json:"display_name,omitempty"`
	Merchant     string       `json:"merchant,omitempty"`
	Wallets      []WalletView `json:"wallets"`
}

// WalletView is one enabled wallet of the configuration.
type WalletView struct {
	Provider    string `json:"provider"`
	MerchantID  string `json:"merchant_id,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
}

// CartInput is the storefront cart a wallet session is started for.
type CartInput struct {
	Code                  string `json:"code" jsonschema:"cart code"`
	GUID                  string `json:"guid,omitempty" jsonschema:"cart guid, identifies anonymous carts"`
	Store                 string `json:"store,omitempty" jsonschema:"store name shown as the merchant label"`
	Currency              string `json:"currency,omitempty" jsonschema:"ISO 4217 currency code"`
	TotalPrice            string `json:"total_price,omitempty" jsonschema:"cart total, e.g. 120.50"`
	TotalPriceWithTax     string `json:"total_price_with_tax,omitempty" jsonschema:"cart total including tax"`
	DeliveryItemsQuantity int    `json:"delivery_items_quantity" jsonschema:"number of items to ship, 0 for pickup orders"`
	UserUID               string `json:"user_uid,omitempty" jsonschema:"cart owner uid, anonymous when empty"`
	UserName              string `json:"user_name,omitempty" jsonschema:"cart owner name"`
}

// StartSessionInput is the input schema for start_wallet_session.
type StartSessionInput struct {
	Provider        string    `json:"provider" jsonschema:"APPLE_PAY or GOOGLE_PAY"`
	Cart            CartInput `json:"cart" jsonschema:"cart to pay for"`
	ApplePayVersion string    `json:"apple_pay_version,omitempty" jsonschema:"newest ApplePaySession version supported by the browser"`
}

// SessionInput identifies a wallet session.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"wallet session ID returned by start_wallet_session"`
}

// SessionView is the state of a wallet session.
type SessionView struct {
	ID           string              `json:"id"`
	Provider     string              `json:"provider"`
	State        string              `json:"state"`
	InProgress   bool                `json:"in_progress"`
	DeliveryType string              `json:"delivery_type,omitempty"`
	Total        *session.Total      `json:"total,omitempty"`
	AddressIDs   []string            `json:"address_ids"`
	LastError    *model.PaymentError `json:"last_error,omitempty"`
	RedirectURL  string              `json:"redirect_url,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// ValidateMerchantInput is the input schema for validate_merchant.
type ValidateMerchantInput struct {
	SessionID     string `json:"session_id" jsonschema:"Apple Pay session ID"`
	ValidationURL string `json:"validation_url" jsonschema:"validationURL of the onvalidatemerchant event"`
}

// MerchantSessionOutput wraps the opaque Apple Pay merchant session.
type MerchantSessionOutput struct {
	MerchantSession map[string]any `json:"merchant_session"`
}

// ShippingContactInput is the input schema for select_shipping_contact.
type ShippingContactInput struct {
	SessionID string                       `json:"session_id" jsonschema:"Apple Pay session ID"`
	Contact   model.ApplePayPaymentContact `json:"contact" jsonschema:"redacted shipping contact from the payment sheet"`
}

// ShippingMethodInput is the input schema for select_shipping_method.
type ShippingMethodInput struct {
	SessionID string                       `json:"session_id" jsonschema:"Apple Pay session ID"`
	Method    model.ApplePayShippingMethod `json:"method" jsonschema:"selected shipping method"`
}

// PaymentDataInput is the input schema for change_payment_data.
type PaymentDataInput struct {
	SessionID string                              `json:"session_id" jsonschema:"Google Pay session ID"`
	Data      model.GoogleIntermediatePaymentData `json:"data" jsonschema:"IntermediatePaymentData of the onPaymentDataChanged callback"`
}

// ApplePayAuthorizeInput is the input schema for authorize_apple_pay.
type ApplePayAuthorizeInput struct {
	SessionID       string                        `json:"session_id" jsonschema:"Apple Pay session ID"`
	PaymentData     map[string]any                `json:"payment_data" jsonschema:"token.paymentData of the authorized payment"`
	BillingContact  *model.ApplePayPaymentContact `json:"billing_contact,omitempty" jsonschema:"billing contact"`
	ShippingContact *model.ApplePayPaymentContact `json:"shipping_contact,omitempty" jsonschema:"shipping contact, required for shipped orders"`
}

// GooglePayAuthorizeInput is the input schema for authorize_google_pay.
type GooglePayAuthorizeInput struct {
	SessionID   string                  `json:"session_id" jsonschema:"Google Pay session ID"`
	PaymentData model.GooglePaymentData `json:"payment_data" jsonschema:"PaymentData of the onPaymentAuthorized callback"`
}

// NewMCPServer creates an MCP server with the wallet tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "opf-quickbuy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "OPF Quick Buy - Apple Pay and Google Pay checkout for storefront carts. " +
				"Start a wallet session, answer the payment sheet events, then authorize the payment.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_quickbuy_configuration",
		Description: "Get the storefront's Quick Buy configuration and enabled wallets.",
	}, h.mcpConfiguration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_wallet_session",
		Description: "Start an Apple Pay or Google Pay session for a cart. Returns the wallet payment request.",
	}, h.mcpStartSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_wallet_session",
		Description: "Get the current state of a wallet session.",
	}, h.mcpGetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_merchant",
		Description: "Validate the merchant for an Apple Pay session.",
	}, h.mcpValidateMerchant)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_shipping_contact",
		Description: "Apple Pay: quote shipping methods for the selected contact.",
	}, h.mcpShippingContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_shipping_method",
		Description: "Apple Pay: apply the selected shipping method and refresh the total.",
	}, h.mcpShippingMethod)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_payment_method",
		Description: "Apple Pay: acknowledge a payment method change.",
	}, h.mcpPaymentMethod)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_payment_data",
		Description: "Google Pay: update shipping options and totals for changed payment data.",
	}, h.mcpPaymentData)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "authorize_apple_pay",
		Description: "Submit an authorized Apple Pay payment and place the order.",
	}, h.mcpAuthorizeApplePay)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "authorize_google_pay",
		Description: "Submit an authorized Google Pay payment and place the order.",
	}, h.mcpAuthorizeGooglePay)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_wallet_session",
		Description: "Cancel a wallet session, as when the shopper dismisses the sheet.",
	}, h.mcpCancelSession)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpConfiguration(
	ctx context.Context,
	req *mcp.CallToolRequest,
	_ ConfigurationInput,
) (*mcp.CallToolResult, *ConfigurationOutput, error) {
	active, err := h.configuration(ctx, h.mcpShopper(req))
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, configurationOutput(active), nil
}

func (h *Handler) mcpStartSession(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input StartSessionInput,
) (*mcp.CallToolResult, *StartResponse, error) {
	cart, err := input.Cart.toCart()
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	resp, err := h.startSession(ctx, h.mcpShopper(req), StartRequest{
		Provider:        model.Provider(input.Provider),
		Cart:            cart,
		ApplePayVersion: input.ApplePayVersion,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, resp, nil
}

func (h *Handler) mcpGetSession(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *SessionView, error) {
	s, err := h.session(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, sessionView(s.Snapshot()), nil
}

func (h *Handler) mcpValidateMerchant(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ValidateMerchantInput,
) (*mcp.CallToolResult, *MerchantSessionOutput, error) {
	s, err := h.applePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	raw, err := s.ValidateMerchant(ctx, input.ValidationURL)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	out := &MerchantSessionOutput{MerchantSession: map[string]any{}}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.MerchantSession); err != nil {
			return nil, nil, h.mcpError(fmt.Errorf("decoding merchant session: %w", err))
		}
	}
	return nil, out, nil
}

func (h *Handler) mcpShippingContact(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ShippingContactInput,
) (*mcp.CallToolResult, *model.ApplePayUpdate, error) {
	s, err := h.applePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	update, err := s.ShippingContactSelected(ctx, &input.Contact)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, update, nil
}

func (h *Handler) mcpShippingMethod(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ShippingMethodInput,
) (*mcp.CallToolResult, *model.ApplePayUpdate, error) {
	s, err := h.applePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	update, err := s.ShippingMethodSelected(ctx, input.Method)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, update, nil
}

func (h *Handler) mcpPaymentMethod(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *model.ApplePayUpdate, error) {
	s, err := h.applePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	update, err := s.PaymentMethodSelected(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, update, nil
}

func (h *Handler) mcpPaymentData(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input PaymentDataInput,
) (*mcp.CallToolResult, *model.GooglePaymentDataRequestUpdate, error) {
	s, err := h.googlePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	update, err := s.PaymentDataChanged(ctx, &input.Data)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, update, nil
}

func (h *Handler) mcpAuthorizeApplePay(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ApplePayAuthorizeInput,
) (*mcp.CallToolResult, *model.ApplePayAuthorizationResult, error) {
	s, err := h.applePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	var paymentData json.RawMessage
	if len(input.PaymentData) > 0 {
		if paymentData, err = json.Marshal(input.PaymentData); err != nil {
			return nil, nil, h.mcpError(fmt.Errorf("encoding payment data: %w", err))
		}
	}

	result, err := s.Authorize(ctx, &model.ApplePayPayment{
		Token:           model.ApplePayPaymentToken{PaymentData: paymentData},
		BillingContact:  input.BillingContact,
		ShippingContact: input.ShippingContact,
	}, mcpBrowserInfo(req))
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, result, nil
}

func (h *Handler) mcpAuthorizeGooglePay(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GooglePayAuthorizeInput,
) (*mcp.CallToolResult, *model.GooglePaymentAuthorizationResult, error) {
	s, err := h.googlePay(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	result, err := s.Authorize(ctx, &input.PaymentData, mcpBrowserInfo(req))
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, result, nil
}

func (h *Handler) mcpCancelSession(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *SessionView, error) {
	s, err := h.session(ctx, input.SessionID)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, sessionView(s.Cancel(ctx)), nil
}

// === Helpers ===

// mcpError converts errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	apiErr := h.toAPIError(err)
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}

// mcpRequest rebuilds the HTTP request headers of an MCP call.
func mcpRequest(req *mcp.CallToolRequest) *http.Request {
	r := &http.Request{Header: http.Header{}}
	if req != nil && req.Extra != nil && req.Extra.Header != nil {
		r.Header = req.Extra.Header
	}
	return r
}

func (h *Handler) mcpShopper(req *mcp.CallToolRequest) adapter.Storefront {
	return h.storefronts.ForShopper(mcpRequest(req).Cookies())
}

func mcpBrowserInfo(req *mcp.CallToolRequest) *model.BrowserInfo {
	info, _ := browser.FromRequest(mcpRequest(req))
	return info
}

func (c CartInput) toCart() (*model.Cart, error) {
	cart := &model.Cart{
		Code:                  c.Code,
		GUID:                  c.GUID,
		Store:                 c.Store,
		DeliveryItemsQuantity: c.DeliveryItemsQuantity,
		User:                  &model.User{UID: c.UserUID, Name: c.UserName},
	}
	if cart.User.UID == "" {
		cart.User.UID = model.UserIDAnonymous
	}

	var err error
	if cart.TotalPrice, err = parsePrice("total_price", c.TotalPrice, c.Currency); err != nil {
		return nil, err
	}
	if cart.TotalPriceWithTax, err = parsePrice("total_price_with_tax", c.TotalPriceWithTax, c.Currency); err != nil {
		return nil, err
	}
	return cart, nil
}

func parsePrice(field, value, currency string) (*model.Price, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, model.NewValidationError(field, "not a decimal amount")
	}
	return &model.Price{Value: d, CurrencyIso: currency}, nil
}

func configurationOutput(c *model.ActiveConfiguration) *ConfigurationOutput {
	out := &ConfigurationOutput{
		ID:           c.ID,
		ProviderType: c.ProviderType,
		DisplayName:  c.DisplayName,
		Merchant:     c.Merchant,
		Wallets:      []WalletView{},
	}
	for _, w := range c.EnabledWallets() {
		view := WalletView{Provider: string(w.WalletProvider())}
		switch cfg := w.(type) {
		case *model.ApplePayConfig:
			view.MerchantID = cfg.MerchantID
			view.CountryCode = cfg.CountryCode
		case *model.GooglePayConfig:
			view.MerchantID = cfg.MerchantID
			view.CountryCode = cfg.CountryCode
			view.Gateway = cfg.GooglePayGateway
		}
		out.Wallets = append(out.Wallets, view)
	}
	return out
}

func sessionView(s wallet.Snapshot) *SessionView {
	v := &SessionView{
		ID:          s.ID,
		Provider:    string(s.Provider),
		State:       string(s.State),
		InProgress:  s.InProgress,
		AddressIDs:  s.AddressIDs,
		LastError:   s.LastError,
		RedirectURL: s.RedirectURL,
		UpdatedAt:   s.UpdatedAt,
	}
	if v.AddressIDs == nil {
		v.AddressIDs = []string{}
	}
	if s.Transaction != nil {
		v.DeliveryType = string(s.Transaction.DeliveryInfo.Type)
		total := s.Transaction.Total
		v.Total = &total
	}
	return v
}
