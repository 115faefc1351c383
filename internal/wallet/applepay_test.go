package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/opf"
)

const testValidationURL = "https://apple-pay-gateway.apple.com/paymentservices/startSession"

func testApplePayment() *model.ApplePayPayment {
	contact := &model.ApplePayPaymentContact{
		GivenName:    "Jane",
		FamilyName:   "Doe",
		EmailAddress: "jane@example.com",
		AddressLines: []string{"1 Main St"},
		Locality:     "New York",
		PostalCode:   "10001",
		CountryCode:  "US",
	}
	return &model.ApplePayPayment{
		Token:           model.ApplePayPaymentToken{PaymentData: json.RawMessage(`{ "version": "EC_v1", "data": "abc" }`)},
		BillingContact:  contact,
		ShippingContact: contact,
	}
}

func TestApplePayStartBuildsRequest(t *testing.T) {
	s := newApplePay(t, Settings{CountryCode: "DE"})

	started, err := s.Start(context.Background(), acceptingMock(), testCart(2), &model.ApplePayConfig{CountryCode: "US"}, "")
	require.NoError(t, err)

	assert.Equal(t, "s-1", started.SessionID)
	assert.Equal(t, DefaultApplePayVersion, started.Version)

	req := started.Request
	assert.Equal(t, "US", req.CountryCode)
	assert.Equal(t, "USD", req.CurrencyCode)
	assert.Equal(t, []string{"supports3DS"}, req.MerchantCapabilities)
	assert.Equal(t, []string{"visa", "masterCard", "amex", "discover"}, req.SupportedNetworks)
	assert.Equal(t, []string{"email", "name", "postalAddress"}, req.RequiredShippingContactFields)
	assert.Equal(t, []string{"email", "name", "postalAddress"}, req.RequiredBillingContactFields)
	assert.Empty(t, req.ShippingMethods)
	assert.Equal(t, model.ApplePayLineItem{Label: "Electronics", Amount: "120.50"}, req.Total)

	snap := s.Snapshot()
	assert.Equal(t, StateStarted, snap.State)
	assert.True(t, snap.InProgress)
	assert.Equal(t, model.LocationCart, snap.Transaction.Context)
}

func TestApplePayStartFallbacks(t *testing.T) {
	s := newApplePay(t, Settings{CountryCode: "DE", MerchantName: "Fallback Store"})
	cart := testCart(2)
	cart.Store = ""

	started, err := s.Start(context.Background(), acceptingMock(), cart, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "DE", started.Request.CountryCode)
	assert.Equal(t, "Fallback Store", started.Request.Total.Label)
}

func TestApplePayVersionGate(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"", false},
		{"3", false},
		{"v14", false},
		{"2", true},
		{"latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			s := newApplePay(t, Settings{ApplePayMinVersion: "v3"})

			_, err := s.Start(context.Background(), acceptingMock(), testCart(2), nil, tt.version)
			if tt.wantErr {
				requireAPIError(t, err, 400, "VALIDATION_ERROR")
				assert.Equal(t, StateIdle, s.Snapshot().State)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestApplePayValidateMerchant(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	var got model.ApplePayWebSessionRequest
	sf.GetApplePayWebSessionFunc = func(_ context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{"merchantSessionIdentifier":"m-1"}`), nil
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	merchantSession, err := s.ValidateMerchant(ctx, testValidationURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"merchantSessionIdentifier":"m-1"}`, string(merchantSession))

	assert.Equal(t, model.ApplePayWebSessionRequest{
		ValidationURL:     testValidationURL,
		Initiative:        "web",
		InitiativeContext: "shop.example.com",
		CartID:            "00001",
	}, got)
	assert.Equal(t, []string{"CreateCartGuestUser()", "GetApplePayWebSession(00001)"}, sf.Calls())
	assert.Equal(t, StateMerchantValidating, s.Snapshot().State)
}

func TestApplePayValidateMerchantSkipsGuestForLoggedInShopper(t *testing.T) {
	s := newApplePay(t, Settings{Hostname: "checkout.example.com"})
	ctx := context.Background()
	sf := acceptingMock()
	cart := testCart(2)
	cart.User = &model.User{UID: "jane@example.com", Name: "Jane"}

	var got model.ApplePayWebSessionRequest
	sf.GetApplePayWebSessionFunc = func(_ context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{}`), nil
	}

	_, err := s.Start(ctx, sf, cart, nil, "")
	require.NoError(t, err)
	_, err = s.ValidateMerchant(ctx, testValidationURL)
	require.NoError(t, err)

	assert.False(t, sf.Called("CreateCartGuestUser"))
	assert.Equal(t, "checkout.example.com", got.InitiativeContext)
}

func TestApplePayValidateMerchantFailureFailsSession(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()
	sf.GetApplePayWebSessionFunc = func(context.Context, model.ApplePayWebSessionRequest) (json.RawMessage, error) {
		return nil, &opf.RequestError{HTTPStatus: http.StatusBadGateway, StatusText: "error", Err: model.ErrUpstreamError}
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	_, err = s.ValidateMerchant(ctx, testValidationURL)
	requireAPIError(t, err, 502, "UPSTREAM_ERROR")
	assert.ErrorIs(t, err, model.ErrUpstreamError)

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.InProgress)
}

func TestApplePayShippingContactSelected(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	update, err := s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US", PostalCode: "10001"})
	require.NoError(t, err)

	assert.Empty(t, update.Errors)
	assert.Equal(t, []model.ApplePayShippingMethod{
		{Identifier: "standard-gross", Label: "Standard", Amount: "5.99", Detail: "3-5 days"},
		{Identifier: "premium-gross", Label: "Premium", Amount: "12.00", Detail: "Premium"},
	}, update.NewShippingMethods)
	assert.Equal(t, model.ApplePayLineItem{Label: "Electronics", Amount: "120.50"}, update.NewTotal)

	assert.Equal(t, []string{
		"SetDeliveryAddress(" + model.DefaultFieldValue + ")",
		"GetSupportedDeliveryModes()",
	}, sf.Calls())

	snap := s.Snapshot()
	assert.Equal(t, StateAwaitingSelection, snap.State)
	assert.Equal(t, []string{"addr-1"}, snap.AddressIDs)
}

func TestApplePayNoShipmentMethodsIsRecoverable(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()
	sf.GetSupportedDeliveryModesFunc = func(context.Context) ([]model.DeliveryMode, error) {
		return nil, nil
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	update, err := s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "AQ"})
	require.NoError(t, err)
	require.Len(t, update.Errors, 1)
	assert.Equal(t, MessageNoShipmentMethods, update.Errors[0].Message)
	assert.Empty(t, update.NewShippingMethods)

	snap := s.Snapshot()
	assert.Equal(t, StateAwaitingSelection, snap.State)
	assert.True(t, snap.InProgress)

	_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US"})
	assert.NoError(t, err)
}

func TestApplePayShippingMethodSelected(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	update, err := s.ShippingMethodSelected(ctx, model.ApplePayShippingMethod{Identifier: "premium-gross"})
	require.NoError(t, err)
	assert.Equal(t, "120.50", update.NewTotal.Amount)
	assert.True(t, sf.Called("SetDeliveryMode"))
	assert.Contains(t, sf.Calls(), "SetDeliveryMode(premium-gross)")
}

func TestApplePayMissingTotalFailsSession(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	cart := testCart(2)
	cart.TotalPrice = nil

	_, err := s.Start(ctx, acceptingMock(), cart, nil, "")
	require.NoError(t, err)

	_, err = s.ShippingMethodSelected(ctx, model.ApplePayShippingMethod{Identifier: "standard-gross"})
	apiErr := requireAPIError(t, err, 402, "PAYMENT_ERROR")
	assert.Equal(t, "Total Price not available", apiErr.Message)
	assert.Equal(t, StateFailed, s.Snapshot().State)
}

func TestApplePayAuthorizeAccepted(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	var submitted *model.PaymentSubmissionRequest
	sf.SubmitPaymentFunc = func(_ context.Context, _ string, req *model.PaymentSubmissionRequest, maxAttempts int) (*model.PaymentResponse, error) {
		submitted = req
		assert.Equal(t, opf.DefaultMaxAttempts, maxAttempts)
		return &model.PaymentResponse{Status: model.SubmitAccepted}, nil
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)
	_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US"})
	require.NoError(t, err)

	browser := &model.BrowserInfo{AcceptHeader: "application/json", JavaScriptEnabled: true}
	result, err := s.Authorize(ctx, testApplePayment(), browser)
	require.NoError(t, err)

	assert.Equal(t, model.ApplePayStatusSuccess, result.Status)
	assert.Equal(t, testConfirmationURL, result.RedirectURL)

	require.NotNil(t, submitted)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{"version":"EC_v1","data":"abc"}`)), submitted.EncryptedToken)
	assert.Equal(t, model.PaymentMethodApplePay, submitted.PaymentMethod)
	assert.Equal(t, model.ChannelBrowser, submitted.Channel)
	assert.Empty(t, submitted.PaymentSessionID)
	assert.Same(t, browser, submitted.BrowserInfo)

	assert.Equal(t, []string{
		"SetDeliveryAddress(" + model.DefaultFieldValue + ")",
		"GetSupportedDeliveryModes()",
		"SetDeliveryAddress(1 Main St)",
		"UpdateCartGuestUserEmail(jane@example.com)",
		"SubmitPayment(APPLE_PAY)",
		"PlaceOrder()",
	}, sf.Calls())

	snap := s.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.AddressIDs)
	assert.Equal(t, testConfirmationURL, snap.RedirectURL)
}

func TestApplePayAuthorizePickupSetsPickupMode(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	_, err := s.Start(ctx, sf, testCart(0), nil, "")
	require.NoError(t, err)

	p := testApplePayment()
	p.ShippingContact = nil
	result, err := s.Authorize(ctx, p, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ApplePayStatusSuccess, result.Status)
	assert.Equal(t, "SetDeliveryMode(pickup)", sf.Calls()[0])
	assert.False(t, sf.Called("SetDeliveryAddress"))
}

func TestApplePayAuthorizePendingCompletesWithoutRedirect(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()
	sf.SubmitPaymentFunc = func(context.Context, string, *model.PaymentSubmissionRequest, int) (*model.PaymentResponse, error) {
		return &model.PaymentResponse{Status: model.SubmitPending}, nil
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	result, err := s.Authorize(ctx, testApplePayment(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.ApplePayStatusSuccess, result.Status)
	assert.Empty(t, result.RedirectURL)
	assert.False(t, sf.Called("PlaceOrder"))
	assert.Equal(t, StateCompleted, s.Snapshot().State)
}

func TestApplePayAuthorizeFailures(t *testing.T) {
	rejected := func(context.Context, string, *model.PaymentSubmissionRequest, int) (*model.PaymentResponse, error) {
		return &model.PaymentResponse{Status: model.SubmitRejected}, nil
	}

	tests := []struct {
		name        string
		payment     func() *model.ApplePayPayment
		submit      func(context.Context, string, *model.PaymentSubmissionRequest, int) (*model.PaymentResponse, error)
		wantMessage string
		wantType    model.PaymentErrorType
		wantSubmit  bool
	}{
		{
			name:        "rejected",
			payment:     testApplePayment,
			submit:      rejected,
			wantMessage: "Payment was rejected",
			wantType:    model.PaymentErrorRejected,
			wantSubmit:  true,
		},
		{
			name:        "retry budget exhausted",
			payment:     testApplePayment,
			wantMessage: "error",
			wantType:    model.PaymentErrorNetwork,
			wantSubmit:  true,
		},
		{
			name: "missing billing contact",
			payment: func() *model.ApplePayPayment {
				p := testApplePayment()
				p.BillingContact = nil
				return p
			},
			wantMessage: "Error: empty billingContact",
			wantType:    model.PaymentErrorUnexpected,
		},
		{
			name: "missing shipping contact",
			payment: func() *model.ApplePayPayment {
				p := testApplePayment()
				p.ShippingContact = nil
				return p
			},
			wantMessage: "Error: empty shippingContact",
			wantType:    model.PaymentErrorUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newApplePay(t, Settings{})
			ctx := context.Background()
			sf := acceptingMock()
			sf.SubmitPaymentFunc = tt.submit

			_, err := s.Start(ctx, sf, testCart(2), nil, "")
			require.NoError(t, err)

			result, err := s.Authorize(ctx, tt.payment(), nil)
			require.NoError(t, err)

			assert.Equal(t, model.ApplePayStatusFailure, result.Status)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.wantMessage, result.Errors[0].Message)
			assert.Empty(t, result.RedirectURL)
			assert.Equal(t, tt.wantSubmit, sf.Called("SubmitPayment"))
			assert.False(t, sf.Called("PlaceOrder"))

			snap := s.Snapshot()
			assert.Equal(t, StateFailed, snap.State)
			assert.False(t, snap.InProgress)
			assert.Empty(t, snap.AddressIDs)
			require.NotNil(t, snap.LastError)
			assert.Equal(t, tt.wantType, snap.LastError.Type)
			assert.True(t, errors.Is(snap.LastError, model.ErrPaymentFailed))
		})
	}
}

func TestEncodeApplePayToken(t *testing.T) {
	got, err := encodeApplePayToken(json.RawMessage("{\n  \"a\": 1\n}"))
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)), got)

	_, err = encodeApplePayToken(nil)
	assert.Error(t, err)
}
