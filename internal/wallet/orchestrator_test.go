package wallet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/model"
)

const testConfirmationURL = "https://shop.example.com/electronics/en/USD/checkout/orderConfirmation/00001000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCart(deliveryItems int) *model.Cart {
	return &model.Cart{
		Code:                  "00001",
		Store:                 "Electronics",
		TotalPrice:            &model.Price{Value: decimal.RequireFromString("120.5"), CurrencyIso: "USD"},
		TotalPriceWithTax:     &model.Price{Value: decimal.RequireFromString("130.25"), CurrencyIso: "USD"},
		DeliveryItemsQuantity: deliveryItems,
		User:                  &model.User{UID: model.UserIDAnonymous},
	}
}

func testModes() []model.DeliveryMode {
	return []model.DeliveryMode{
		{Code: "standard-gross", Name: "Standard", Description: "3-5 days", DeliveryCost: &model.Price{Value: decimal.RequireFromString("5.99"), CurrencyIso: "USD"}},
		{Code: "premium-gross", Name: "Premium", DeliveryCost: &model.Price{Value: decimal.RequireFromString("12"), CurrencyIso: "USD"}},
	}
}

func acceptingMock() *adapter.Mock {
	return &adapter.Mock{
		GetSupportedDeliveryModesFunc: func(context.Context) ([]model.DeliveryMode, error) {
			return testModes(), nil
		},
		SubmitPaymentFunc: func(context.Context, string, *model.PaymentSubmissionRequest, int) (*model.PaymentResponse, error) {
			return &model.PaymentResponse{Status: model.SubmitAccepted}, nil
		},
		PlaceOrderFunc: func(context.Context) (*model.Order, error) {
			return &model.Order{Code: "00001000", User: &model.User{UID: "jane@example.com", Name: "Jane"}}, nil
		},
	}
}

func newApplePay(t *testing.T, settings Settings) *ApplePaySession {
	t.Helper()
	return NewApplePaySession("s-1", Key(model.ProviderApplePay, &model.Cart{Code: "00001"}), Options{
		Settings: settings,
		Logger:   testLogger(),
	})
}

func requireAPIError(t *testing.T, err error, status int, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.StatusCode)
	assert.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestStartWhileInProgressIsRejected(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()

	_, err := s.Start(ctx, acceptingMock(), testCart(2), nil, "")
	require.NoError(t, err)
	before := s.Snapshot()

	other := testCart(0)
	other.Code = "00002"
	_, err = s.Start(ctx, acceptingMock(), other, nil, "")

	apiErr := requireAPIError(t, err, 409, "SESSION_IN_PROGRESS")
	assert.Equal(t, "Apple Pay is already in progress", apiErr.Message)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, before, s.Snapshot())
}

func TestCancelClearsAddressesAndReleasesGuard(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)
	_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US", PostalCode: "10001"})
	require.NoError(t, err)
	require.Equal(t, []string{"addr-1"}, s.Snapshot().AddressIDs)

	snap := s.Cancel(ctx)
	assert.Equal(t, StateCancelled, snap.State)
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.AddressIDs)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, model.PaymentErrorCancelled, snap.LastError.Type)

	_, err = s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)
	assert.Equal(t, StateStarted, s.Snapshot().State)
}

func TestCancelIdleSessionIsNoop(t *testing.T) {
	s := newApplePay(t, Settings{})

	snap := s.Cancel(context.Background())
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.LastError)
}

func TestCancelAbortsCallInFlight(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()

	entered := make(chan struct{})
	sf := acceptingMock()
	sf.GetApplePayWebSessionFunc = func(ctx context.Context, _ model.ApplePayWebSessionRequest) (json.RawMessage, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.ValidateMerchant(ctx, "https://apple-pay-gateway.apple.com/paymentservices/startSession")
		errc <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("merchant validation never reached the backend")
	}
	snap := s.Cancel(ctx)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, model.ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("merchant validation was not aborted")
	}
	assert.Equal(t, StateCancelled, snap.State)
	assert.False(t, snap.InProgress)
}

func TestEventOnInactiveSession(t *testing.T) {
	s := newApplePay(t, Settings{})

	_, err := s.PaymentMethodSelected(context.Background())

	requireAPIError(t, err, 409, "INVALID_SESSION_STATE")
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestDeliveryTypeFollowsCart(t *testing.T) {
	tests := []struct {
		name          string
		deliveryItems int
		wantType      model.DeliveryType
		wantShipping  string
	}{
		{"items to ship", 2, model.DeliveryShipping, model.ApplePayShippingTypeShipping},
		{"pickup only", 0, model.DeliveryPickup, model.ApplePayShippingTypeStorePickup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newApplePay(t, Settings{})

			started, err := s.Start(context.Background(), acceptingMock(), testCart(tt.deliveryItems), nil, "")
			require.NoError(t, err)

			assert.Equal(t, tt.wantShipping, started.Request.ShippingType)
			assert.Equal(t, tt.wantType, s.Snapshot().Transaction.DeliveryInfo.Type)
		})
	}
}

func TestPickupRejectsShippingEvents(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()

	_, err := s.Start(ctx, sf, testCart(0), nil, "")
	require.NoError(t, err)

	_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US"})
	requireAPIError(t, err, 400, "VALIDATION_ERROR")

	_, err = s.ShippingMethodSelected(ctx, model.ApplePayShippingMethod{Identifier: "standard-gross"})
	requireAPIError(t, err, 400, "VALIDATION_ERROR")

	snap := s.Snapshot()
	assert.Equal(t, StateStarted, snap.State)
	assert.True(t, snap.InProgress)
	assert.False(t, sf.Called("SetDeliveryAddress"))
}

func TestHandlerErrorFailsSession(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()
	sf.GetSupportedDeliveryModesFunc = func(context.Context) ([]model.DeliveryMode, error) {
		return nil, io.ErrUnexpectedEOF
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US"})
	requireAPIError(t, err, 500, "INTERNAL_ERROR")

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.AddressIDs)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, model.PaymentErrorUnexpected, snap.LastError.Type)

	_, err = s.Start(ctx, sf, testCart(2), nil, "")
	assert.NoError(t, err)
}

func TestHandlerPanicFailsSession(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()
	sf := acceptingMock()
	sf.GetSupportedDeliveryModesFunc = func(context.Context) ([]model.DeliveryMode, error) {
		panic("delivery modes decoder")
	}

	_, err := s.Start(ctx, sf, testCart(2), nil, "")
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err = s.ShippingContactSelected(ctx, &model.ApplePayPaymentContact{CountryCode: "US"})
	})
	requireAPIError(t, err, 500, "INTERNAL_ERROR")

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.AddressIDs)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, model.PaymentErrorUnexpected, snap.LastError.Type)

	sf.GetSupportedDeliveryModesFunc = func(context.Context) ([]model.DeliveryMode, error) {
		return testModes(), nil
	}
	_, err = s.Start(ctx, sf, testCart(2), nil, "")
	assert.NoError(t, err)
}

func TestStartPanicReleasesGuard(t *testing.T) {
	s := newApplePay(t, Settings{})
	ctx := context.Background()

	_, err := start(ctx, s.Orchestrator, acceptingMock(), testCart(2), func(context.Context) (*ApplePayStart, error) {
		panic("payment request")
	})
	requireAPIError(t, err, 500, "INTERNAL_ERROR")

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.InProgress)

	_, err = s.Start(ctx, acceptingMock(), testCart(2), nil, "")
	assert.NoError(t, err)
}
