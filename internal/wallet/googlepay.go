package wallet

import (
	"context"
	"encoding/base64"
	"log/slog"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/address"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/payment"
)

// Google Pay request defaults.
var (
	googleAuthMethods  = []string{"PAN_ONLY", "CRYPTOGRAM_3DS"}
	googleCardNetworks = []string{"AMEX", "DISCOVER", "INTERAC", "JCB", "MASTERCARD", "VISA"}
)

const (
	googleAPIVersion       = 2
	googleAPIVersionMinor  = 0
	googleDefaultTotal     = "0.00"
	googleDefaultCurrency  = "USD"
	googleUnselectedOption = "shipping_option_unselected"
	googleReasonUnservice  = "SHIPPING_ADDRESS_UNSERVICEABLE"
	googleReasonOther      = "OTHER_ERROR"
	MessageAddressFailure  = "Something went wrong while processing your address."
)

// GooglePaySession handles the Google Pay payment client callbacks for one
// checkout.
type GooglePaySession struct {
	*Orchestrator
}

// NewGooglePaySession creates an idle Google Pay session.
func NewGooglePaySession(id, key string, opts Options) *GooglePaySession {
	return &GooglePaySession{newOrchestrator(id, key, model.ProviderGooglePay, opts)}
}

// GooglePayStart is what the browser needs to call loadPaymentData.
type GooglePayStart struct {
	SessionID   string                         `json:"sessionId"`
	Environment string                         `json:"environment"`
	Request     model.GooglePaymentDataRequest `json:"paymentDataRequest"`
}

// Start begins a payment attempt for cart. Pickup carts get their delivery
// mode set right away since the sheet collects no address.
func (s *GooglePaySession) Start(ctx context.Context, sf adapter.Storefront, cart *model.Cart, active *model.ActiveConfiguration, cfg *model.GooglePayConfig) (*GooglePayStart, error) {
	if active == nil {
		active = &model.ActiveConfiguration{}
	}
	if cfg == nil {
		cfg = &model.GooglePayConfig{}
	}
	return start(ctx, s.Orchestrator, sf, cart, func(ctx context.Context) (*GooglePayStart, error) {
		if err := s.ensureGuest(ctx); err != nil {
			return nil, err
		}
		if s.tx.DeliveryInfo.Type == model.DeliveryPickup {
			if err := s.sf.SetDeliveryMode(ctx, model.PickupDeliveryModeID); err != nil {
				return nil, err
			}
		}
		return &GooglePayStart{
			SessionID:   s.id,
			Environment: s.settings.GooglePayEnvironment,
			Request:     s.paymentDataRequest(active, cfg),
		}, nil
	})
}

func (s *GooglePaySession) paymentDataRequest(active *model.ActiveConfiguration, cfg *model.GooglePayConfig) model.GooglePaymentDataRequest {
	info := model.GoogleTransactionInfo{
		TotalPrice:       googleDefaultTotal,
		TotalPriceStatus: model.GoogleTotalPriceEstimated,
		CurrencyCode:     googleDefaultCurrency,
	}
	if s.tx.Total.Amount != "" {
		info.TotalPrice = s.tx.Total.Amount
	}
	if s.tx.Total.Currency != "" {
		info.CurrencyCode = s.tx.Total.Currency
	}

	req := model.GooglePaymentDataRequest{
		APIVersion:      googleAPIVersion,
		APIVersionMinor: googleAPIVersionMinor,
		CallbackIntents: []string{
			model.GoogleIntentPaymentAuthorization,
			model.GoogleIntentShippingAddress,
			model.GoogleIntentShippingOption,
		},
		MerchantInfo: model.GoogleMerchantInfo{
			MerchantID:   cfg.MerchantID,
			MerchantName: s.merchantName(),
		},
		AllowedPaymentMethods: []model.GooglePaymentMethod{{
			Type: "CARD",
			Parameters: model.GoogleCardParameters{
				AllowedAuthMethods:       googleAuthMethods,
				AllowedCardNetworks:      googleCardNetworks,
				BillingAddressRequired:   true,
				BillingAddressParameters: &model.GoogleBillingAddressParams{Format: "FULL"},
			},
			TokenizationSpecification: &model.GoogleTokenizationSpec{
				Type: active.ProviderType,
				Parameters: map[string]string{
					"gateway":           cfg.GooglePayGateway,
					"gatewayMerchantId": active.Merchant,
				},
			},
		}},
		TransactionInfo:           info,
		ShippingOptionRequired:    true,
		ShippingAddressRequired:   true,
		ShippingAddressParameters: &model.GoogleShippingAddressParams{PhoneNumberRequired: false},
		EmailRequired:             true,
	}
	if s.tx.DeliveryInfo.Type == model.DeliveryPickup {
		req.CallbackIntents = []string{model.GoogleIntentPaymentAuthorization}
		req.ShippingOptionRequired = false
		req.ShippingAddressRequired = false
		req.ShippingAddressParameters = nil
	}
	return req
}

// PaymentDataChanged answers onPaymentDataChanged: it stores the partial
// address, offers the delivery modes and applies the selected one. Backend
// failures are reported in the sheet and keep the session open.
func (s *GooglePaySession) PaymentDataChanged(ctx context.Context, data *model.GoogleIntermediatePaymentData) (*model.GooglePaymentDataRequestUpdate, error) {
	if data == nil {
		data = &model.GoogleIntermediatePaymentData{}
	}
	return run(ctx, s.Orchestrator, EventPaymentDataChanged, func(ctx context.Context) (*model.GooglePaymentDataRequestUpdate, error) {
		update, err := s.paymentDataChanged(ctx, data)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			s.logger.WarnContext(ctx, "payment data change failed", slog.String("error", err.Error()))
			return &model.GooglePaymentDataRequestUpdate{Error: &model.GooglePaymentDataError{
				Reason:  googleReasonUnservice,
				Message: MessageAddressFailure,
				Intent:  model.GoogleIntentShippingAddress,
			}}, nil
		}
		return update, nil
	})
}

func (s *GooglePaySession) paymentDataChanged(ctx context.Context, data *model.GoogleIntermediatePaymentData) (*model.GooglePaymentDataRequestUpdate, error) {
	if data.ShippingAddress != nil {
		if err := s.setAddress(ctx, address.Normalize(address.FromGoogleAddress(data.ShippingAddress), true)); err != nil {
			return nil, err
		}
	}

	modes, err := s.sf.GetSupportedDeliveryModes(ctx)
	if err != nil {
		return nil, err
	}
	if len(modes) == 0 {
		return nil, &payment.FlowError{Message: MessageNoShipmentMethods}
	}

	params := &model.GoogleShippingOptionParameters{
		DefaultSelectedOptionID: modes[0].Code,
		ShippingOptions:         make([]model.GoogleShippingOption, 0, len(modes)),
	}
	for _, m := range modes {
		params.ShippingOptions = append(params.ShippingOptions, model.GoogleShippingOption{
			ID:          m.Code,
			Label:       m.Name,
			Description: m.Description,
		})
	}

	selected := params.DefaultSelectedOptionID
	if data.ShippingOptionData != nil && data.ShippingOptionData.ID != "" && data.ShippingOptionData.ID != googleUnselectedOption {
		selected = data.ShippingOptionData.ID
	}
	if err := s.sf.SetDeliveryMode(ctx, selected); err != nil {
		return nil, err
	}
	params.DefaultSelectedOptionID = selected

	return &model.GooglePaymentDataRequestUpdate{
		NewShippingOptionParameters: params,
		NewTransactionInfo:          s.finalTransactionInfo(),
	}, nil
}

// finalTransactionInfo reports the taxed cart total, or nil when unknown.
func (s *GooglePaySession) finalTransactionInfo() *model.GoogleTransactionInfo {
	cart := s.tx.Cart
	if cart == nil || cart.TotalPriceWithTax == nil {
		return nil
	}
	price := cart.TotalPriceWithTax
	if price.Value.IsZero() || price.CurrencyIso == "" {
		return nil
	}
	s.tx.SetTotalAmount(price.Value)
	return &model.GoogleTransactionInfo{
		TotalPrice:       model.FormatAmount(price.Value),
		TotalPriceStatus: model.GoogleTotalPriceFinal,
		CurrencyCode:     price.CurrencyIso,
	}
}

// Authorize answers onPaymentAuthorized. Failures are reported as an ERROR
// transaction state and end the session; only a cancelled session yields an
// error.
func (s *GooglePaySession) Authorize(ctx context.Context, data *model.GooglePaymentData, browser *model.BrowserInfo) (*model.GooglePaymentAuthorizationResult, error) {
	if data == nil {
		return nil, model.NewValidationError("paymentData", "is required")
	}
	return run(ctx, s.Orchestrator, EventAuthorize, func(ctx context.Context) (*model.GooglePaymentAuthorizationResult, error) {
		out, err := s.authorize(ctx, data, browser)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil && out.Error != nil {
			err = out.Error
		}
		if err != nil {
			s.fail(ctx, err)
			return &model.GooglePaymentAuthorizationResult{
				TransactionState: model.GoogleTransactionError,
				Error: &model.GooglePaymentDataError{
					Reason:  googleReasonOther,
					Message: failureMessage(err),
					Intent:  model.GoogleIntentPaymentAuthorization,
				},
			}, nil
		}
		s.complete(ctx, out.RedirectURL)
		return &model.GooglePaymentAuthorizationResult{
			TransactionState: model.GoogleTransactionSuccess,
			RedirectURL:      out.RedirectURL,
		}, nil
	})
}

func (s *GooglePaySession) authorize(ctx context.Context, data *model.GooglePaymentData, browser *model.BrowserInfo) (*payment.Outcome, error) {
	if s.tx.DeliveryInfo.Type == model.DeliveryShipping {
		if data.ShippingAddress == nil {
			return nil, &payment.FlowError{Message: "Error: empty shippingAddress"}
		}
		src := address.FromGoogleAddress(data.ShippingAddress)
		src.Email = data.Email
		if err := s.setAddress(ctx, address.Normalize(src, false)); err != nil {
			return nil, err
		}
	}
	if err := s.updateEmail(ctx, data.Email); err != nil {
		return nil, err
	}
	if err := s.sf.SetPaymentInfo(ctx); err != nil {
		return nil, err
	}

	token := data.PaymentMethodData.TokenizationData.Token
	if token == "" {
		return nil, &payment.FlowError{Message: "Error: empty payment token"}
	}
	return s.pipeline.Submit(ctx, s.sf, payment.Submission{
		Token:       base64.StdEncoding.EncodeToString([]byte(token)),
		Method:      model.PaymentMethodGooglePay,
		BrowserInfo: browser,
	}, payment.Callbacks{})
}
