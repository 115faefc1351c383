package model

// Google Pay API payloads (pay.js, API version 2).

// Google Pay callback intents.
const (
	GoogleIntentPaymentAuthorization = "PAYMENT_AUTHORIZATION"
	GoogleIntentShippingAddress      = "SHIPPING_ADDRESS"
	GoogleIntentShippingOption       = "SHIPPING_OPTION"
)

// Google Pay totalPriceStatus values.
const (
	GoogleTotalPriceEstimated = "ESTIMATED"
	GoogleTotalPriceFinal     = "FINAL"
)

// Google Pay transaction states returned from onPaymentAuthorized.
const (
	GoogleTransactionSuccess = "SUCCESS"
	GoogleTransactionError   = "ERROR"
)

// GooglePaymentDataRequest is passed to loadPaymentData.
type GooglePaymentDataRequest struct {
	APIVersion                int                          `json:"apiVersion"`
	APIVersionMinor           int                          `json:"apiVersionMinor"`
	CallbackIntents           []string                     `json:"callbackIntents"`
	MerchantInfo              GoogleMerchantInfo           `json:"merchantInfo"`
	AllowedPaymentMethods     []GooglePaymentMethod        `json:"allowedPaymentMethods"`
	TransactionInfo           GoogleTransactionInfo        `json:"transactionInfo"`
	ShippingOptionRequired    bool                         `json:"shippingOptionRequired"`
	ShippingAddressRequired   bool                         `json:"shippingAddressRequired"`
	ShippingAddressParameters *GoogleShippingAddressParams `json:"shippingAddressParameters,omitempty"`
	EmailRequired             bool                         `json:"emailRequired"`
}

// GoogleMerchantInfo names the merchant in the payment sheet.
type GoogleMerchantInfo struct {
	MerchantID   string `json:"merchantId,omitempty"`
	MerchantName string `json:"merchantName"`
}

// GoogleShippingAddressParams restricts the collected shipping address.
type GoogleShippingAddressParams struct {
	PhoneNumberRequired bool `json:"phoneNumberRequired"`
}

// GooglePaymentMethod is an allowed payment method (always CARD here).
type GooglePaymentMethod struct {
	Type                      string                  `json:"type"`
	Parameters                GoogleCardParameters    `json:"parameters"`
	TokenizationSpecification *GoogleTokenizationSpec `json:"tokenizationSpecification,omitempty"`
}

// GoogleCardParameters lists accepted card networks and auth methods.
type GoogleCardParameters struct {
	AllowedAuthMethods       []string                    `json:"allowedAuthMethods"`
	AllowedCardNetworks      []string                    `json:"allowedCardNetworks"`
	BillingAddressRequired   bool                        `json:"billingAddressRequired"`
	BillingAddressParameters *GoogleBillingAddressParams `json:"billingAddressParameters,omitempty"`
}

// GoogleBillingAddressParams sets the billing address format.
type GoogleBillingAddressParams struct {
	Format string `json:"format"`
}

// GoogleTokenizationSpec routes the token to the payment gateway.
type GoogleTokenizationSpec struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

// GoogleTransactionInfo is the price shown in the sheet.
type GoogleTransactionInfo struct {
	TotalPrice       string `json:"totalPrice"`
	TotalPriceStatus string `json:"totalPriceStatus"`
	CurrencyCode     string `json:"currencyCode"`
}

// GoogleAddress is the address shape returned by the Google Pay sheet.
type GoogleAddress struct {
	Name               string `json:"name,omitempty"`
	Address1           string `json:"address1,omitempty"`
	Address2           string `json:"address2,omitempty"`
	Address3           string `json:"address3,omitempty"`
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrativeArea,omitempty"`
	CountryCode        string `json:"countryCode,omitempty"`
	PostalCode         string `json:"postalCode,omitempty"`
	SortingCode        string `json:"sortingCode,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
}

// GoogleSelectionOption is a shipping option id chosen in the sheet.
type GoogleSelectionOption struct {
	ID string `json:"id"`
}

// GoogleIntermediatePaymentData is the onPaymentDataChanged payload.
type GoogleIntermediatePaymentData struct {
	CallbackTrigger    string                 `json:"callbackTrigger,omitempty"`
	ShippingAddress    *GoogleAddress         `json:"shippingAddress,omitempty"`
	ShippingOptionData *GoogleSelectionOption `json:"shippingOptionData,omitempty"`
}

// GoogleShippingOption is an option offered in the sheet.
type GoogleShippingOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// GoogleShippingOptionParameters lists the options and the default.
type GoogleShippingOptionParameters struct {
	DefaultSelectedOptionID string                 `json:"defaultSelectedOptionId,omitempty"`
	ShippingOptions         []GoogleShippingOption `json:"shippingOptions"`
}

// GooglePaymentDataError is reported in the sheet for a recoverable failure.
type GooglePaymentDataError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Intent  string `json:"intent"`
}

// GooglePaymentDataRequestUpdate answers onPaymentDataChanged.
type GooglePaymentDataRequestUpdate struct {
	NewShippingOptionParameters *GoogleShippingOptionParameters `json:"newShippingOptionParameters,omitempty"`
	NewTransactionInfo          *GoogleTransactionInfo          `json:"newTransactionInfo,omitempty"`
	Error                       *GooglePaymentDataError         `json:"error,omitempty"`
}

// GoogleTokenizationData holds the gateway token.
type GoogleTokenizationData struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// GooglePaymentMethodData is the authorized card data.
type GooglePaymentMethodData struct {
	Type             string                 `json:"type,omitempty"`
	Description      string                 `json:"description,omitempty"`
	TokenizationData GoogleTokenizationData `json:"tokenizationData"`
	Info             *GoogleCardInfo        `json:"info,omitempty"`
}

// GoogleCardInfo carries the billing address when requested.
type GoogleCardInfo struct {
	CardNetwork    string         `json:"cardNetwork,omitempty"`
	CardDetails    string         `json:"cardDetails,omitempty"`
	BillingAddress *GoogleAddress `json:"billingAddress,omitempty"`
}

// GooglePaymentData is the onPaymentAuthorized payload.
type GooglePaymentData struct {
	Email              string                  `json:"email,omitempty"`
	ShippingAddress    *GoogleAddress          `json:"shippingAddress,omitempty"`
	ShippingOptionData *GoogleSelectionOption  `json:"shippingOptionData,omitempty"`
	PaymentMethodData  GooglePaymentMethodData `json:"paymentMethodData"`
}

// GooglePaymentAuthorizationResult answers onPaymentAuthorized.
type GooglePaymentAuthorizationResult struct {
	TransactionState string                  `json:"transactionState"`
	Error            *GooglePaymentDataError `json:"error,omitempty"`
	RedirectURL      string                  `json:"redirectUrl,omitempty"`
}
