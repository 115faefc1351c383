package model

import "encoding/json"

// Apple Pay JS payloads. Field names follow ApplePayJS so wallet clients can
// pass SDK objects through unchanged.

// ApplePayShippingType values.
const (
	ApplePayShippingTypeShipping      = "shipping"
	ApplePayShippingTypeDelivery      = "delivery"
	ApplePayShippingTypeStorePickup   = "storePickup"
	ApplePayShippingTypeServicePickup = "servicePickup"
)

// ApplePay session completion statuses (ApplePaySession.STATUS_*).
const (
	ApplePayStatusSuccess = 0
	ApplePayStatusFailure = 1
)

// ApplePayPaymentRequest configures the ApplePaySession.
type ApplePayPaymentRequest struct {
	CountryCode                   string                   `json:"countryCode"`
	CurrencyCode                  string                   `json:"currencyCode"`
	MerchantCapabilities          []string                 `json:"merchantCapabilities"`
	SupportedNetworks             []string                 `json:"supportedNetworks"`
	RequiredShippingContactFields []string                 `json:"requiredShippingContactFields,omitempty"`
	RequiredBillingContactFields  []string                 `json:"requiredBillingContactFields,omitempty"`
	ShippingType                  string                   `json:"shippingType,omitempty"`
	ShippingMethods               []ApplePayShippingMethod `json:"shippingMethods"`
	Total                         ApplePayLineItem         `json:"total"`
}

// ApplePayLineItem is a labelled amount.
type ApplePayLineItem struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Type   string `json:"type,omitempty"`
}

// ApplePayShippingMethod is an option shown in the payment sheet.
type ApplePayShippingMethod struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Amount     string `json:"amount"`
	Detail     string `json:"detail,omitempty"`
}

// ApplePayPaymentContact is a shipping or billing contact.
type ApplePayPaymentContact struct {
	GivenName          string   `json:"givenName,omitempty"`
	FamilyName         string   `json:"familyName,omitempty"`
	EmailAddress       string   `json:"emailAddress,omitempty"`
	PhoneNumber        string   `json:"phoneNumber,omitempty"`
	AddressLines       []string `json:"addressLines,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	SubLocality        string   `json:"subLocality,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	Country            string   `json:"country,omitempty"`
	CountryCode        string   `json:"countryCode,omitempty"`
}

// ApplePayPaymentToken carries the encrypted payment data.
type ApplePayPaymentToken struct {
	PaymentData           json.RawMessage `json:"paymentData"`
	PaymentMethod         json.RawMessage `json:"paymentMethod,omitempty"`
	TransactionIdentifier string          `json:"transactionIdentifier,omitempty"`
}

// ApplePayPayment is the onpaymentauthorized event payload.
type ApplePayPayment struct {
	Token           ApplePayPaymentToken    `json:"token"`
	BillingContact  *ApplePayPaymentContact `json:"billingContact,omitempty"`
	ShippingContact *ApplePayPaymentContact `json:"shippingContact,omitempty"`
}

// ApplePayError is shown inside the payment sheet.
type ApplePayError struct {
	Code         string `json:"code"`
	ContactField string `json:"contactField,omitempty"`
	Message      string `json:"message"`
}

// ApplePayUpdate completes a shipping-contact, shipping-method or
// payment-method selection.
type ApplePayUpdate struct {
	NewTotal           ApplePayLineItem         `json:"newTotal"`
	NewShippingMethods []ApplePayShippingMethod `json:"newShippingMethods,omitempty"`
	Errors             []ApplePayError          `json:"errors,omitempty"`
}

// ApplePayAuthorizationResult completes payment authorization.
type ApplePayAuthorizationResult struct {
	Status      int             `json:"status"`
	Errors      []ApplePayError `json:"errors,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
}
