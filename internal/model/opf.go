// Package model defines data structures for the OPF storefront backend and
// the Apple Pay / Google Pay wallet payloads exchanged with wallet clients.
package model

import (
	"encoding/json"
	"regexp"
	"strings"
)

// === Constants ===

// DefaultFieldValue fills required address fields that the wallet has not
// revealed yet. The backend accepts it as a regular value.
const DefaultFieldValue = "[FIELD_NOT_SET]"

// Storefront user ids with special meaning.
const (
	UserIDAnonymous = "anonymous"
	UserIDGuest     = "guest"
)

// DefaultMerchantName labels wallet totals when the cart carries no store name.
const DefaultMerchantName = "Store"

// ProviderTypePaymentGateway marks active configurations that can host Quick Buy.
const ProviderTypePaymentGateway = "PAYMENT_GATEWAY"

// ChannelBrowser is the only submission channel used by wallet flows.
const ChannelBrowser = "BROWSER"

var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// IsEmail reports whether s looks like an e-mail address.
func IsEmail(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

// === Enums ===

// Location is where a Quick Buy flow was initiated.
type Location string

const (
	LocationCart    Location = "CART"
	LocationProduct Location = "PRODUCT"
)

// DeliveryType decides whether the wallet asks for a shipping address.
type DeliveryType string

const (
	DeliveryShipping DeliveryType = "SHIPPING"
	DeliveryPickup   DeliveryType = "PICKUP"
)

// PickupDeliveryModeID is the delivery mode code the backend uses for pickup.
const PickupDeliveryModeID = "pickup"

// PaymentMethod identifies the instrument in a payment submission.
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodApplePay   PaymentMethod = "APPLE_PAY"
	PaymentMethodGooglePay  PaymentMethod = "GOOGLE_PAY"
)

// SubmitStatus is the backend verdict on a payment submission.
type SubmitStatus string

const (
	SubmitAccepted SubmitStatus = "ACCEPTED"
	SubmitDelayed  SubmitStatus = "DELAYED"
	SubmitPending  SubmitStatus = "PENDING"
	SubmitRejected SubmitStatus = "REJECTED"
)

// === Cart ===

// Cart is the storefront cart snapshot embedded in the Quick Buy page.
type Cart struct {
	Code                  string        `json:"code"`
	GUID                  string        `json:"guid,omitempty"`
	Store                 string        `json:"store,omitempty"`
	TotalPrice            *Price        `json:"totalPrice,omitempty"`
	TotalPriceWithTax     *Price        `json:"totalPriceWithTax,omitempty"`
	DeliveryItemsQuantity int           `json:"deliveryItemsQuantity"`
	User                  *User         `json:"user,omitempty"`
	DeliveryMode          *DeliveryMode `json:"deliveryMode,omitempty"`
}

// User is the cart owner as reported by the storefront.
type User struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
}

// DeliveryType returns SHIPPING when the cart holds items to ship.
func (c *Cart) DeliveryType() DeliveryType {
	if c != nil && c.DeliveryItemsQuantity > 0 {
		return DeliveryShipping
	}
	return DeliveryPickup
}

// MerchantName returns the store name or the Quick Buy default.
func (c *Cart) MerchantName() string {
	if c == nil || c.Store == "" {
		return DefaultMerchantName
	}
	return c.Store
}

// IsUserLoggedIn reports whether the cart belongs to a registered or guest
// user rather than the anonymous session user.
func (c *Cart) IsUserLoggedIn() bool {
	return c != nil && c.User != nil && c.User.UID != UserIDAnonymous
}

// IsGuestCart reports whether the cart was already converted to a guest cart.
// Guest uids have the form "<guid>|<email>".
func (c *Cart) IsGuestCart() bool {
	if c == nil || c.User == nil {
		return false
	}
	if c.User.Name == UserIDGuest {
		return true
	}
	parts := strings.Split(c.User.UID, "|")
	if len(parts) < 2 {
		return false
	}
	return IsEmail(strings.Join(parts[1:], "|"))
}

// === Delivery ===

// DeliveryMode is a shipping option offered for the current cart address.
type DeliveryMode struct {
	Code         string `json:"code"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	DeliveryCost *Price `json:"deliveryCost,omitempty"`
}

// DeliveryModesResponse wraps GET /opf/cart/deliverymodes.
type DeliveryModesResponse struct {
	DeliveryModes []DeliveryMode `json:"deliveryModes"`
}

// === Address ===

// Address is the backend address schema.
type Address struct {
	ID             string   `json:"id,omitempty"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Line1          string   `json:"line1"`
	Line2          string   `json:"line2"`
	Town           string   `json:"town"`
	District       string   `json:"district,omitempty"`
	PostalCode     string   `json:"postalCode"`
	Country        *Country `json:"country,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	DefaultAddress bool     `json:"defaultAddress"`
}

// Country identifies an address country by ISO code.
type Country struct {
	Isocode string `json:"isocode"`
	Name    string `json:"name,omitempty"`
}

// === Guest User ===

// GuestUserRequest is the PATCH /opf/cart/guestuser body.
type GuestUserRequest struct {
	Email string `json:"email"`
}

// === Payment ===

// KeyValue is an ordered entry of additional payment data.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BrowserInfo describes the shopper's browser for 3-D Secure risk checks.
type BrowserInfo struct {
	AcceptHeader      string `json:"acceptHeader"`
	ColorDepth        int    `json:"colorDepth,omitempty"`
	JavaEnabled       bool   `json:"javaEnabled"`
	JavaScriptEnabled bool   `json:"javaScriptEnabled"`
	Language          string `json:"language,omitempty"`
	ScreenHeight      int    `json:"screenHeight,omitempty"`
	ScreenWidth       int    `json:"screenWidth,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	OriginURL         string `json:"originUrl,omitempty"`
	TimeZoneOffset    int    `json:"timeZoneOffset"`
}

// PaymentSubmissionRequest is posted to the payment-submit endpoint.
type PaymentSubmissionRequest struct {
	EncryptedToken   string        `json:"encryptedToken"`
	PaymentMethod    PaymentMethod `json:"paymentMethod,omitempty"`
	Channel          string        `json:"channel"`
	BrowserInfo      *BrowserInfo  `json:"browserInfo,omitempty"`
	AdditionalData   []KeyValue    `json:"additionalData,omitempty"`
	PaymentSessionID string        `json:"paymentSessionId"`
}

// PaymentSubmitCompleteRequest finalizes a submission after a 3-D Secure
// challenge.
type PaymentSubmitCompleteRequest struct {
	PaymentSessionID string     `json:"paymentSessionId"`
	AdditionalData   []KeyValue `json:"additionalData,omitempty"`
}

// PaymentResponse is the backend answer to a payment submission.
// Only Status drives behavior; the rest is passed to callers untouched.
type PaymentResponse struct {
	Status  SubmitStatus    `json:"status"`
	Raw     json.RawMessage `json:"-"`
	Message string          `json:"message,omitempty"`
}

// UnmarshalJSON keeps the raw body alongside the decoded status.
func (r *PaymentResponse) UnmarshalJSON(data []byte) error {
	var aux struct {
		Status  SubmitStatus `json:"status"`
		Message string       `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Status = aux.Status
	r.Message = aux.Message
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Order is the placeOrder response.
type Order struct {
	Code string `json:"code,omitempty"`
	GUID string `json:"guid,omitempty"`
	User *User  `json:"user,omitempty"`
}

// ConfirmationCode returns the code used in the order confirmation URL.
// Guest orders are looked up by GUID, registered ones by code.
func (o *Order) ConfirmationCode() string {
	if o == nil {
		return ""
	}
	if o.User != nil && o.User.Name == UserIDGuest {
		return o.GUID
	}
	return o.Code
}

// === Apple Pay merchant session ===

// ApplePayWebSessionRequest asks the backend to validate the merchant with Apple.
type ApplePayWebSessionRequest struct {
	ValidationURL     string `json:"validationUrl"`
	Initiative        string `json:"initiative"`
	InitiativeContext string `json:"initiativeContext"`
	CartID            string `json:"cartId"`
}

// === Backend error body ===

// ErrorListResponse is the error envelope returned by storefront controllers.
type ErrorListResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// ErrorDetail is one entry of ErrorListResponse.
type ErrorDetail struct {
	Type             string `json:"type,omitempty"`
	Message          string `json:"message,omitempty"`
	ExceptionMessage string `json:"exceptionMessage,omitempty"`
}

// FirstMessage returns the most descriptive message of the first error.
func (r *ErrorListResponse) FirstMessage() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	if r.Errors[0].Message != "" {
		return r.Errors[0].Message
	}
	return r.Errors[0].ExceptionMessage
}
