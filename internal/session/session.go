// Package session holds the mutable state of a single wallet checkout attempt.
package session

import (
	"github.com/shopspring/decimal"

	"opf-quickbuy/internal/model"
)

// DeliveryInfo records how the order reaches the shopper.
type DeliveryInfo struct {
	Type          model.DeliveryType `json:"type"`
	PickupDetails *PickupDetails     `json:"pickupDetails,omitempty"`
}

// PickupDetails names the store an order is collected from.
type PickupDetails struct {
	StoreName string `json:"storeName,omitempty"`
}

// Total is the amount shown in the wallet sheet.
type Total struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// TransactionDetails tracks one checkout attempt. It is not safe for
// concurrent use; the owning orchestrator serializes access.
type TransactionDetails struct {
	Context      model.Location `json:"context"`
	DeliveryInfo DeliveryInfo   `json:"deliveryInfo"`
	Total        Total          `json:"total"`
	Cart         *model.Cart    `json:"cart,omitempty"`

	addressIDs []string
}

// New returns details in their initial state.
func New() *TransactionDetails {
	t := &TransactionDetails{}
	t.Reset(nil)
	return t
}

// Reset reinitializes the details. A non-nil seed switches the context to
// CART and takes the total from the cart price.
func (t *TransactionDetails) Reset(seed *model.Cart) {
	*t = TransactionDetails{
		Context:      model.LocationProduct,
		DeliveryInfo: DeliveryInfo{Type: model.DeliveryShipping},
		Total:        Total{Label: model.DefaultMerchantName},
	}
	if seed == nil {
		return
	}

	t.Context = model.LocationCart
	t.Cart = seed
	t.Total = Total{Label: seed.Code}
	if seed.TotalPrice != nil {
		t.Total.Amount = model.FormatAmount(seed.TotalPrice.Value)
		t.Total.Currency = seed.TotalPrice.CurrencyIso
	}
}

// RecordAddress adds id to the created address set. Returns false when id is
// empty or already recorded.
func (t *TransactionDetails) RecordAddress(id string) bool {
	if id == "" || t.HasAddress(id) {
		return false
	}
	t.addressIDs = append(t.addressIDs, id)
	return true
}

// HasAddress reports whether id was recorded.
func (t *TransactionDetails) HasAddress(id string) bool {
	for _, existing := range t.addressIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AddressIDs returns a copy of the recorded ids in insertion order.
func (t *TransactionDetails) AddressIDs() []string {
	return append([]string(nil), t.addressIDs...)
}

// ClearAddresses empties the set and returns what it held.
func (t *TransactionDetails) ClearAddresses() []string {
	cleared := t.addressIDs
	t.addressIDs = nil
	return cleared
}

// SetTotalAmount updates the sheet total.
func (t *TransactionDetails) SetTotalAmount(amount decimal.Decimal) {
	t.Total.Amount = model.FormatAmount(amount)
}
