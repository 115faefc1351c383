package model

import (
	"encoding/json"
	"fmt"
)

// Provider identifies a digital wallet.
type Provider string

const (
	ProviderApplePay  Provider = "APPLE_PAY"
	ProviderGooglePay Provider = "GOOGLE_PAY"
)

// DisplayName is the human readable wallet name used in messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderApplePay:
		return "Apple Pay"
	case ProviderGooglePay:
		return "Google Pay"
	default:
		return string(p)
	}
}

// ActiveConfiguration is one entry of GET /opf-payment/active-configurations.
type ActiveConfiguration struct {
	ID                    int            `json:"id,omitempty"`
	ProviderType          string         `json:"providerType"`
	DisplayName           string         `json:"displayName,omitempty"`
	Merchant              string         `json:"merchantId,omitempty"`
	DigitalWalletQuickBuy []WalletConfig `json:"-"`
}

// ActiveConfigurationsResponse wraps the active-configurations list.
type ActiveConfigurationsResponse struct {
	Value []ActiveConfiguration `json:"value"`
}

// UnmarshalJSON decodes digitalWalletQuickBuy entries into their variants.
// Entries with an unknown provider are skipped.
func (c *ActiveConfiguration) UnmarshalJSON(data []byte) error {
	type plain ActiveConfiguration
	var aux struct {
		plain
		Wallets []json.RawMessage `json:"digitalWalletQuickBuy"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ActiveConfiguration(aux.plain)
	c.DigitalWalletQuickBuy = nil
	for _, raw := range aux.Wallets {
		wc, err := ParseWalletConfig(raw)
		if err != nil {
			continue
		}
		c.DigitalWalletQuickBuy = append(c.DigitalWalletQuickBuy, wc)
	}
	return nil
}

// MarshalJSON writes the wallets back under digitalWalletQuickBuy.
func (c ActiveConfiguration) MarshalJSON() ([]byte, error) {
	type plain ActiveConfiguration
	wallets := c.DigitalWalletQuickBuy
	if wallets == nil {
		wallets = []WalletConfig{}
	}
	return json.Marshal(struct {
		plain
		Wallets []WalletConfig `json:"digitalWalletQuickBuy"`
	}{plain(c), wallets})
}

// EnabledWallets returns the wallets switched on for this configuration.
func (c *ActiveConfiguration) EnabledWallets() []WalletConfig {
	var out []WalletConfig
	for _, w := range c.DigitalWalletQuickBuy {
		if w.IsEnabled() {
			out = append(out, w)
		}
	}
	return out
}

// Wallet returns the enabled config for provider, if any.
func (c *ActiveConfiguration) Wallet(p Provider) (WalletConfig, bool) {
	for _, w := range c.EnabledWallets() {
		if w.WalletProvider() == p {
			return w, true
		}
	}
	return nil, false
}

// SelectQuickBuyConfiguration picks the first payment-gateway configuration
// with at least one enabled wallet. Returns nil when none qualifies.
func SelectQuickBuyConfiguration(configs []ActiveConfiguration) *ActiveConfiguration {
	for i := range configs {
		c := &configs[i]
		if c.ProviderType != ProviderTypePaymentGateway {
			continue
		}
		if len(c.EnabledWallets()) > 0 {
			return c
		}
	}
	return nil
}

// === Wallet config variants ===

// WalletConfig is implemented by the per-provider Quick Buy settings.
type WalletConfig interface {
	WalletProvider() Provider
	IsEnabled() bool
}

// WalletBase holds the discriminant shared by all variants.
type WalletBase struct {
	Provider Provider `json:"provider"`
	Enabled  bool     `json:"enabled"`
}

func (b WalletBase) WalletProvider() Provider { return b.Provider }
func (b WalletBase) IsEnabled() bool          { return b.Enabled }

// ApplePayConfig is the Apple Pay Quick Buy entry.
type ApplePayConfig struct {
	WalletBase
	MerchantID  string `json:"merchantId,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// GooglePayConfig is the Google Pay Quick Buy entry.
type GooglePayConfig struct {
	WalletBase
	GooglePayGateway string `json:"googlePayGateway,omitempty"`
	MerchantID       string `json:"merchantId,omitempty"`
	CountryCode      string `json:"countryCode,omitempty"`
}

// ParseWalletConfig decodes a digitalWalletQuickBuy entry by its provider.
func ParseWalletConfig(raw json.RawMessage) (WalletConfig, error) {
	var base WalletBase
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("decoding wallet config: %w", err)
	}
	switch base.Provider {
	case ProviderApplePay:
		var c ApplePayConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding apple pay config: %w", err)
		}
		return &c, nil
	case ProviderGooglePay:
		var c GooglePayConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding google pay config: %w", err)
		}
		return &c, nil
	default:
		return nil, fmt.Errorf("unsupported wallet provider: %q", base.Provider)
	}
}
