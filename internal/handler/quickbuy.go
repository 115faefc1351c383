package handler

import (
	"context"
	"fmt"
	"log/slog"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/wallet"
)

// StartRequest opens a wallet session for a cart. A session for the same
// provider and cart is reused, so a finished or cancelled sheet can be
// reopened.
type StartRequest struct {
	Provider        model.Provider `json:"provider"`
	Cart            *model.Cart    `json:"cart"`
	ApplePayVersion string         `json:"applePayVersion,omitempty"`
}

// StartResponse carries the wallet-specific request of the started session.
// Exactly one of ApplePay and GooglePay is set.
type StartResponse struct {
	SessionID string                 `json:"sessionId"`
	Provider  model.Provider         `json:"provider"`
	ApplePay  *wallet.ApplePayStart  `json:"applePay,omitempty"`
	GooglePay *wallet.GooglePayStart `json:"googlePay,omitempty"`
}

// configuration returns the storefront's Quick Buy payment configuration.
func (h *Handler) configuration(ctx context.Context, sf adapter.Storefront) (*model.ActiveConfiguration, error) {
	configs, err := sf.GetActiveConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active configurations: %w", err)
	}
	active := model.SelectQuickBuyConfiguration(configs)
	if active == nil {
		return nil, model.NewNotFoundError("quick buy configuration")
	}
	return active, nil
}

func (h *Handler) startSession(ctx context.Context, sf adapter.Storefront, req StartRequest) (*StartResponse, error) {
	switch req.Provider {
	case model.ProviderApplePay, model.ProviderGooglePay:
	default:
		return nil, model.NewValidationError("provider", fmt.Sprintf("unsupported wallet %q", req.Provider))
	}
	if req.Cart == nil || req.Cart.Code == "" {
		return nil, model.NewValidationError("cart", "cart code is required")
	}

	active, err := h.configuration(ctx, sf)
	if err != nil {
		return nil, err
	}
	cfg, ok := active.Wallet(req.Provider)
	if !ok {
		return nil, model.NewValidationError("provider", req.Provider.DisplayName()+" is not enabled")
	}

	key := wallet.Key(req.Provider, req.Cart)
	sess := h.registry.Acquire(ctx, key, func(id string) wallet.Session {
		if req.Provider == model.ProviderApplePay {
			return wallet.NewApplePaySession(id, key, h.sessions)
		}
		return wallet.NewGooglePaySession(id, key, h.sessions)
	})

	resp := &StartResponse{SessionID: sess.ID(), Provider: req.Provider}
	switch s := sess.(type) {
	case *wallet.ApplePaySession:
		appleCfg, _ := cfg.(*model.ApplePayConfig)
		resp.ApplePay, err = s.Start(ctx, sf, req.Cart, appleCfg, req.ApplePayVersion)
	case *wallet.GooglePaySession:
		googleCfg, _ := cfg.(*model.GooglePayConfig)
		resp.GooglePay, err = s.Start(ctx, sf, req.Cart, active, googleCfg)
	}
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "wallet session started",
		slog.String("session_id", resp.SessionID),
		slog.String("provider", string(req.Provider)),
		slog.String("cart", req.Cart.Code),
	)
	return resp, nil
}

// session looks up a live session.
func (h *Handler) session(ctx context.Context, id string) (wallet.Session, error) {
	if id == "" {
		return nil, model.NewValidationError("id", "session ID required")
	}
	s, ok := h.registry.Get(ctx, id)
	if !ok {
		return nil, model.NewNotFoundError("wallet session")
	}
	return s, nil
}

// sessionAs looks up a session of a specific wallet.
func sessionAs[T wallet.Session](ctx context.Context, h *Handler, id string, provider model.Provider) (T, error) {
	var zero T
	s, err := h.session(ctx, id)
	if err != nil {
		return zero, err
	}
	typed, ok := s.(T)
	if !ok {
		return zero, model.NewValidationError("session", "not a "+provider.DisplayName()+" session")
	}
	return typed, nil
}

func (h *Handler) applePay(ctx context.Context, id string) (*wallet.ApplePaySession, error) {
	return sessionAs[*wallet.ApplePaySession](ctx, h, id, model.ProviderApplePay)
}

func (h *Handler) googlePay(ctx context.Context, id string) (*wallet.GooglePaySession, error) {
	return sessionAs[*wallet.GooglePaySession](ctx, h, id, model.ProviderGooglePay)
}
