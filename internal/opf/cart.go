package opf

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"opf-quickbuy/internal/model"
)

// GetSupportedDeliveryModes lists delivery modes for the cart's current
// delivery address.
func (c *Client) GetSupportedDeliveryModes(ctx context.Context) ([]model.DeliveryMode, error) {
	var resp model.DeliveryModesResponse
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/opf/cart/deliverymodes"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting delivery modes: %w", err)
	}
	return resp.DeliveryModes, nil
}

// SetDeliveryMode selects a delivery mode on the cart.
func (c *Client) SetDeliveryMode(ctx context.Context, modeID string) error {
	err := c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   "/opf/cart/deliverymode",
		Query:  url.Values{"deliveryModeId": {modeID}},
		JSON:   true,
	}, nil)
	if err != nil {
		return fmt.Errorf("setting delivery mode %q: %w", modeID, err)
	}
	return nil
}

// SetDeliveryAddress creates an address and assigns it to the cart.
// The returned address carries the server-assigned id.
func (c *Client) SetDeliveryAddress(ctx context.Context, addr model.Address) (*model.Address, error) {
	var created model.Address
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/opf/cart/addresses/delivery",
		Body:   addr,
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("setting delivery address: %w", err)
	}
	return &created, nil
}

// CreateCartGuestUser converts the anonymous cart into a guest cart.
func (c *Client) CreateCartGuestUser(ctx context.Context) error {
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/opf/cart/guestuser", JSON: true}, nil)
	if err != nil {
		return fmt.Errorf("creating guest user: %w", err)
	}
	return nil
}

// UpdateCartGuestUserEmail sets the guest user's e-mail address.
func (c *Client) UpdateCartGuestUserEmail(ctx context.Context, email string) error {
	err := c.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/opf/cart/guestuser",
		Body:   model.GuestUserRequest{Email: email},
	}, nil)
	if err != nil {
		return fmt.Errorf("updating guest email: %w", err)
	}
	return nil
}

// SetPaymentInfo attaches OPF payment info to the cart.
func (c *Client) SetPaymentInfo(ctx context.Context) error {
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/opf/cart/paymentinfo", JSON: true}, nil)
	if err != nil {
		return fmt.Errorf("setting payment info: %w", err)
	}
	return nil
}
