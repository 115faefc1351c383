package opf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"opf-quickbuy/internal/model"
)

// GetActiveConfigurations lists the payment configurations enabled for the
// current base site.
func (c *Client) GetActiveConfigurations(ctx context.Context) ([]model.ActiveConfiguration, error) {
	var resp model.ActiveConfigurationsResponse
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/opf-payment/active-configurations"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting active configurations: %w", err)
	}
	return resp.Value, nil
}

// GetApplePayWebSession asks the backend to validate the merchant with Apple.
// The returned merchant session is opaque and handed back to the wallet.
func (c *Client) GetApplePayWebSession(ctx context.Context, req model.ApplePayWebSessionRequest) (json.RawMessage, error) {
	var session json.RawMessage
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/opf-payment/applepay-web-session",
		Body:   req,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("getting apple pay web session: %w", err)
	}
	return session, nil
}

// SubmitPath is the payment-submit endpoint for a payment session. An empty
// id collapses to /checkout/multi/opf-payment/payment-submit.
func SubmitPath(paymentSessionID string) string {
	return "/checkout/multi/opf-payment/" + url.PathEscape(paymentSessionID) + "/payment-submit"
}

// SubmitCompletePath is the payment-submit-complete endpoint.
func SubmitCompletePath(paymentSessionID string) string {
	return "/checkout/multi/opf-payment/" + url.PathEscape(paymentSessionID) + "/payment-submit-complete"
}

// SubmitPayment posts a payment submission, re-sending it up to maxAttempts
// times in total.
func (c *Client) SubmitPayment(ctx context.Context, paymentSessionID string, req *model.PaymentSubmissionRequest, maxAttempts int) (*model.PaymentResponse, error) {
	return c.submit(ctx, SubmitPath(paymentSessionID), req, maxAttempts)
}

// SubmitPaymentComplete finalizes a submission after a 3-D Secure challenge.
func (c *Client) SubmitPaymentComplete(ctx context.Context, req *model.PaymentSubmitCompleteRequest, maxAttempts int) (*model.PaymentResponse, error) {
	return c.submit(ctx, SubmitCompletePath(req.PaymentSessionID), req, maxAttempts)
}

func (c *Client) submit(ctx context.Context, path string, payload any, maxAttempts int) (*model.PaymentResponse, error) {
	var (
		result  *model.PaymentResponse
		failure *model.PaymentError
	)
	err := c.AttemptSubmit(ctx, Attempt{
		Path:        path,
		Payload:     payload,
		MaxAttempts: maxAttempts,
		OnSuccess:   func(r *model.PaymentResponse) { result = r },
		OnError:     func(e *model.PaymentError) { failure = e },
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return result, nil
}

// PlaceOrder places the order for the session cart.
func (c *Client) PlaceOrder(ctx context.Context) (*model.Order, error) {
	var order model.Order
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/checkout/multi/summary/opf-payment/placeOrder",
		Query:  url.Values{"termsChecked": {"true"}},
		JSON:   true,
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("placing order: %w", err)
	}
	return &order, nil
}

// VerifyPayment confirms a payment after the shopper returns from a
// provider redirect. params are the query parameters of the return URL.
func (c *Client) VerifyPayment(ctx context.Context, params url.Values) error {
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/opf/payment-verification-redirect/verify",
		Query:  params,
	}, nil)
	if err != nil {
		return fmt.Errorf("verifying payment: %w", err)
	}
	return nil
}
