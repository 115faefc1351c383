package payment

import (
	"context"
	"log/slog"
	"net/url"

	"opf-quickbuy/internal/adapter"
)

// Query parameters of the provider return URL.
const (
	ParamPaymentSessionID        = "opfPaymentSessionId"
	ParamAfterRedirectScriptFlag = "opfAfterRedirectScriptFlag"
)

// Messages shown on the fallback page when verification fails without a
// more specific backend message.
const (
	MessageProcessingFailed  = "Something went wrong during payment processing."
	MessageUnexpectedFailure = "Unexpected error during payment verification."
)

// VerifyResult tells the browser where to go after a provider redirect.
// Message is set only for failures and is displayed on the fallback page.
type VerifyResult struct {
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message,omitempty"`
	OrderCode   string `json:"orderCode,omitempty"`
}

// Failed reports whether verification ended on the fallback page.
func (r *VerifyResult) Failed() bool {
	return r.Message != ""
}

// Verify confirms a redirect-based payment and places the order.
//
// Malformed return parameters are rejected before any backend call. Every
// failure resolves to the payment method page plus a message.
func (p *Pipeline) Verify(ctx context.Context, sf adapter.Storefront, params url.Values) *VerifyResult {
	fallback := FallbackURL(sf.Origin(), sf.ContextPath())

	if params.Get(ParamPaymentSessionID) == "" {
		return p.verifyFailed(ctx, fallback, &FlowError{Message: "Missing " + ParamPaymentSessionID}, MessageUnexpectedFailure)
	}
	if params.Get(ParamAfterRedirectScriptFlag) == "true" {
		return p.verifyFailed(ctx, fallback, &FlowError{Message: "Hosted field pattern not implemented"}, MessageProcessingFailed)
	}

	if err := sf.VerifyPayment(ctx, params); err != nil {
		return p.verifyFailed(ctx, fallback, err, MessageProcessingFailed)
	}
	order, err := sf.PlaceOrder(ctx)
	if err != nil {
		return p.verifyFailed(ctx, fallback, err, MessageProcessingFailed)
	}
	if order == nil || order.Code == "" {
		return p.verifyFailed(ctx, fallback, &FlowError{Message: "Empty order response"}, MessageProcessingFailed)
	}

	p.logger.InfoContext(ctx, "redirect payment verified",
		slog.String("payment_session_id", params.Get(ParamPaymentSessionID)),
		slog.String("order_code", order.Code),
	)
	return &VerifyResult{
		RedirectURL: ConfirmationURL(sf.Origin(), sf.ContextPath(), order.Code),
		OrderCode:   order.Code,
	}
}

func (p *Pipeline) verifyFailed(ctx context.Context, fallback string, err error, defaultMessage string) *VerifyResult {
	msg := UserMessage(err)
	if msg == "" {
		msg = defaultMessage
	}
	p.logger.WarnContext(ctx, "redirect payment verification failed", slog.String("error", err.Error()))
	return &VerifyResult{RedirectURL: fallback, Message: msg}
}
