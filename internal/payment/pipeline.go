// Package payment turns authorized wallet tokens into backend payment
// submissions and drives order placement from the submission verdict.
package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/opf"
)

// Callbacks receive the submission verdict. Nil callbacks are skipped.
// None of them is invoked when the context is cancelled before the backend
// answers.
type Callbacks struct {
	OnSuccess func(*model.PaymentResponse)
	OnPending func(*model.PaymentResponse)
	OnFailure func(*model.PaymentError)
}

// Outcome summarizes a submission.
//
// RedirectURL is set only when the order was placed. An accepted payment
// whose order placement failed has Status ACCEPTED or DELAYED, a nil Order
// and no RedirectURL: the shopper stays on the current page.
type Outcome struct {
	Status      model.SubmitStatus     `json:"status,omitempty"`
	Response    *model.PaymentResponse `json:"-"`
	Order       *model.Order           `json:"order,omitempty"`
	RedirectURL string                 `json:"redirectUrl,omitempty"`
	Error       *model.PaymentError    `json:"error,omitempty"`
}

// Succeeded reports whether the backend accepted the payment.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Error == nil && (o.Status == model.SubmitAccepted || o.Status == model.SubmitDelayed)
}

// Submission is an authorized token ready to be submitted.
type Submission struct {
	Token            string
	Method           model.PaymentMethod
	PaymentSessionID string
	BrowserInfo      *model.BrowserInfo
	AdditionalData   []model.KeyValue
}

// Pipeline submits payments with a fixed retry budget.
type Pipeline struct {
	maxAttempts int
	logger      *slog.Logger
}

// NewPipeline creates a pipeline. A non-positive maxAttempts uses
// opf.DefaultMaxAttempts.
func NewPipeline(maxAttempts int, logger *slog.Logger) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = opf.DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{maxAttempts: maxAttempts, logger: logger}
}

// MaxAttempts is the submission budget.
func (p *Pipeline) MaxAttempts() int {
	return p.maxAttempts
}

// Submit posts s and handles the verdict. The returned error is non-nil only
// when ctx was cancelled; every other failure is reported in Outcome.Error
// and through cb.OnFailure.
//
// Card payments carry their data in AdditionalData; their token is always
// sent empty.
func (p *Pipeline) Submit(ctx context.Context, sf adapter.Storefront, s Submission, cb Callbacks) (*Outcome, error) {
	token := s.Token
	if s.Method == model.PaymentMethodCreditCard {
		token = ""
	}
	req := &model.PaymentSubmissionRequest{
		EncryptedToken:   token,
		PaymentMethod:    s.Method,
		Channel:          model.ChannelBrowser,
		BrowserInfo:      s.BrowserInfo,
		AdditionalData:   s.AdditionalData,
		PaymentSessionID: s.PaymentSessionID,
	}
	resp, err := sf.SubmitPayment(ctx, s.PaymentSessionID, req, p.maxAttempts)
	return p.handle(ctx, sf, resp, err, cb)
}

// SubmitComplete finalizes a submission after a 3-D Secure challenge and
// handles the verdict like Submit.
func (p *Pipeline) SubmitComplete(ctx context.Context, sf adapter.Storefront, paymentSessionID string, additionalData []model.KeyValue, cb Callbacks) (*Outcome, error) {
	req := &model.PaymentSubmitCompleteRequest{
		PaymentSessionID: paymentSessionID,
		AdditionalData:   additionalData,
	}
	resp, err := sf.SubmitPaymentComplete(ctx, req, p.maxAttempts)
	return p.handle(ctx, sf, resp, err, cb)
}

func (p *Pipeline) handle(ctx context.Context, sf adapter.Storefront, resp *model.PaymentResponse, err error, cb Callbacks) (*Outcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var payErr *model.PaymentError
		if !errors.As(err, &payErr) {
			payErr = model.NewPaymentError(model.PaymentErrorUnexpected, UserMessage(err))
		}
		return &Outcome{Error: p.fail(ctx, cb, payErr)}, nil
	}

	if resp == nil {
		resp = &model.PaymentResponse{}
	}
	out := &Outcome{Status: resp.Status, Response: resp}
	switch resp.Status {
	case model.SubmitAccepted, model.SubmitDelayed:
		if cb.OnSuccess != nil {
			cb.OnSuccess(resp)
		}
		p.placeOrder(ctx, sf, out)
	case model.SubmitPending:
		if cb.OnPending != nil {
			cb.OnPending(resp)
		}
	case model.SubmitRejected:
		out.Error = p.fail(ctx, cb, model.NewPaymentError(model.PaymentErrorRejected, "Payment was rejected"))
	default:
		out.Error = p.fail(ctx, cb, model.NewPaymentError(model.PaymentErrorStatusNotRecognized, "Unknown payment status"))
	}
	return out, nil
}

func (p *Pipeline) fail(ctx context.Context, cb Callbacks, payErr *model.PaymentError) *model.PaymentError {
	p.logger.WarnContext(ctx, "payment failed",
		slog.String("type", string(payErr.Type)),
		slog.String("message", payErr.Message),
	)
	if cb.OnFailure != nil {
		cb.OnFailure(payErr)
	}
	return payErr
}

// placeOrder places the order and fills the confirmation redirect. Failures
// are logged and leave out without a redirect.
func (p *Pipeline) placeOrder(ctx context.Context, sf adapter.Storefront, out *Outcome) {
	order, err := sf.PlaceOrder(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "place order failed", slog.String("error", err.Error()))
		return
	}
	code := order.ConfirmationCode()
	if code == "" {
		p.logger.ErrorContext(ctx, "place order returned no order code")
		return
	}
	out.Order = order
	out.RedirectURL = ConfirmationURL(sf.Origin(), sf.ContextPath(), code)
	p.logger.InfoContext(ctx, "order placed", slog.String("order_code", order.Code))
}

// ConfirmationURL is the order confirmation page for code.
func ConfirmationURL(origin, contextPath, code string) string {
	return pageURL(origin, contextPath, "/checkout/orderConfirmation/"+url.PathEscape(code))
}

// FallbackURL is the payment method page shoppers return to after a failed
// redirect flow.
func FallbackURL(origin, contextPath string) string {
	return pageURL(origin, contextPath, "/checkout/multi/opf-payment/choose")
}

func pageURL(origin, contextPath, page string) string {
	p := "/" + strings.Trim(contextPath, "/") + page
	return strings.TrimRight(origin, "/") + strings.ReplaceAll(p, "//", "/")
}

// UserMessage returns the message worth showing to a shopper for err, or ""
// when err carries none.
func UserMessage(err error) string {
	var reqErr *opf.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	var payErr *model.PaymentError
	if errors.As(err, &payErr) {
		return payErr.Message
	}
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Message
	}
	return ""
}

// FlowError is a failure raised by the payment flow itself, as opposed to
// one reported by the backend. Its message is shown to the shopper as is.
type FlowError struct {
	Message string
}

func (e *FlowError) Error() string {
	return e.Message
}
