package opf

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"opf-quickbuy/internal/model"
)

// DefaultMaxAttempts is the submission budget used by the wallet flows.
const DefaultMaxAttempts = 2

// Attempt is a POST that is re-sent on failure.
//
// MaxAttempts counts every request, including the first: with 2 the body is
// sent at most twice. Retries are immediate. The payload is re-sent as is, so
// a submission the backend processed but whose response was lost can be
// submitted again; the X-Request-ID header is shared by all attempts so such
// duplicates can be correlated in backend logs.
type Attempt struct {
	Path        string
	Payload     any
	MaxAttempts int
	OnSuccess   func(*model.PaymentResponse)
	OnError     func(*model.PaymentError)
}

// AttemptSubmit runs a. Exactly one of OnSuccess or OnError is invoked,
// unless ctx is cancelled first, in which case neither is and ctx.Err() is
// returned.
func (c *Client) AttemptSubmit(ctx context.Context, a Attempt) error {
	maxAttempts := a.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	header := http.Header{"X-Request-Id": {uuid.NewString()}}

	var last *RequestError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var resp model.PaymentResponse
		err := c.Do(ctx, Request{
			Method: http.MethodPost,
			Path:   a.Path,
			Header: header,
			Body:   a.Payload,
		}, &resp)
		if err == nil {
			if a.OnSuccess != nil {
				a.OnSuccess(&resp)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !errors.As(err, &last) {
			last = &RequestError{StatusText: "error", Message: err.Error(), Err: err}
		}
		if attempt < maxAttempts {
			c.logger.WarnContext(ctx, "retrying request",
				slog.String("path", a.Path),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
	}

	c.logger.ErrorContext(ctx, "request failed after retries",
		slog.String("path", a.Path),
		slog.Int("attempts", maxAttempts),
		slog.String("error", last.Error()),
	)
	if a.OnError != nil {
		a.OnError(model.NewNetworkFailure(last.HTTPStatus, last.StatusText))
	}
	return nil
}
