package opf

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opf-quickbuy/internal/model"
)

// flakyHandler fails the first n requests with 503 and then answers ACCEPTED.
func flakyHandler(n int32, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"status":"ACCEPTED"}`)
	}
}

func TestAttemptSubmitCountsAttempts(t *testing.T) {
	tests := []struct {
		name        string
		failures    int32
		maxAttempts int
		wantHits    int32
		wantSuccess bool
	}{
		{"first attempt succeeds", 0, 2, 1, true},
		{"second attempt succeeds", 1, 2, 2, true},
		{"fails twice then would succeed", 2, 2, 2, false},
		{"larger budget reaches success", 2, 3, 3, true},
		{"zero budget uses default", 1, 0, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			c := newTestClient(t, flakyHandler(tt.failures, &hits))

			var (
				success *model.PaymentResponse
				failure *model.PaymentError
			)
			err := c.AttemptSubmit(context.Background(), Attempt{
				Path:        SubmitPath("ps-1"),
				Payload:     &model.PaymentSubmissionRequest{Channel: model.ChannelBrowser},
				MaxAttempts: tt.maxAttempts,
				OnSuccess:   func(r *model.PaymentResponse) { success = r },
				OnError:     func(e *model.PaymentError) { failure = e },
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantHits, hits.Load())

			if tt.wantSuccess {
				require.NotNil(t, success)
				assert.Nil(t, failure)
				assert.Equal(t, model.SubmitAccepted, success.Status)
				return
			}
			assert.Nil(t, success)
			require.NotNil(t, failure)
			assert.Equal(t, model.PaymentErrorNetwork, failure.Type)
			assert.Equal(t, "Request Failed", failure.StatusText)
			assert.Equal(t, http.StatusServiceUnavailable, failure.Status)
			assert.Equal(t, "error", failure.Message)
		})
	}
}

func TestAttemptSubmitResendsSameRequest(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		ids    []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		ids = append(ids, r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.AttemptSubmit(context.Background(), Attempt{
		Path:        SubmitPath("ps-1"),
		Payload:     &model.PaymentSubmissionRequest{EncryptedToken: "tok", Channel: model.ChannelBrowser},
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestAttemptSubmitCancelledSuppressesCallbacks(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, flakyHandler(0, &hits))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := c.AttemptSubmit(ctx, Attempt{
		Path:      SubmitPath("ps-1"),
		Payload:   &model.PaymentSubmissionRequest{},
		OnSuccess: func(*model.PaymentResponse) { called = true },
		OnError:   func(*model.PaymentError) { called = true },
	})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, called)
}

func TestSubmitPaymentReturnsPaymentError(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, flakyHandler(5, &hits))

	_, err := c.SubmitPayment(context.Background(), "", &model.PaymentSubmissionRequest{}, 2)

	var payErr *model.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, model.PaymentErrorNetwork, payErr.Type)
	assert.ErrorIs(t, err, model.ErrPaymentFailed)
}

func TestSubmitPaymentCompleteUsesSessionPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testContextPath+"/checkout/multi/opf-payment/ps-9/payment-submit-complete", r.URL.Path)
		io.WriteString(w, `{"status":"PENDING"}`)
	})

	resp, err := c.SubmitPaymentComplete(context.Background(), &model.PaymentSubmitCompleteRequest{PaymentSessionID: "ps-9"}, 2)
	require.NoError(t, err)
	assert.Equal(t, model.SubmitPending, resp.Status)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(resp.Raw))
}
