package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/payment"
)

// handleConfiguration returns the Quick Buy payment configuration.
// GET /quickbuy/configuration
func (h *Handler) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	active, err := h.configuration(r.Context(), h.shopper(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, active)
}

// SubmitRequest is a hosted-fields payment submission.
type SubmitRequest struct {
	EncryptedToken string              `json:"encryptedToken"`
	PaymentMethod  model.PaymentMethod `json:"paymentMethod,omitempty"`
	AdditionalData []model.KeyValue    `json:"additionalData,omitempty"`
}

// SubmitCompleteRequest finalizes a submission after a 3-D Secure challenge.
type SubmitCompleteRequest struct {
	AdditionalData []model.KeyValue `json:"additionalData,omitempty"`
}

// handleSubmit submits a hosted-fields payment and places the order when
// the backend accepts it.
// POST /quickbuy/payments/{paymentSessionId}/submit
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentSessionID := r.PathValue("paymentSessionId")

	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentMethodCreditCard
	}

	h.logger.InfoContext(ctx, "submitting payment",
		slog.String("payment_session_id", paymentSessionID),
		slog.String("method", string(req.PaymentMethod)),
	)

	out, err := h.pipeline.Submit(ctx, h.shopper(r), payment.Submission{
		Token:            req.EncryptedToken,
		Method:           req.PaymentMethod,
		PaymentSessionID: paymentSessionID,
		BrowserInfo:      browserInfo(r),
		AdditionalData:   req.AdditionalData,
	}, payment.Callbacks{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, outcomeStatus(out), out)
}

// handleSubmitComplete finalizes a submission after 3-D Secure.
// POST /quickbuy/payments/{paymentSessionId}/submit-complete
func (h *Handler) handleSubmitComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentSessionID := r.PathValue("paymentSessionId")

	var req SubmitCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.pipeline.SubmitComplete(ctx, h.shopper(r), paymentSessionID, req.AdditionalData, payment.Callbacks{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps a submission outcome to the response status: 402 for
// failures, 202 while the payment is pending.
func outcomeStatus(out *payment.Outcome) int {
	switch {
	case out.Error != nil:
		return http.StatusPaymentRequired
	case out.Status == model.SubmitPending:
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}

// handleVerify finishes a redirect-based payment. Browsers are redirected
// to the confirmation or fallback page; JSON clients receive the result.
// GET /quickbuy/verify
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result := h.pipeline.Verify(r.Context(), h.shopper(r), r.URL.Query())

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		status := http.StatusOK
		if result.Failed() {
			status = http.StatusPaymentRequired
		}
		h.writeJSON(w, status, result)
		return
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusSeeOther)
}
