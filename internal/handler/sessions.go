package handler

import (
	"log/slog"
	"net/http"

	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/wallet"
)

// handleStartSession opens a wallet session for the posted cart.
// POST /quickbuy/sessions
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.startSession(r.Context(), h.shopper(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// handleGetSession returns the session snapshot.
// GET /quickbuy/sessions/{id}
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

type merchantValidationRequest struct {
	ValidationURL string `json:"validationURL"`
}

// handleMerchantValidation answers ApplePaySession.onvalidatemerchant. The
// response body is the opaque merchant session.
// POST /quickbuy/sessions/{id}/merchant-validation
func (h *Handler) handleMerchantValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.applePay(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req merchantValidationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	merchantSession, err := s.ValidateMerchant(ctx, req.ValidationURL)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, merchantSession)
}

// handleShippingContact answers ApplePaySession.onshippingcontactselected.
// POST /quickbuy/sessions/{id}/shipping-contact
func (h *Handler) handleShippingContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.applePay(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var contact model.ApplePayPaymentContact
	if err := decodeJSON(r, &contact); err != nil {
		h.writeError(w, err)
		return
	}

	update, err := s.ShippingContactSelected(ctx, &contact)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// handleShippingMethod answers ApplePaySession.onshippingmethodselected.
// POST /quickbuy/sessions/{id}/shipping-method
func (h *Handler) handleShippingMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.applePay(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var method model.ApplePayShippingMethod
	if err := decodeJSON(r, &method); err != nil {
		h.writeError(w, err)
		return
	}

	update, err := s.ShippingMethodSelected(ctx, method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// handlePaymentMethod answers ApplePaySession.onpaymentmethodselected.
// POST /quickbuy/sessions/{id}/payment-method
func (h *Handler) handlePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.applePay(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	update, err := s.PaymentMethodSelected(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// handlePaymentData answers the Google Pay onPaymentDataChanged callback.
// POST /quickbuy/sessions/{id}/payment-data
func (h *Handler) handlePaymentData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.googlePay(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var data model.GoogleIntermediatePaymentData
	if err := decodeJSON(r, &data); err != nil {
		h.writeError(w, err)
		return
	}

	update, err := s.PaymentDataChanged(ctx, &data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// handleAuthorize submits the authorized wallet payment. The body is the
// wallet's own authorization payload: ApplePayPayment or Google Pay
// PaymentData, depending on the session.
// POST /quickbuy/sessions/{id}/authorize
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.session(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authorizing wallet payment",
		slog.String("session_id", s.ID()),
		slog.String("provider", string(s.Provider())),
	)

	var result any
	switch s := s.(type) {
	case *wallet.ApplePaySession:
		var p model.ApplePayPayment
		if err := decodeJSON(r, &p); err != nil {
			h.writeError(w, err)
			return
		}
		result, err = s.Authorize(ctx, &p, browserInfo(r))
	case *wallet.GooglePaySession:
		var data model.GooglePaymentData
		if err := decodeJSON(r, &data); err != nil {
			h.writeError(w, err)
			return
		}
		result, err = s.Authorize(ctx, &data, browserInfo(r))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// handleCancel dismisses the wallet sheet.
// POST /quickbuy/sessions/{id}/cancel
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.session(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "cancelling wallet session", slog.String("session_id", s.ID()))

	h.writeJSON(w, http.StatusOK, s.Cancel(ctx))
}
