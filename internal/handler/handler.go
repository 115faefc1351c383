// Package handler provides the HTTP and MCP surface of the Quick Buy service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"opf-quickbuy/internal/adapter"
	"opf-quickbuy/internal/browser"
	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/opf"
	"opf-quickbuy/internal/payment"
	"opf-quickbuy/internal/wallet"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	storefronts adapter.Factory
	registry    *wallet.Registry
	sessions    wallet.Options
	pipeline    *payment.Pipeline
	logger      *slog.Logger
}

// New creates a Handler. sessions configures every wallet session the
// handler opens; its pipeline also serves the hosted-fields endpoints.
func New(storefronts adapter.Factory, registry *wallet.Registry, sessions wallet.Options, logger *slog.Logger) *Handler {
	if sessions.Logger == nil {
		sessions.Logger = logger
	}
	if sessions.Pipeline == nil {
		sessions.Pipeline = payment.NewPipeline(0, logger)
	}
	return &Handler{
		storefronts: storefronts,
		registry:    registry,
		sessions:    sessions,
		pipeline:    sessions.Pipeline,
		logger:      logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /quickbuy/configuration", h.handleConfiguration)

	// Wallet sessions
	mux.HandleFunc("POST /quickbuy/sessions", h.handleStartSession)
	mux.HandleFunc("GET /quickbuy/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/merchant-validation", h.handleMerchantValidation)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/shipping-contact", h.handleShippingContact)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/shipping-method", h.handleShippingMethod)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/payment-method", h.handlePaymentMethod)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/payment-data", h.handlePaymentData)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/authorize", h.handleAuthorize)
	mux.HandleFunc("POST /quickbuy/sessions/{id}/cancel", h.handleCancel)

	// Hosted fields and redirect flows
	mux.HandleFunc("POST /quickbuy/payments/{paymentSessionId}/submit", h.handleSubmit)
	mux.HandleFunc("POST /quickbuy/payments/{paymentSessionId}/submit-complete", h.handleSubmitComplete)
	mux.HandleFunc("GET /quickbuy/verify", h.handleVerify)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: h.registry.Len()})
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// shopper binds the storefront to the cookies of the calling browser.
func (h *Handler) shopper(r *http.Request) adapter.Storefront {
	return h.storefronts.ForShopper(r.Cookies())
}

// browserInfo returns the info collected by browser.Middleware, or reads the
// request headers when the middleware is not installed.
func browserInfo(r *http.Request) *model.BrowserInfo {
	if info := browser.FromContext(r.Context()); info != nil {
		return info
	}
	info, _ := browser.FromRequest(r)
	return info
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError
// or PaymentError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.toAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// toAPIError maps err onto the response taxonomy. Payment failures surface
// as 402 with the payment error type as code; a cancelled session is a
// conflict.
func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var payErr *model.PaymentError
	if errors.As(err, &payErr) {
		status := http.StatusPaymentRequired
		if errors.Is(payErr, model.ErrCancelled) {
			status = http.StatusConflict
		}
		return &model.APIError{
			Code:       string(payErr.Type),
			Message:    payErr.Message,
			StatusCode: status,
			Err:        payErr,
		}
	}

	var reqErr *opf.RequestError
	if errors.As(err, &reqErr) {
		h.logger.Warn("storefront request failed", slog.String("error", err.Error()))
		return model.NewUpstreamError("storefront", err)
	}

	h.logger.Error("internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
