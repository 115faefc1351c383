package browser

import (
	"context"
	"log/slog"
	"net/http"

	"opf-quickbuy/internal/model"
)

type contextKey string

// InfoContextKey is the context key for the request's *model.BrowserInfo.
const InfoContextKey contextKey = "opf.browser-info"

// Middleware stores the request's browser info in its context. Browser info
// is best effort: a malformed header is logged and the request proceeds with
// what the standard headers provide.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := FromRequest(r)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid browser info header",
					slog.String("header", r.Header.Get(HeaderName)),
					slog.String("error", err.Error()))
			}
			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}

// WithInfo returns a copy of ctx carrying info.
func WithInfo(ctx context.Context, info *model.BrowserInfo) context.Context {
	return context.WithValue(ctx, InfoContextKey, info)
}

// FromContext retrieves the browser info stored by Middleware.
// Returns nil if the middleware did not run.
func FromContext(ctx context.Context) *model.BrowserInfo {
	info, _ := ctx.Value(InfoContextKey).(*model.BrowserInfo)
	return info
}
