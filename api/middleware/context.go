package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kioskpos/pos-backend/pkg/logger"
)

type contextKey string

const (
	ctxTerminalID contextKey = "terminal_id"

	terminalIDHeader = "X-Terminal-Id"
	maxTerminalIDLen = 64
)

// TerminalIDFromContext returns the register or kiosk identifier attached to the request.
func TerminalIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTerminalID).(string); ok {
		return v
	}
	return ""
}

// WithTerminalID injects the terminal identifier into the context.
func WithTerminalID(ctx context.Context, terminalID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTerminalID, terminalID)
}

// Terminal reads the X-Terminal-Id header so idempotency keys are scoped per
// register and log lines carry the device that placed the order.
func Terminal(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			terminalID := strings.TrimSpace(r.Header.Get(terminalIDHeader))
			if len(terminalID) > maxTerminalIDLen {
				terminalID = terminalID[:maxTerminalIDLen]
			}
			if terminalID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithTerminalID(r.Context(), terminalID)
			if logg != nil {
				ctx = logg.WithTerminalID(ctx, terminalID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
