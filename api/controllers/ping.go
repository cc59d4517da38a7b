package controllers

import (
	"net/http"

	"github.com/kioskpos/pos-backend/api/middleware"
	"github.com/kioskpos/pos-backend/api/responses"
)

// Ping lets a register confirm connectivity and see which terminal id the API resolved.
func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"status": "ok"}
		if terminal := middleware.TerminalIDFromContext(r.Context()); terminal != "" {
			payload["terminal_id"] = terminal
		}
		responses.WriteSuccess(w, payload)
	}
}
