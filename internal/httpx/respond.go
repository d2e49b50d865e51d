package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prepprhq/preppr-backend/internal/auth"
	"github.com/prepprhq/preppr-backend/internal/cart"
	"github.com/prepprhq/preppr-backend/internal/market"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy onto response codes. Stock
// rejections keep their itemized detail so the client can render per-line
// messages.
func writeErr(w http.ResponseWriter, err error) {
	var stockErr *cart.StockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": stockErr.Error(),
			"items": stockErr.Items,
		})
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, market.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, cart.ErrForbidden), errors.Is(err, market.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, cart.ErrCartState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cart is not open"})
	case errors.Is(err, cart.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
	case errors.Is(err, cart.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be accepted or declined"})
	case errors.Is(err, cart.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy, retry"})
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// requireRole pulls the principal off the context and checks its role.
// Every handler passes the principal down explicitly from here.
func requireRole(w http.ResponseWriter, r *http.Request, role auth.Role) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return auth.Principal{}, false
	}
	if p.Role != role {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "wrong role"})
		return auth.Principal{}, false
	}
	return p, true
}
