package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/prepprhq/preppr-backend/internal/auth"
	"github.com/prepprhq/preppr-backend/internal/market"
	"github.com/prepprhq/preppr-backend/internal/redisx"
)

// StallStore is the catalog surface the handler serves; *market.Repo
// implements it.
type StallStore interface {
	List(ctx context.Context, f market.Filter) ([]market.Stall, error)
	Get(ctx context.Context, id string) (market.Stall, error)
	Create(ctx context.Context, s market.Stall) (market.Stall, error)
	Update(ctx context.Context, s market.Stall, ownerID string) (market.Stall, error)
	SetQuantity(ctx context.Context, id, ownerID string, qty int) (market.Stall, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// stallCache is the slice of the redis client the handler touches.
type stallCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type MarketHandler struct {
	Stalls StallStore
	Redis  stallCache
}

func (h *MarketHandler) Register(r chi.Router) {
	r.Get("/stalls", h.list)
	r.Get("/stalls/{id}", h.get)
}

func (h *MarketHandler) Protected(r chi.Router) {
	r.Post("/stalls", h.create)
	r.Put("/stalls/{id}", h.update)
	r.Post("/stalls/{id}/quantity", h.setQuantity)
	r.Delete("/stalls/{id}", h.remove)
}

func (h *MarketHandler) list(w http.ResponseWriter, r *http.Request) {
	f := market.Filter{
		Tag:      r.URL.Query().Get("tag"),
		Location: r.URL.Query().Get("location"),
	}

	// best-effort listing cache keyed on the filter; stock shown here is
	// display-only, checkout reads the database under lock
	key := fmt.Sprintf(redisx.KeyStallList, f.Tag, f.Location)
	if h.serveCached(w, r, key) {
		return
	}

	out, err := h.Stalls.List(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []market.Stall{}
	}
	if h.Redis != nil {
		if b, err := json.Marshal(out); err == nil {
			_ = h.Redis.Set(r.Context(), key, b, redisx.TTLStallCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MarketHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key := fmt.Sprintf(redisx.KeyStall, id)
	if h.serveCached(w, r, key) {
		return
	}

	stall, err := h.Stalls.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cache(r, stall)
	writeJSON(w, http.StatusOK, stall)
}

func (h *MarketHandler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.Redis == nil {
		return false
	}
	s, err := h.Redis.Get(r.Context(), key).Result()
	if err != nil || s == "" {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
	return true
}

func (h *MarketHandler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	var s market.Stall
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if s.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product is required"})
		return
	}
	if s.Quantity < 0 || s.PriceCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity and price_cents must be non-negative"})
		return
	}
	s.OwnerID = p.UserID
	out, err := h.Stalls.Create(r.Context(), s)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *MarketHandler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	var s market.Stall
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	s.ID = chi.URLParam(r, "id")
	out, err := h.Stalls.Update(r.Context(), s, p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cache(r, out)
	writeJSON(w, http.StatusOK, out)
}

func (h *MarketHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be int"})
		return
	}
	out, err := h.Stalls.SetQuantity(r.Context(), chi.URLParam(r, "id"), p.UserID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cache(r, out)
	writeJSON(w, http.StatusOK, out)
}

func (h *MarketHandler) remove(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Stalls.Delete(r.Context(), id, p.UserID); err != nil {
		writeErr(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Del(r.Context(), fmt.Sprintf(redisx.KeyStall, id)).Err()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MarketHandler) cache(r *http.Request, s market.Stall) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyStall, s.ID)
	_ = h.Redis.Set(r.Context(), key, b, redisx.TTLStallCache).Err()
}
