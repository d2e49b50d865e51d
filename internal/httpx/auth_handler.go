package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepprhq/preppr-backend/internal/auth"
)

type AuthHandler struct {
	Users  *auth.Repo
	Issuer *auth.TokenIssuer
}

type registerReq struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

// Register wires the public auth routes; Protected wires the ones behind
// the bearer-token middleware.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) Protected(r chi.Router) {
	r.Get("/me/profile", h.getProfile)
	r.Put("/me/profile", h.updateProfile)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Email == "" || req.Username == "" || len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, username and a password of 8+ chars required"})
		return
	}
	if !auth.ValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be buyer or seller"})
		return
	}

	u, err := h.Users.Register(r.Context(), req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		writeErr(w, err)
		return
	}
	token, err := h.Issuer.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResp{Token: token, User: u})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	token, err := h.Issuer.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: token, User: u})
}

func (h *AuthHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	prof, err := h.Users.GetProfile(r.Context(), p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *AuthHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	var prof auth.Profile
	if err := json.NewDecoder(r.Body).Decode(&prof); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	prof.UserID = p.UserID
	out, err := h.Users.UpdateProfile(r.Context(), prof)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
