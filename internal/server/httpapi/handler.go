package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/logging"
	"github.com/jsvoboda/authd/internal/server/auth"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/server/models"
	"github.com/jsvoboda/authd/internal/server/services"
)

// Handler exposes the session API over HTTP.
type Handler struct {
	sessions   *services.SessionService
	tokens     *auth.Manager
	logger     logging.Logger
	production bool
	accessTTL  time.Duration
}

func NewHandler(sessions *services.SessionService, tokens *auth.Manager, logger logging.Logger, cfg *config.Config) *Handler {
	return &Handler{
		sessions:   sessions,
		tokens:     tokens,
		logger:     logger.With("module", "httpapi"),
		production: cfg.IsProduction(),
		accessTTL:  tokens.AccessTTL(),
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/refresh", h.refresh)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/me", h.requireAuth(h.me))
	mux.HandleFunc("GET /api/health", h.health)
	return mux
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponseOf(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, autherr.New(autherr.KindValidation, "invalid request body"))
		return
	}

	pair, err := h.sessions.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.attachSessionCookies(w, pair)
	h.writeJSON(w, http.StatusCreated, userResponseOf(pair.User))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, autherr.New(autherr.KindValidation, "invalid request body"))
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.attachSessionCookies(w, pair)
	h.writeJSON(w, http.StatusOK, userResponseOf(pair.User))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		presented = c.Value
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.clearSessionCookies(w)
		h.writeError(w, r, err)
		return
	}

	h.attachSessionCookies(w, pair)
	h.writeJSON(w, http.StatusOK, userResponseOf(pair.User))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookieName); err == nil {
		h.sessions.Logout(r.Context(), c.Value)
	}
	h.clearSessionCookies(w)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, r, autherr.ErrUnauthenticated)
		return
	}

	user, err := h.sessions.CurrentUser(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponseOf(user))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error(context.Background(), "writing response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrEmailExists):
		status = http.StatusConflict
	default:
		switch autherr.KindOf(err) {
		case autherr.KindValidation:
			status = http.StatusBadRequest
		case autherr.KindAuth, autherr.KindInvalidCredential,
			autherr.KindExpiredCredential, autherr.KindUnauthenticated:
			status = http.StatusUnauthorized
		}
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
