package httpapi

import (
	"net/http"
	"time"

	"github.com/jsvoboda/authd/internal/server/services"
)

const (
	accessCookieName  = "token"
	refreshCookieName = "refresh_token"
)

func (h *Handler) sessionCookie(name, value string, maxAge time.Duration) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	}
}

// attachSessionCookies sets the access and refresh token cookies for a
// freshly issued session pair.
func (h *Handler) attachSessionCookies(w http.ResponseWriter, pair *services.SessionPair) {
	http.SetCookie(w, h.sessionCookie(accessCookieName, pair.AccessToken, h.accessTTL))
	http.SetCookie(w, h.sessionCookie(refreshCookieName, pair.RefreshToken, time.Until(pair.RefreshExpiresAt)))
}

// clearSessionCookies expires both session cookies.
func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.sessionCookie(accessCookieName, "", -time.Second))
	http.SetCookie(w, h.sessionCookie(refreshCookieName, "", -time.Second))
}
