package handler

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/quizmaster/quizmaster/internal/handler/views"
)

const flashCookieName = "flash"

// setFlash stores a one-shot message shown on the next rendered page.
func (h *Handler) setFlash(w http.ResponseWriter, kind views.FlashKind, msg string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(string(kind) + "|" + msg))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     h.cookiePath(),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) (views.Flash, bool) {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return views.Flash{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return views.Flash{}, false
	}
	kind, msg, ok := strings.Cut(string(raw), "|")
	if !ok {
		return views.Flash{}, false
	}
	return views.Flash{Kind: views.FlashKind(kind), Message: msg}, true
}
