package i18n

import "net/http"

// CookieName holds an explicit language choice.
const CookieName = "lang"

// Middleware injects a localizer into every request context. A supported
// ?lang= query parameter is remembered in a cookie; otherwise the cookie,
// then Accept-Language, then lang decide.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var chosen string
			if q := r.URL.Query().Get("lang"); q != "" && Supported(q) {
				chosen = q
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    q,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(CookieName); err == nil && Supported(c.Value) {
				chosen = c.Value
			}
			loc := NewLocalizer(chosen, r.Header.Get("Accept-Language"), lang)
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
