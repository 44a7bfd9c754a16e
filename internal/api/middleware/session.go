package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/newthinker/investeai/internal/session"
)

const (
	// SessionCookie names the browser session cookie.
	SessionCookie = "investeai_session"
	// SessionHeader lets API clients pick their session explicitly.
	SessionHeader = "X-Session-ID"
)

type sessionKey struct{}

// Session resolves the caller's session id from the X-Session-ID header
// or the session cookie, issuing a new id when neither carries a valid
// one. The id is echoed in the header and refreshed in the cookie.
func Session(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !session.ValidID(id) {
				id = ""
				if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = session.NewID()
			}

			cookie := &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			}
			if ttl > 0 {
				cookie.MaxAge = int(ttl.Seconds())
			}
			http.SetCookie(w, cookie)
			w.Header().Set(SessionHeader, id)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
		})
	}
}

// SessionID returns the id resolved by Session, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
