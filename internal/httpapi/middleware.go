package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookieName carries the opaque session id the cart API is scoped by.
const SessionCookieName = "sid"

// session cookies outlive the cart cookie so a returning visitor maps back
// to the same persisted slot.
const sessionCookieMaxAge = 30 * 24 * 60 * 60

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionMiddleware reads the sid cookie, issuing a fresh uuid when absent,
// and places the session id on the request context.
func SessionMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
				sid = c.Value
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sid,
					Path:     "/",
					MaxAge:   sessionCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromContext(ctx context.Context) string {
	if sid, ok := ctx.Value(sessionIDKey).(string); ok {
		return sid
	}
	return ""
}
