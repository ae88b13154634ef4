package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Session identification.
const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "shop_session"
)

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	// MaxAge is the cookie lifetime. Zero means one year.
	MaxAge time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

type sessionKey struct{}

// SessionFromContext returns the session id, or "" when Session did not run.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithSession returns a context carrying the session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// Session identifies the browser session that checkout state is kept under.
// The id is taken from the X-Session-ID header, then the shop_session cookie;
// a new UUID is issued when neither carries a valid UUID. The id is always
// echoed in the header and the cookie is refreshed.
func Session(cfg SessionConfig) Middleware {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionID(r)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(SessionHeader, id)
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
		})
	}
}

func sessionID(r *http.Request) string {
	if id, ok := parseSessionID(r.Header.Get(SessionHeader)); ok {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, ok := parseSessionID(c.Value); ok {
			return id
		}
	}
	return ""
}

func parseSessionID(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	u, err := uuid.Parse(v)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
