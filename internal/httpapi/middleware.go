package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/model"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlationId"
	callerKey        contextKey = "caller"
)

// Caller is the resolved identity attached to the request context by
// RequireAuth.
type Caller struct {
	Username string
	Role     model.Role
	Scope    *[]int64
}

// CorrelationMiddleware reads X-Correlation-ID, generating one if absent,
// and threads it through both the response header and the request
// logger so every log line for this request can be tied back together.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)
		logger := log.With().Str("correlation_id", correlationID).Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// SecurityHeaders sets the fixed set of response headers required on
// every response.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}

// CORS applies the configured origin policy: "*" disables credentials,
// any explicit list of origins enables them.
func CORS(allowedOrigins map[string]bool) func(http.Handler) http.Handler {
	wildcard := allowedOrigins["*"]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if allowedOrigins[origin] {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const sessionCookieName = "viewer_auth"

// sessionToken reads the session cookie from the request, if present.
func sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// setSessionCookie writes the viewer_auth cookie per spec.md §6: HttpOnly,
// SameSite=Lax, Max-Age equal to the session TTL in seconds. Secure is set
// when the request was HTTPS (directly or per X-Forwarded-Proto); an
// override of "true" or "false" forces it on or off regardless.
func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAgeSeconds int, secureOverride string) {
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	switch secureOverride {
	case "true":
		secure = true
	case "false":
		secure = false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAgeSeconds,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// RequireAuth resolves the session cookie, rejecting with 401 if missing
// or expired, and attaches the resolved Caller to the request context.
func RequireAuth(sessions *auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := sessionToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			sess, ok := sessions.Validate(token)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "session expired or invalid")
				return
			}
			ctx := context.WithValue(r.Context(), callerKey, Caller{
				Username: sess.Username,
				Role:     sess.Role,
				Scope:    sess.AllowedChatIDs,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMaster builds on RequireAuth's context, rejecting non-master
// callers with 403.
func RequireMaster(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok || caller.Role != model.RoleMaster {
			writeError(w, r, http.StatusForbidden, "master account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFromContext retrieves the resolved Caller attached by RequireAuth.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// LoopbackOnly rejects requests whose resolved source IP is not a
// private/loopback address, used to guard /internal/push.
func LoopbackOnly(check func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !check(r) {
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
