package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionInfo carries the resolved session identity for downstream handlers.
// OTPVerified reports whether the session completed the one-time-code step;
// sessions that have not are treated as unauthenticated by protected routes.
type SessionInfo struct {
	SessionID   string
	UID         string
	Email       string
	Role        string
	OTPVerified bool
}

// SessionVerifier resolves a bearer token into session info.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*SessionInfo, error)
}

type contextKeySession struct{}

// ContextKeySession is exported for use in handlers and tests.
var ContextKeySession = contextKeySession{}

// GetSession retrieves the resolved session info from the context.
func GetSession(ctx context.Context) *SessionInfo {
	info, ok := ctx.Value(ContextKeySession).(*SessionInfo)
	if !ok {
		return nil
	}
	return info
}

// WithSession stores session info on the context. Exported for tests.
func WithSession(ctx context.Context, info *SessionInfo) context.Context {
	return context.WithValue(ctx, ContextKeySession, info)
}

// RequireSession validates the bearer token and stores the resolved session
// on the request context. Requests without a valid session get 401.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			info, err := verifier.VerifySession(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, info)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
