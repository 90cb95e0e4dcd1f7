package middleware

import (
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/gymlog/internal/telemetry/tracing"
	"github.com/2beens/gymlog/pkg"
)

const AuthTokenHeader = "X-GYMLOG-TOKEN"

// AuthMiddlewareHandler lets through requests carrying a token that matches
// the configured bcrypt hash. An empty hash disables the check.
type AuthMiddlewareHandler struct {
	tokenHash    string
	allowedPaths map[string]bool

	mutex sync.RWMutex
	// bcrypt is slow, tokens already checked are remembered
	verified map[string]bool
}

func NewAuthMiddlewareHandler(tokenHash string) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		tokenHash: tokenHash,
		allowedPaths: map[string]bool{
			"/":        true,
			"/health":  true,
			"/version": true,
		},
		verified: map[string]bool{},
	}
}

func (h *AuthMiddlewareHandler) tokenValid(token string) bool {
	h.mutex.RLock()
	ok := h.verified[token]
	h.mutex.RUnlock()
	if ok {
		return true
	}

	if !pkg.TokenMatchesHash(token, h.tokenHash) {
		return false
	}

	h.mutex.Lock()
	h.verified[token] = true
	h.mutex.Unlock()
	return true
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", corsAllowMethods)
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.tokenHash == "" || h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := r.Header.Get(AuthTokenHeader)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			if !h.tokenValid(authToken) {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "invalid-token")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}
