package handlers

import (
	"net/http"
	"strings"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyMiddleware requires a bearer API key matching a bcrypt hash.
type APIKeyMiddleware struct {
	hash   []byte
	logger logger.Logger
}

// NewAPIKeyMiddleware creates the middleware for a bcrypt hash of the key.
func NewAPIKeyMiddleware(hash string, log logger.Logger) *APIKeyMiddleware {
	return &APIKeyMiddleware{hash: []byte(hash), logger: log}
}

// HashAPIKey returns the bcrypt hash to configure for key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Handler wraps an HTTP handler with API key authentication.
func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.logger.Warn(r.Context(), "missing api key", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		key := strings.TrimPrefix(authHeader, "Bearer ")
		if err := bcrypt.CompareHashAndPassword(m.hash, []byte(key)); err != nil {
			m.logger.Warn(r.Context(), "invalid api key", map[string]interface{}{
				"path": r.URL.Path,
			})
			respondError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
