package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/newsrag/internal/api"
	"github.com/cloo-solutions/newsrag/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// TokenValidator resolves a bearer token to a client identifier
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticTokenValidator accepts the single token configured for the server.
type StaticTokenValidator struct {
	token    []byte
	clientID string
}

func NewStaticTokenValidator(token string) *StaticTokenValidator {
	sum := sha256.Sum256([]byte(token))
	return &StaticTokenValidator{
		token:    []byte(token),
		clientID: "token-" + hex.EncodeToString(sum[:4]),
	}
}

func (v *StaticTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	if len(v.token) == 0 || subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	return v.clientID, nil
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if info := getRequestInfo(r.Context()); info != nil {
				info.clientID = clientID
			}
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientID returns the authenticated client, also from middleware that
// runs outside BearerAuth.
func GetClientID(ctx context.Context) string {
	if clientID, ok := ctx.Value(ClientIDKey).(string); ok {
		return clientID
	}
	if info := getRequestInfo(ctx); info != nil {
		return info.clientID
	}
	return ""
}
