package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sheetserve/sheetserve/internal/auth"
	"github.com/sheetserve/sheetserve/internal/domain"
	"github.com/sheetserve/sheetserve/internal/storage"
)

type contextKey string

const (
	apiKeyContextKey contextKey = "api_key"
	userIDContextKey contextKey = "user_id"
)

// AdminUserID is the user the configured admin token acts as.
const AdminUserID = "admin"

// Auth creates the management API authentication middleware. Callers
// present their API key as a bearer token; the key's owner becomes the
// current user. The admin token, when configured, is accepted so a fresh
// deployment can mint its first key.
func Auth(store storage.Storage, adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"code":401,"message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			ctx := r.Context()

			if adminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) == 1 {
				ctx = context.WithValue(ctx, userIDContextKey, AdminUserID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			key, err := store.GetAPIKeyByHash(ctx, auth.HashKey(token))
			if err != nil {
				if err == domain.ErrNotFound {
					http.Error(w, `{"code":401,"message":"invalid API key"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}
			if !key.IsActive {
				http.Error(w, `{"code":401,"message":"invalid API key"}`, http.StatusUnauthorized)
				return
			}

			// Update last used timestamp (fire and forget)
			go func() {
				_ = store.UpdateAPIKeyLastUsed(context.Background(), key.ID)
			}()

			ctx = context.WithValue(ctx, apiKeyContextKey, key)
			ctx = context.WithValue(ctx, userIDContextKey, key.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey retrieves the authenticated API key from the request context.
// Nil when the caller authenticated with the admin token.
func GetAPIKey(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(apiKeyContextKey).(*domain.APIKey)
	return key
}

// GetUserID retrieves the current user from the request context.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}
