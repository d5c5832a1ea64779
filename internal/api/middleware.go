/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * verification for users, a role gate for admins, the internal API key check for
 * server-to-server calls, and resolution of the caller's points account.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: HS256 token verification.
 */

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/engagely/points-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	subjectContextKey contextKey = "subject"
	roleContextKey    contextKey = "role"
	accountContextKey contextKey = "account"
)

const adminRole = "admin"

// AuthConfig controls how bearer tokens are verified.
type AuthConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTAuthMiddleware validates HS256 bearer tokens and stores the subject and role
// claims in the request context.
func JWTAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}
			if len(cfg.Secret) == 0 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Token verification is not configured")
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || strings.TrimSpace(subject) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Subject not found in token")
				return
			}
			role, _ := claims["role"].(string)

			ctx := context.WithValue(r.Context(), subjectContextKey, subject)
			ctx = context.WithValue(ctx, roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects callers whose token does not carry the admin role.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(roleContextKey).(string); role != adminRole {
			writeError(w, http.StatusForbidden, "forbidden", "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InternalAuthMiddleware validates the internal API key for server-to-server calls.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				writeError(w, http.StatusServiceUnavailable, "unavailable", "Internal API is not configured")
				return
			}
			provided := r.Header.Get("X-Internal-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountResolver looks up the account behind a token subject.
type AccountResolver interface {
	GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
}

// AccountMiddleware resolves the token subject to a live points account.
func AccountMiddleware(resolver AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := GetSubject(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing subject")
				return
			}
			account, err := resolver.GetAccountByUserID(r.Context(), subject)
			if err != nil {
				status, code, message := mapLedgerError(err)
				if errors.Is(err, errAccountNotFound) {
					message = "No points account for this user"
				}
				writeError(w, status, code, message)
				return
			}
			ctx := context.WithValue(r.Context(), accountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject returns the authenticated identity-service user id.
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey).(string)
	return subject, ok
}

// GetAccount returns the caller's resolved account.
func GetAccount(ctx context.Context) (*domain.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*domain.Account)
	return account, ok && account != nil
}

func isAdmin(ctx context.Context) bool {
	role, _ := ctx.Value(roleContextKey).(string)
	return role == adminRole
}
