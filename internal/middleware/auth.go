// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the admin's user id.
	UserIDKey ContextKey = "user_id"
	// UserNameKey is the context key for the admin's display name.
	UserNameKey ContextKey = "user_name"
	// RoleKey is the context key for the admin's role.
	RoleKey ContextKey = "role"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongRole    = errors.New("insufficient permissions")
)

// Claims represents JWT claims issued to staff.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// TokenValidator checks HS256 session tokens.
type TokenValidator struct {
	secret []byte
	role   string
}

// NewTokenValidator creates a validator accepting tokens signed with secret
// whose role claim equals role.
func NewTokenValidator(secret, role string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), role: role}
}

// Parse returns the claims of a valid token. A token with another role
// yields ErrWrongRole alongside its claims.
func (v *TokenValidator) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Role != v.role {
		return claims, ErrWrongRole
	}
	return claims, nil
}

// ValidateToken returns the subject of a valid admin token.
func (v *TokenValidator) ValidateToken(tokenString string) (string, error) {
	claims, err := v.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Auth creates JWT authentication middleware for admin routes.
func Auth(v *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := v.Parse(strings.TrimSpace(parts[1]))
			switch {
			case errors.Is(err, ErrWrongRole):
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserNameKey, claims.Name)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUserName gets the admin's display name from context.
func GetUserName(ctx context.Context) string {
	if v, ok := ctx.Value(UserNameKey).(string); ok {
		return v
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
