// internal/httpserver/auth.go
//
// Operator authentication for the debug endpoints.
// Responsibilities:
//   - Sign HS256 operator tokens (used by the `token` subcommand).
//   - Verify bearer tokens and put the operator name on the request context.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth signs and verifies operator tokens (HS256).
type Auth struct {
	secret []byte
	ttl    time.Duration
}

func NewAuth(secret string, expiresDays int) *Auth {
	if expiresDays <= 0 {
		expiresDays = 7
	}
	return &Auth{secret: []byte(secret), ttl: time.Duration(expiresDays) * 24 * time.Hour}
}

const operatorRole = "operator"

// SignOperatorToken issues a token for the named operator.
func (a *Auth) SignOperatorToken(name string) (string, time.Time, error) {
	if name == "" {
		return "", time.Time{}, errors.New("auth: operator name required")
	}
	now := time.Now()
	exp := now.Add(a.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  name,
		"role": operatorRole,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	})
	ss, err := t.SignedString(a.secret)
	return ss, exp, err
}

// ctxOperatorKey is the context key type for the operator name.
type ctxOperatorKey struct{}

// Operator returns the operator authenticated for r, if any.
func Operator(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(ctxOperatorKey{}).(string)
	return name, ok
}

// requireOperator enforces a valid operator bearer token.
func (a *Auth) requireOperator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			tokenStr := bearer(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return a.secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			name, _ := claims["sub"].(string)
			role, _ := claims["role"].(string)
			if name == "" || role != operatorRole {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxOperatorKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer extracts the token from "Authorization: Bearer <token>".
func bearer(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}
