package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const userIDKey ctxKey = iota

// Claims are the JWT claims issued to signed-in users.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken validates tokenString and returns its user id.
func parseToken(secret []byte, tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("invalid token: missing userId")
	}
	return claims.UserID, nil
}

// withUser puts the bearer token's user id in the request context. Requests
// without a token pass through anonymous; the services decide whether an
// action needs a user. A present but invalid token is rejected.
func withUser(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "InvalidToken", "invalid token format")
			return
		}
		userID, err := parseToken(secret, tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "InvalidToken", "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// userFrom returns the signed-in user id or "".
func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
