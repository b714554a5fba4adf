package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"redlight-quiz/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the authenticated identity between requests. The
// collaborator store did the actual password check; the token only ferries
// its verdict.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for an authenticated identity.
func IssueToken(secret []byte, identity domain.Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies a token and recovers the identity.
func ParseToken(secret []byte, raw string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, fmt.Errorf("invalid token")
	}
	return domain.Identity{UserID: claims.Subject, Username: claims.Username, Role: claims.Role}, nil
}

type identityKey struct{}

// IdentityFromContext returns the identity stored by RequireRole.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

// RequireRole gates a handler on a valid token carrying the given role.
// The token is read from the Authorization header or, for websocket
// clients that cannot set headers, the token query parameter.
func RequireRole(secret []byte, role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		identity, err := ParseToken(secret, raw)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if identity.Role != role {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
