package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// UsernameHeader names the caller when no bearer token is used.
const UsernameHeader = "X-Username"

// Identity puts the caller's username, IP and User-Agent on the request
// context.
//
// With a non-empty secret, an "Authorization: Bearer" HS256 token is
// required to be valid and its subject becomes the username. Without a
// token the X-Username header is used.
func Identity(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(UsernameHeader))

			if raw, ok := bearerToken(r); ok && len(key) > 0 {
				sub, err := subject(raw, key)
				if err != nil {
					slog.Warn("auth: invalid bearer token",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", err,
					)
					writeAuthError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
				username = sub
			}

			ctx := r.Context()
			if username != "" {
				ctx = core.ContextWithUsername(ctx, username)
			}
			ctx = core.ContextWithIPAddress(ctx, ClientIP(r))
			ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func subject(raw string, key []byte) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}
