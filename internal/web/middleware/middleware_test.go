package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/config"
	"github.com/JonMunkholm/routeimport/internal/core"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// API key auth
// ============================================================================

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "bravo"}}
	h := APIKeyAuth(cfg)(okHandler())

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "charlie", http.StatusForbidden},
		{"first key", "alpha", http.StatusOK},
		{"second key", "bravo", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusOK {
				assert.Contains(t, rec.Body.String(), "AUTH001")
			}
		})
	}
}

func TestAPIKeyAuth_DisabledPassesThrough(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{})(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ============================================================================
// Identity
// ============================================================================

func captureIdentity(t *testing.T, secret string, setup func(*http.Request)) (*httptest.ResponseRecorder, string, string) {
	t.Helper()
	var user, ip string
	h := Identity(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = core.UsernameFromContext(r.Context())
		ip = core.IPAddressFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	setup(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, user, ip
}

func signed(t *testing.T, secret string, method jwt.SigningMethod, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{Subject: sub}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestIdentity_HeaderFallback(t *testing.T) {
	rec, user, ip := captureIdentity(t, "", func(r *http.Request) {
		r.Header.Set(UsernameHeader, " ann ")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann", user)
	assert.Equal(t, "192.0.2.7", ip)
}

func TestIdentity_BearerSubjectWins(t *testing.T) {
	tok := signed(t, "s3cret", jwt.SigningMethodHS256, "bob")
	rec, user, _ := captureIdentity(t, "s3cret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
		r.Header.Set(UsernameHeader, "ann")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", user)
}

func TestIdentity_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signed(t, "other", jwt.SigningMethodHS256, "bob")},
		{"wrong algorithm", signed(t, "s3cret", jwt.SigningMethodHS512, "bob")},
		{"no subject", signed(t, "s3cret", jwt.SigningMethodHS256, "")},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user, _ := captureIdentity(t, "s3cret", func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, user)
		})
	}
}

// ============================================================================
// Real IP
// ============================================================================

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})

	tests := []struct {
		name    string
		remote  string
		realIP  string
		forward string
		want    string
	}{
		{"trusted proxy x-real-ip", "10.1.2.3:80", "203.0.113.9", "", "203.0.113.9"},
		{"trusted proxy forwarded chain", "127.0.0.1:80", "", "198.51.100.1, 10.0.0.1", "198.51.100.1"},
		{"untrusted client spoofing", "192.0.2.1:80", "203.0.113.9", "", "192.0.2.1"},
		{"trusted proxy garbage header", "10.0.0.5:80", "not-an-ip", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forward != "" {
				req.Header.Set("X-Forwarded-For", tt.forward)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================================
// Logger
// ============================================================================

func TestLogger_RecordsStatusAndSize(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/routes", nil))

	out := buf.String()
	for _, want := range []string{"status=418", "bytes=5", "path=/api/routes", "method=GET"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}
