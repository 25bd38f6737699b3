package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCORSRouter(cfg CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(CORSWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestCORSWithConfig(t *testing.T) {
	tests := []struct {
		name            string
		cfg             CORSConfig
		method          string
		origin          string
		wantStatus      int
		wantAllowOrigin string
		wantCredentials string
	}{
		{
			name:            "allowed origin",
			cfg:             CORSConfig{AllowOrigins: []string{"https://portal.school.ke"}, AllowCredentials: true},
			method:          http.MethodGet,
			origin:          "https://portal.school.ke",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://portal.school.ke",
			wantCredentials: "true",
		},
		{
			name:       "origin not in whitelist",
			cfg:        CORSConfig{AllowOrigins: []string{"https://portal.school.ke"}},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty whitelist",
			cfg:        DefaultCORSConfig(),
			method:     http.MethodGet,
			origin:     "https://portal.school.ke",
			wantStatus: http.StatusOK,
		},
		{
			name:            "wildcard never sends credentials",
			cfg:             CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method:          http.MethodGet,
			origin:          "https://anything.example",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:            "preflight for allowed origin",
			cfg:             CORSConfig{AllowOrigins: []string{"https://portal.school.ke"}, AllowMethods: []string{"GET", "POST"}},
			method:          http.MethodOptions,
			origin:          "https://portal.school.ke",
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://portal.school.ke",
		},
		{
			name:       "preflight for unknown origin still answers 204",
			cfg:        CORSConfig{AllowOrigins: []string{"https://portal.school.ke"}},
			method:     http.MethodOptions,
			origin:     "https://evil.example",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			newCORSRouter(tt.cfg).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}

	t.Run("max age and exposed headers", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://portal.school.ke"}
		cfg.MaxAge = 90 * time.Minute

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://portal.school.ke")
		w := httptest.NewRecorder()
		newCORSRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, "5400", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-School-ID")
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("generates request ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
		assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-mpesa-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-mpesa-1", w.Body.String())
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", MaxRequestIDLength+1))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Body.String(), 32)
	})
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 32)
}

func TestSecureWithConfig(t *testing.T) {
	serve := func(cfg SecurityConfig, path string) *httptest.ResponseRecorder {
		router := gin.New()
		router.Use(SecureWithConfig(cfg))
		router.GET("/*any", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("defaults", func(t *testing.T) {
		w := serve(SecurityConfig{}, "/api/v1/invoices")

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("hsts", func(t *testing.T) {
		w := serve(SecurityConfig{HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}, "/api/v1/invoices")
		assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("swagger ui keeps its scripts", func(t *testing.T) {
		w := serve(SecurityConfig{}, "/swagger/index.html")
		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	})
}
