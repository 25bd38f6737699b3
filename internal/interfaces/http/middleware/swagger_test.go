package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func swaggerRouter(cfg SwaggerConfig) *gin.Engine {
	r := gin.New()
	docs := r.Group("/swagger", SwaggerProtection(cfg))
	docs.GET("/index.html", func(c *gin.Context) { c.String(http.StatusOK, "docs") })
	return r
}

func TestSwaggerProtection(t *testing.T) {
	tests := []struct {
		name       string
		cfg        SwaggerConfig
		remoteAddr string
		wantStatus int
	}{
		{name: "disabled", cfg: SwaggerConfig{}, remoteAddr: "10.0.0.1:1234", wantStatus: http.StatusNotFound},
		{name: "open", cfg: SwaggerConfig{Enabled: true}, remoteAddr: "203.0.113.9:1234", wantStatus: http.StatusOK},
		{name: "exact ip allowed", cfg: SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}, remoteAddr: "10.0.0.1:1234", wantStatus: http.StatusOK},
		{name: "ip denied", cfg: SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}, remoteAddr: "10.0.0.2:1234", wantStatus: http.StatusForbidden},
		{name: "cidr allowed", cfg: SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.168.0.0/16"}}, remoteAddr: "192.168.4.20:1234", wantStatus: http.StatusOK},
		{name: "invalid entries ignored", cfg: SwaggerConfig{Enabled: true, AllowedIPs: []string{"nope", "10.0.0.0/33"}}, remoteAddr: "10.0.0.1:1234", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()

			swaggerRouter(tt.cfg).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestIPAllowlist(t *testing.T) {
	list := parseAllowlist([]string{"127.0.0.1", " 10.1.0.0/16 ", "::1"})

	assert.True(t, list.allows(net.ParseIP("127.0.0.1")))
	assert.True(t, list.allows(net.ParseIP("10.1.255.3")))
	assert.True(t, list.allows(net.ParseIP("::1")))
	assert.False(t, list.allows(net.ParseIP("10.2.0.1")))
	assert.False(t, list.allows(nil))
}
