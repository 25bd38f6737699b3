package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(body string, status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(status, body) }
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.GET("/ping", respond("pong", http.StatusOK))

	r := NewRouter(engine, WithAPIVersion("v2")).Register(invoices)
	assert.Len(t, r.registrars, 1)
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v2/invoices/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/invoices/ping").Code)
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("fee-structures", "/fee-structures")
	g.GET("", respond("list", http.StatusOK)).
		POST("", respond("created", http.StatusCreated)).
		PUT("/:id", respond("updated", http.StatusOK)).
		PATCH("/:id", respond("patched", http.StatusOK)).
		DELETE("/:id", respond("", http.StatusNoContent))
	NewRouter(engine).Register(g).Setup()

	assert.Equal(t, "fee-structures", g.Name())
	assert.Equal(t, "/fee-structures", g.Prefix())

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/api/v1/fee-structures", http.StatusOK, "list"},
		{http.MethodPost, "/api/v1/fee-structures", http.StatusCreated, "created"},
		{http.MethodPut, "/api/v1/fee-structures/42", http.StatusOK, "updated"},
		{http.MethodPatch, "/api/v1/fee-structures/42", http.StatusOK, "patched"},
		{http.MethodDelete, "/api/v1/fee-structures/42", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestDomainGroup_MiddlewareAndSubgroups(t *testing.T) {
	engine := gin.New()
	var order []string

	payments := NewDomainGroup("payments", "/payments").Use(func(c *gin.Context) {
		order = append(order, "group")
		c.Header("X-Group", "payments")
		c.Next()
	})
	payments.GET("", respond("payments", http.StatusOK))

	webhooks := payments.Group("webhooks", "/webhooks")
	webhooks.Use(func(c *gin.Context) {
		order = append(order, "subgroup")
		c.Next()
	})
	webhooks.POST("/c2b", respond("ack", http.StatusOK))

	NewRouter(engine).Register(payments).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/payments")
	assert.Equal(t, "payments", w.Header().Get("X-Group"))

	order = nil
	w = serve(engine, http.MethodPost, "/api/v1/payments/webhooks/c2b")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ack", w.Body.String())
	assert.Equal(t, []string{"group", "subgroup"}, order)
}
