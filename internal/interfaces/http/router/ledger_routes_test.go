package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
)

// actorFromHeader stands in for the JWT middleware: X-Test-Role selects the
// caller's role, no header means anonymous
func actorFromHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ActorKey, identity.Actor{
			UserID:   uuid.New(),
			SchoolID: uuid.New(),
			Role:     identity.Role(role),
		})
		c.Next()
	}
}

func newLedgerEngine() *gin.Engine {
	engine := gin.New()
	h := LedgerHandlers{
		Invoices:      handler.NewInvoiceHandler(nil, nil, nil),
		FeeStructures: handler.NewFeeStructureHandler(nil, nil),
		Payments:      handler.NewPaymentHandler(nil, nil),
		Approvals:     handler.NewApprovalHandler(nil),
		Periods:       handler.NewPeriodHandler(nil),
		Audit:         handler.NewAuditHandler(nil),
		Webhooks:      handler.NewMpesaWebhookHandler(nil),
		System:        handler.NewSystemHandler("school-fees", "test", nil),
	}
	RegisterLedgerRoutes(NewRouter(engine), h, LedgerRouteOptions{
		Authenticated: []gin.HandlerFunc{actorFromHeader()},
	}).Setup()
	return engine
}

func TestRegisterLedgerRoutes_Table(t *testing.T) {
	engine := newLedgerEngine()

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /api/v1/invoices",
		"GET /api/v1/invoices/:id",
		"POST /api/v1/invoices/generate",
		"POST /api/v1/invoices/generate/student",
		"POST /api/v1/invoices/:id/items",
		"DELETE /api/v1/invoices/items/:itemId",
		"PUT /api/v1/invoices/items/:itemId/dismissal",
		"GET /api/v1/fee-structures",
		"POST /api/v1/fee-structures",
		"PUT /api/v1/fee-structures/:id",
		"DELETE /api/v1/fee-structures/:id",
		"POST /api/v1/fee-structures/:id/sync",
		"GET /api/v1/payments",
		"POST /api/v1/payments/manual",
		"POST /api/v1/payments/bank-transfer",
		"POST /api/v1/payments/stk-push",
		"POST /api/v1/payments/:id/assign",
		"GET /api/v1/approvals",
		"GET /api/v1/approvals/:id",
		"POST /api/v1/approvals",
		"POST /api/v1/approvals/:id/decision",
		"GET /api/v1/academic-periods",
		"GET /api/v1/academic-periods/current",
		"POST /api/v1/academic-periods",
		"POST /api/v1/academic-periods/:id/activate",
		"GET /api/v1/audit/:entity/:id",
		"POST /api/v1/webhooks/mpesa/stk-callback",
		"POST /api/v1/webhooks/mpesa/c2b/validation",
		"POST /api/v1/webhooks/mpesa/c2b/confirmation",
		"GET /api/v1/system/info",
		"GET /api/v1/system/ping",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestRegisterLedgerRoutes_Access(t *testing.T) {
	engine := newLedgerEngine()

	tests := []struct {
		name       string
		method     string
		path       string
		role       identity.Role
		wantStatus int
	}{
		{name: "anonymous invoice list", method: http.MethodGet, path: "/api/v1/invoices", wantStatus: http.StatusUnauthorized},
		{name: "parent generates invoices", method: http.MethodPost, path: "/api/v1/invoices/generate", role: identity.RoleParent, wantStatus: http.StatusForbidden},
		{name: "parent records payment", method: http.MethodPost, path: "/api/v1/payments/manual", role: identity.RoleParent, wantStatus: http.StatusForbidden},
		{name: "parent lists fee structures", method: http.MethodGet, path: "/api/v1/fee-structures", role: identity.RoleParent, wantStatus: http.StatusForbidden},
		{name: "parent reads audit", method: http.MethodGet, path: "/api/v1/audit/invoices/" + uuid.NewString(), role: identity.RoleParent, wantStatus: http.StatusForbidden},
		{name: "finance manager decides approval", method: http.MethodPost, path: "/api/v1/approvals/" + uuid.NewString() + "/decision", role: identity.RoleFinanceManager, wantStatus: http.StatusForbidden},
		{name: "bad invoice id reaches handler", method: http.MethodGet, path: "/api/v1/invoices/not-a-uuid", role: identity.RoleParent, wantStatus: http.StatusBadRequest},
		{name: "principal system info", method: http.MethodGet, path: "/api/v1/system/info", role: identity.RolePrincipal, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("X-Test-Role", string(tt.role))
			}
			engine.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRegisterLedgerRoutes_WebhooksArePublic(t *testing.T) {
	engine := newLedgerEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/stk-callback", strings.NewReader(`{"Body":`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
