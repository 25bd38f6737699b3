package router

import (
	"github.com/gin-gonic/gin"
	"github.com/schoolfees/backend/internal/interfaces/http/handler"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
)

// LedgerHandlers are the handlers behind the /api/v1 ledger routes
type LedgerHandlers struct {
	Invoices      *handler.InvoiceHandler
	FeeStructures *handler.FeeStructureHandler
	Payments      *handler.PaymentHandler
	Approvals     *handler.ApprovalHandler
	Periods       *handler.PeriodHandler
	Audit         *handler.AuditHandler
	Webhooks      *handler.MpesaWebhookHandler
	System        *handler.SystemHandler
}

// LedgerRouteOptions carries the middleware shared by the ledger groups.
// Authenticated runs in front of every group except the webhooks.
type LedgerRouteOptions struct {
	Authenticated []gin.HandlerFunc
	Webhook       []gin.HandlerFunc
}

// RegisterLedgerRoutes adds the fees ledger domain groups to r.
// Parents reach only the read routes; the services narrow them to their
// own children.
func RegisterLedgerRoutes(r *Router, h LedgerHandlers, opts LedgerRouteOptions) *Router {
	staff := middleware.RequireFinanceStaff()

	invoices := NewDomainGroup("invoices", "/invoices").Use(opts.Authenticated...)
	invoices.GET("", h.Invoices.List)
	invoices.GET("/:id", h.Invoices.Get)
	invoices.POST("/generate", staff, h.Invoices.Generate)
	invoices.POST("/generate/student", staff, h.Invoices.GenerateForStudent)
	invoices.POST("/:id/items", staff, h.Invoices.AddItem)
	invoices.DELETE("/items/:itemId", staff, h.Invoices.RemoveItem)
	invoices.PUT("/items/:itemId/dismissal", staff, h.Invoices.SetItemDismissed)

	fees := NewDomainGroup("fee-structures", "/fee-structures").Use(opts.Authenticated...).Use(staff)
	fees.GET("", h.FeeStructures.List)
	fees.POST("", h.FeeStructures.Create)
	fees.PUT("/:id", h.FeeStructures.Update)
	fees.DELETE("/:id", h.FeeStructures.Deactivate)
	fees.POST("/:id/sync", h.FeeStructures.Sync)

	payments := NewDomainGroup("payments", "/payments").Use(opts.Authenticated...)
	payments.GET("", h.Payments.List)
	payments.POST("/manual", staff, h.Payments.RecordManual)
	payments.POST("/bank-transfer", staff, h.Payments.RecordBankTransfer)
	payments.POST("/stk-push", staff, h.Payments.InitiateSTKPush)
	payments.POST("/:id/assign", staff, h.Payments.Assign)

	approvals := NewDomainGroup("approvals", "/approvals").Use(opts.Authenticated...).Use(staff)
	approvals.GET("", h.Approvals.List)
	approvals.GET("/:id", h.Approvals.Get)
	approvals.POST("", h.Approvals.Create)
	approvals.POST("/:id/decision", middleware.RequireApprover(), h.Approvals.Decide)

	periods := NewDomainGroup("academic-periods", "/academic-periods").Use(opts.Authenticated...)
	periods.GET("", h.Periods.List)
	periods.GET("/current", h.Periods.Current)
	periods.POST("", staff, h.Periods.Create)
	periods.POST("/:id/activate", staff, h.Periods.Activate)

	trail := NewDomainGroup("audit", "/audit").Use(opts.Authenticated...).Use(staff)
	trail.GET("/:entity/:id", h.Audit.Trail)

	webhooks := NewDomainGroup("webhooks", "/webhooks/mpesa").Use(opts.Webhook...)
	webhooks.POST("/stk-callback", h.Webhooks.STKCallback)
	webhooks.POST("/c2b/validation", h.Webhooks.C2BValidation)
	webhooks.POST("/c2b/confirmation", h.Webhooks.C2BConfirmation)

	r.Register(invoices).
		Register(fees).
		Register(payments).
		Register(approvals).
		Register(periods).
		Register(trail).
		Register(webhooks)

	if h.System != nil {
		system := NewDomainGroup("system", "/system").Use(opts.Authenticated...)
		system.GET("/info", h.System.GetSystemInfo)
		system.GET("/ping", h.System.Ping)
		r.Register(system)
	}
	return r
}
