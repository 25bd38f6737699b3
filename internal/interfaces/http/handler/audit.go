package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/audit"
)

// AuditEntryResponse is one audit record
// @Description Audit entry
type AuditEntryResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	Action     string         `json:"action" example:"INVOICE_ITEM_ADDED"`
	EntityType string         `json:"entity_type" example:"Invoice"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// auditEntityTypes maps path segments to stored entity types
var auditEntityTypes = map[string]string{
	"invoices":         audit.EntityInvoice,
	"invoice-items":    audit.EntityInvoiceItem,
	"payments":         audit.EntityPayment,
	"approvals":        audit.EntityApprovalRequest,
	"academic-periods": audit.EntityAcademicPeriod,
	"fee-structures":   audit.EntityFeeStructure,
}

// AuditHandler exposes the audit trail of ledger entities
type AuditHandler struct {
	BaseHandler
	queries *appfinance.LedgerQueryService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(queries *appfinance.LedgerQueryService) *AuditHandler {
	return &AuditHandler{queries: queries}
}

// Trail godoc
//
//	@ID				auditTrail
//	@Summary		Audit trail of an entity
//	@Description	Entries oldest first. A null user_id marks a system action.
//	@Tags			audit
//	@Produce		json
//	@Param			entity	path		string	true	"Entity kind"	Enums(invoices, invoice-items, payments, approvals, academic-periods, fee-structures)
//	@Param			id		path		string	true	"Entity ID"		format(uuid)
//	@Success		200		{object}	APIResponse[[]AuditEntryResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/audit/{entity}/{id} [get]
func (h *AuditHandler) Trail(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	entityType, known := auditEntityTypes[c.Param("entity")]
	if !known {
		h.BadRequest(c, "Unknown entity kind")
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.queries.AuditTrail(c.Request.Context(), actor, entityType, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lo.Map(entries, func(e audit.Entry, _ int) AuditEntryResponse {
		return AuditEntryResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		}
	}))
}
