package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
)

// ApprovalHandler serves the dual-authorization workflow
type ApprovalHandler struct {
	BaseHandler
	approvals *appfinance.ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(approvals *appfinance.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// Create godoc
//
//	@ID				createApproval
//	@Summary		Request an invoice cancellation or balance adjustment
//	@Description	The change runs only once a different approver accepts it
//	@Tags			approvals
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateApprovalRequest	true	"Requested change"
//	@Success		201		{object}	APIResponse[ApprovalResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/approvals [post]
func (h *ApprovalHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req CreateApprovalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action := req.action()
	if action == nil {
		h.BadRequest(c, "new_balance and new_total are required for a balance adjustment")
		return
	}

	approval, err := h.approvals.Create(c.Request.Context(), actor, action, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toApprovalResponse(approval))
}

// Decide godoc
//
//	@ID				decideApproval
//	@Summary		Approve or reject a request
//	@Description	The requester can never decide their own request
//	@Tags			approvals
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Approval request ID"	format(uuid)
//	@Param			request	body		DecideApprovalRequest	true	"Decision"
//	@Success		200		{object}	APIResponse[ApprovalResponse]
//	@Failure		403		{object}	ErrorResponse	"Self approval"
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Already decided"
//	@Security		BearerAuth
//	@Router			/approvals/{id}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req DecideApprovalRequest
	if !h.bindJSON(c, &req) {
		return
	}

	approval, err := h.approvals.Decide(c.Request.Context(), actor, id, finance.ApprovalDecision(req.Decision), req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toApprovalResponse(approval))
}

// Get godoc
//
//	@ID				getApproval
//	@Summary		Get an approval request
//	@Tags			approvals
//	@Produce		json
//	@Param			id	path		string	true	"Approval request ID"	format(uuid)
//	@Success		200	{object}	APIResponse[ApprovalResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	approval, err := h.approvals.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toApprovalResponse(approval))
}

// List godoc
//
//	@ID				listApprovals
//	@Summary		List approval requests
//	@Tags			approvals
//	@Produce		json
//	@Param			status	query		string	false	"Status"	Enums(PENDING, APPROVED, REJECTED)
//	@Success		200		{object}	APIResponse[[]ApprovalResponse]
//	@Security		BearerAuth
//	@Router			/approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q ListApprovalsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	var status *finance.ApprovalStatus
	if q.Status != "" {
		s := finance.ApprovalStatus(q.Status)
		status = &s
	}

	approvals, err := h.approvals.List(c.Request.Context(), actor, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lo.Map(approvals, func(r finance.ApprovalRequest, _ int) ApprovalResponse {
		return toApprovalResponse(&r)
	}))
}
