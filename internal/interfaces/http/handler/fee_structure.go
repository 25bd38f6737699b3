package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
)

// FeeStructureHandler manages fee structures. Every change is propagated to
// the invoices of the period before the response is written.
type FeeStructureHandler struct {
	BaseHandler
	structures *appfinance.FeeStructureService
	sync       *appfinance.FeeSyncService
}

// NewFeeStructureHandler creates a new FeeStructureHandler
func NewFeeStructureHandler(structures *appfinance.FeeStructureService, sync *appfinance.FeeSyncService) *FeeStructureHandler {
	return &FeeStructureHandler{structures: structures, sync: sync}
}

// Create godoc
//
//	@ID				createFeeStructure
//	@Summary		Create a fee structure
//	@Tags			fee-structures
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateFeeStructureRequest	true	"Fee structure"
//	@Success		201		{object}	APIResponse[FeeStructureChangeResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/fee-structures [post]
func (h *FeeStructureHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req CreateFeeStructureRequest
	if !h.bindJSON(c, &req) {
		return
	}
	classID, _ := optionalUUID(req.ClassID)

	change, err := h.structures.Create(c.Request.Context(), actor, appfinance.CreateFeeStructureCommand{
		AcademicPeriodID: uuid.MustParse(req.AcademicPeriodID),
		ClassID:          classID,
		Name:             req.Name,
		Description:      req.Description,
		Amount:           req.Amount,
		Category:         finance.FeeCategory(req.Category),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toFeeStructureChangeResponse(change))
}

// Update godoc
//
//	@ID				updateFeeStructure
//	@Summary		Update a fee structure
//	@Description	Refreshes the matching line on every invoice of the period
//	@Tags			fee-structures
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Fee structure ID"	format(uuid)
//	@Param			request	body		UpdateFeeStructureRequest	true	"Fields"
//	@Success		200		{object}	APIResponse[FeeStructureChangeResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/fee-structures/{id} [put]
func (h *FeeStructureHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateFeeStructureRequest
	if !h.bindJSON(c, &req) {
		return
	}

	change, err := h.structures.Update(c.Request.Context(), actor, id, appfinance.UpdateFeeStructureCommand{
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		Category:    finance.FeeCategory(req.Category),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toFeeStructureChangeResponse(change))
}

// Deactivate godoc
//
//	@ID				deactivateFeeStructure
//	@Summary		Deactivate a fee structure
//	@Description	Soft delete. Lines generated from it are removed from invoices.
//	@Tags			fee-structures
//	@Produce		json
//	@Param			id	path		string	true	"Fee structure ID"	format(uuid)
//	@Success		200	{object}	APIResponse[FeeStructureChangeResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/fee-structures/{id} [delete]
func (h *FeeStructureHandler) Deactivate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	change, err := h.structures.Deactivate(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toFeeStructureChangeResponse(change))
}

// Sync godoc
//
//	@ID				syncFeeStructure
//	@Summary		Re-run propagation of a fee structure
//	@Tags			fee-structures
//	@Produce		json
//	@Param			id	path		string	true	"Fee structure ID"	format(uuid)
//	@Success		200	{object}	APIResponse[appfinance.SyncResult]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/fee-structures/{id}/sync [post]
func (h *FeeStructureHandler) Sync(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.sync.Sync(c.Request.Context(), actor.SchoolID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// List godoc
//
//	@ID				listFeeStructures
//	@Summary		List fee structures
//	@Tags			fee-structures
//	@Produce		json
//	@Param			academic_period_id	query		string	false	"Period"	format(uuid)
//	@Param			class_id			query		string	false	"Class"		format(uuid)
//	@Param			active_only			query		bool	false	"Only active structures"
//	@Success		200					{object}	APIResponse[[]FeeStructureResponse]
//	@Security		BearerAuth
//	@Router			/fee-structures [get]
func (h *FeeStructureHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q ListFeeStructuresQuery
	if !h.bindQuery(c, &q) {
		return
	}
	filter := finance.FeeStructureFilter{ActiveOnly: q.ActiveOnly}
	filter.AcademicPeriodID, _ = optionalUUID(q.AcademicPeriodID)
	filter.ClassID, _ = optionalUUID(q.ClassID)

	structures, err := h.structures.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lo.Map(structures, func(fs finance.FeeStructure, _ int) FeeStructureResponse {
		return toFeeStructureResponse(&fs)
	}))
}
