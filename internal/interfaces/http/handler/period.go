package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	appacademic "github.com/schoolfees/backend/internal/application/academic"
	"github.com/schoolfees/backend/internal/domain/academic"
)

// PeriodResponse is an academic term
// @Description Academic period
type PeriodResponse struct {
	ID           uuid.UUID `json:"id"`
	SchoolID     uuid.UUID `json:"school_id"`
	AcademicYear int       `json:"academic_year" example:"2025"`
	Term         int       `json:"term" example:"1"`
	Name         string    `json:"name" example:"2025 Term 1"`
	StartDate    string    `json:"start_date" example:"2025-01-06"`
	EndDate      string    `json:"end_date" example:"2025-04-04"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toPeriodResponse(p *academic.AcademicPeriod) PeriodResponse {
	return PeriodResponse{
		ID:           p.ID,
		SchoolID:     p.SchoolID,
		AcademicYear: p.AcademicYear,
		Term:         p.Term,
		Name:         p.Name,
		StartDate:    p.StartDate.Format(dateLayout),
		EndDate:      p.EndDate.Format(dateLayout),
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
}

// CreatePeriodRequest adds a term to the school calendar
// @Description New academic period
type CreatePeriodRequest struct {
	AcademicYear int    `json:"academic_year" binding:"required,min=2000,max=2100" example:"2025"`
	Term         int    `json:"term" binding:"required,term" example:"1"`
	StartDate    string `json:"start_date" binding:"required,datetime=2006-01-02" example:"2025-01-06"`
	EndDate      string `json:"end_date" binding:"required,datetime=2006-01-02" example:"2025-04-04"`
	Activate     bool   `json:"activate"`
}

// PeriodHandler manages academic periods
type PeriodHandler struct {
	BaseHandler
	periods *appacademic.PeriodService
}

// NewPeriodHandler creates a new PeriodHandler
func NewPeriodHandler(periods *appacademic.PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// Create godoc
//
//	@ID				createAcademicPeriod
//	@Summary		Create an academic period
//	@Tags			academic-periods
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreatePeriodRequest	true	"Period"
//	@Success		201		{object}	APIResponse[PeriodResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/academic-periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req CreatePeriodRequest
	if !h.bindJSON(c, &req) {
		return
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)

	period, err := h.periods.Create(c.Request.Context(), actor, appacademic.CreatePeriodCommand{
		AcademicYear: req.AcademicYear,
		Term:         req.Term,
		StartDate:    start,
		EndDate:      end,
		Activate:     req.Activate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPeriodResponse(period))
}

// Activate godoc
//
//	@ID				activateAcademicPeriod
//	@Summary		Activate an academic period
//	@Description	Deactivates every other period of the school
//	@Tags			academic-periods
//	@Produce		json
//	@Param			id	path		string	true	"Period ID"	format(uuid)
//	@Success		200	{object}	APIResponse[PeriodResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/academic-periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	period, err := h.periods.Activate(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponse(period))
}

// Current godoc
//
//	@ID				currentAcademicPeriod
//	@Summary		Get the active academic period
//	@Tags			academic-periods
//	@Produce		json
//	@Success		200	{object}	APIResponse[PeriodResponse]
//	@Failure		422	{object}	ErrorResponse	"No active period"
//	@Security		BearerAuth
//	@Router			/academic-periods/current [get]
func (h *PeriodHandler) Current(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	period, err := h.periods.Current(c.Request.Context(), actor.SchoolID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponse(period))
}

// List godoc
//
//	@ID				listAcademicPeriods
//	@Summary		List academic periods
//	@Tags			academic-periods
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]PeriodResponse]
//	@Security		BearerAuth
//	@Router			/academic-periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	periods, err := h.periods.List(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lo.Map(periods, func(p academic.AcademicPeriod, _ int) PeriodResponse {
		return toPeriodResponse(&p)
	}))
}
