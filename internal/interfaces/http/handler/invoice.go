package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
)

// InvoiceHandler serves invoice generation, line edits and reads
type InvoiceHandler struct {
	BaseHandler
	generator *appfinance.InvoiceGeneratorService
	mutations *appfinance.InvoiceMutationService
	queries   *appfinance.LedgerQueryService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(
	generator *appfinance.InvoiceGeneratorService,
	mutations *appfinance.InvoiceMutationService,
	queries *appfinance.LedgerQueryService,
) *InvoiceHandler {
	return &InvoiceHandler{
		generator: generator,
		mutations: mutations,
		queries:   queries,
	}
}

// Generate godoc
//
//	@ID				generateInvoices
//	@Summary		Generate invoices for a period
//	@Description	Bills every active student of the school, or of one class. Students already invoiced for the period are skipped.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateInvoicesRequest	true	"Generation scope"
//	@Success		200		{object}	APIResponse[appfinance.GenerateResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/generate [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req GenerateInvoicesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due_date")
		return
	}
	classID, _ := optionalUUID(req.ClassID)

	result, err := h.generator.Generate(c.Request.Context(), actor, appfinance.GenerateInvoicesCommand{
		SchoolID:         actor.SchoolID,
		AcademicPeriodID: uuid.MustParse(req.AcademicPeriodID),
		ClassID:          classID,
		FeeStructureIDs:  lo.Map(req.FeeStructureIDs, func(s string, _ int) uuid.UUID { return uuid.MustParse(s) }),
		DueDate:          dueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GenerateForStudent godoc
//
//	@ID				generateStudentInvoice
//	@Summary		Generate one student's invoice
//	@Description	Issues the student's invoice for the period, or returns the existing one
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateStudentInvoiceRequest	true	"Student and period"
//	@Success		200		{object}	APIResponse[GenerateStudentInvoiceResponse]	"Invoice already existed"
//	@Success		201		{object}	APIResponse[GenerateStudentInvoiceResponse]	"Invoice created"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/generate/student [post]
func (h *InvoiceHandler) GenerateForStudent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req GenerateStudentInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due_date")
		return
	}

	inv, created, err := h.generator.GenerateForStudent(c.Request.Context(), actor,
		actor.SchoolID, uuid.MustParse(req.StudentID), uuid.MustParse(req.AcademicPeriodID), dueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := GenerateStudentInvoiceResponse{Created: created, Invoice: toInvoiceResponse(inv)}
	if created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// Get godoc
//
//	@ID				getInvoice
//	@Summary		Get an invoice
//	@Description	Parents may only read invoices of their own children
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"	format(uuid)
//	@Success		200	{object}	APIResponse[InvoiceResponse]
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.mutations.GetInvoice(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// List godoc
//
//	@ID				listInvoices
//	@Summary		List invoices
//	@Tags			invoices
//	@Produce		json
//	@Param			student_id			query		string	false	"Student"	format(uuid)
//	@Param			academic_period_id	query		string	false	"Period"	format(uuid)
//	@Param			status				query		string	false	"Status"	Enums(PENDING, PARTIALLY_PAID, PAID, CANCELLED)
//	@Param			page				query		int		false	"Page"		default(1)
//	@Param			page_size			query		int		false	"Page size"	default(20)
//	@Param			order_by			query		string	false	"Sort column"
//	@Param			order_dir			query		string	false	"Sort direction"	Enums(asc, desc)
//	@Success		200					{object}	APIResponse[[]InvoiceResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q ListInvoicesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page := pageFilter(q.ListRequest)

	invoices, total, err := h.queries.ListInvoices(c.Request.Context(), actor, q.filter(), page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := lo.Map(invoices, func(inv finance.Invoice, _ int) InvoiceResponse { return toInvoiceResponse(&inv) })
	h.SuccessWithMeta(c, resp, total, page.Page, page.PageSize)
}

// AddItem godoc
//
//	@ID				addInvoiceItem
//	@Summary		Add an ad-hoc line
//	@Description	Appends a charge and recomputes the invoice
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"	format(uuid)
//	@Param			request	body		AddInvoiceItemRequest	true	"Line"
//	@Success		201		{object}	APIResponse[InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/items [post]
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req AddInvoiceItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	inv, err := h.mutations.AddItem(c.Request.Context(), actor, appfinance.AddItemCommand{
		InvoiceID:   id,
		Description: req.Description,
		Amount:      req.Amount,
		Category:    finance.FeeCategory(req.Category),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(inv))
}

// RemoveItem godoc
//
//	@ID				removeInvoiceItem
//	@Summary		Remove a line
//	@Tags			invoices
//	@Produce		json
//	@Param			itemId	path		string	true	"Invoice item ID"	format(uuid)
//	@Success		200		{object}	APIResponse[InvoiceResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/items/{itemId} [delete]
func (h *InvoiceHandler) RemoveItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	inv, err := h.mutations.RemoveItem(c.Request.Context(), actor, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// SetItemDismissed godoc
//
//	@ID				dismissInvoiceItem
//	@Summary		Dismiss or restore an optional line
//	@Description	Mandatory categories (TUITION, EXAMINATION) cannot be dismissed
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			itemId	path		string				true	"Invoice item ID"	format(uuid)
//	@Param			request	body		DismissItemRequest	true	"Dismissal"
//	@Success		200		{object}	APIResponse[InvoiceResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/items/{itemId}/dismissal [put]
func (h *InvoiceHandler) SetItemDismissed(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	var req DismissItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.mutations.SetDismissed(c.Request.Context(), actor, itemID, *req.Dismissed)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}
