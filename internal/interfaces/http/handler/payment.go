package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
)

// PaymentHandler records staff-entered payments, starts STK pushes and
// lists payments
type PaymentHandler struct {
	BaseHandler
	reconciler *appfinance.PaymentReconcilerService
	queries    *appfinance.LedgerQueryService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(reconciler *appfinance.PaymentReconcilerService, queries *appfinance.LedgerQueryService) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, queries: queries}
}

// RecordManual godoc
//
//	@ID				recordManualPayment
//	@Summary		Record a manual payment
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ManualPaymentRequest	true	"Payment"
//	@Success		201		{object}	APIResponse[ManualPaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/manual [post]
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req ManualPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.reconciler.RecordManual(c.Request.Context(), actor, appfinance.ManualPaymentCommand{
		StudentID: uuid.MustParse(req.StudentID),
		Amount:    req.Amount,
		Method:    finance.PaymentMethod(req.Method),
		Reference: req.Reference,
		PayerName: req.PayerName,
		Notes:     req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toManualPaymentResponse(result))
}

// RecordBankTransfer godoc
//
//	@ID				recordBankTransfer
//	@Summary		Record a bank transfer
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BankTransferRequest	true	"Transfer"
//	@Success		201		{object}	APIResponse[[]PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Bank reference already recorded"
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/bank-transfer [post]
func (h *PaymentHandler) RecordBankTransfer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req BankTransferRequest
	if !h.bindJSON(c, &req) {
		return
	}

	payments, err := h.reconciler.RecordBankTransfer(c.Request.Context(), actor, appfinance.BankTransferCommand{
		InvoiceID:     uuid.MustParse(req.InvoiceID),
		Amount:        req.Amount,
		BankReference: req.BankReference,
		PayerName:     req.PayerName,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPaymentResponses(payments))
}

// InitiateSTKPush godoc
//
//	@ID				initiateStkPush
//	@Summary		Start an M-Pesa STK push
//	@Description	Prompts the phone and records a PENDING payment finalized by the gateway callback. Parents may pay their own children's invoices.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		STKPushRequest	true	"Push"
//	@Success		202		{object}	APIResponse[PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/stk-push [post]
func (h *PaymentHandler) InitiateSTKPush(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req STKPushRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.reconciler.InitiateSTKPush(c.Request.Context(), actor, appfinance.STKPushCommand{
		InvoiceID:   uuid.MustParse(req.InvoiceID),
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toPaymentResponse(p))
}

// Assign godoc
//
//	@ID				assignPayment
//	@Summary		Assign an unassigned payment
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Payment ID"	format(uuid)
//	@Param			request	body		AssignPaymentRequest	true	"Target invoice"
//	@Success		200		{object}	APIResponse[PaymentResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id}/assign [post]
func (h *PaymentHandler) Assign(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req AssignPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.reconciler.AssignUnassignedPayment(c.Request.Context(), actor, id, uuid.MustParse(req.InvoiceID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(p))
}

// List godoc
//
//	@ID				listPayments
//	@Summary		List payments
//	@Description	Parents must filter by one of their children
//	@Tags			payments
//	@Produce		json
//	@Param			invoice_id		query		string	false	"Invoice"	format(uuid)
//	@Param			student_id		query		string	false	"Student"	format(uuid)
//	@Param			status			query		string	false	"Status"	Enums(PENDING, COMPLETED, FAILED)
//	@Param			unassigned_only	query		bool	false	"Only unassigned paybill payments"
//	@Param			page			query		int		false	"Page"		default(1)
//	@Param			page_size		query		int		false	"Page size"	default(20)
//	@Success		200				{object}	APIResponse[[]PaymentResponse]
//	@Security		BearerAuth
//	@Router			/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var q ListPaymentsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page := pageFilter(q.ListRequest)

	payments, total, err := h.queries.ListPayments(c.Request.Context(), actor, q.filter(), page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := lo.Map(payments, func(p finance.Payment, _ int) PaymentResponse { return toPaymentResponse(&p) })
	h.SuccessWithMeta(c, resp, total, page.Page, page.PageSize)
}
