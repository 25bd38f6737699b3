package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/infrastructure/payment"
	"go.uber.org/zap"
)

// STKCallbackAck is the body Daraja expects back from an STK callback
// @Description Gateway acknowledgement
type STKCallbackAck struct {
	ResultCode int    `json:"ResultCode" example:"0"`
	ResultDesc string `json:"ResultDesc" example:"Success"`
}

// C2BAck answers a C2B validation or confirmation
// @Description Paybill validation or confirmation answer
type C2BAck struct {
	ResultCode string `json:"ResultCode" example:"0"`
	ResultDesc string `json:"ResultDesc" example:"Accepted"`
}

var stkAck = STKCallbackAck{ResultCode: 0, ResultDesc: "Success"}

// MpesaWebhookHandler receives Daraja callbacks. The gateway is always
// answered with 200. A C2B confirmation that could not be stored carries a
// non-zero ResultCode so the gateway redelivers it.
type MpesaWebhookHandler struct {
	BaseHandler
	reconciler *appfinance.PaymentReconcilerService
}

// NewMpesaWebhookHandler creates a new MpesaWebhookHandler
func NewMpesaWebhookHandler(reconciler *appfinance.PaymentReconcilerService) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{reconciler: reconciler}
}

// STKCallback godoc
//
//	@ID				mpesaStkCallback
//	@Summary		M-Pesa STK push callback
//	@Description	Finalizes the PENDING payment of the checkout request
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	STKCallbackAck
//	@Router			/webhooks/mpesa/stk-callback [post]
func (h *MpesaWebhookHandler) STKCallback(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L(ctx).With(zap.String("webhook", "stk"))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Unreadable STK callback body", zap.Error(err))
		c.JSON(http.StatusOK, stkAck)
		return
	}
	cb, err := payment.DecodeSTKCallback(body)
	if err != nil {
		log.Warn("Malformed STK callback", zap.Error(err))
		c.JSON(http.StatusOK, stkAck)
		return
	}
	if _, err := h.reconciler.HandleSTKCallback(ctx, cb); err != nil {
		log.Error("STK callback processing failed",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, stkAck)
}

// C2BValidation godoc
//
//	@ID				mpesaC2bValidation
//	@Summary		M-Pesa paybill validation
//	@Description	Accepts or rejects a paybill payment before it completes
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	C2BAck
//	@Router			/webhooks/mpesa/c2b/validation [post]
func (h *MpesaWebhookHandler) C2BValidation(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, C2BAck{ResultCode: appfinance.C2BResultInvalidAccountNumber, ResultDesc: "Rejected"})
		return
	}
	confirmation, err := payment.DecodeC2B(body)
	if err != nil {
		logger.L(ctx).Warn("Malformed C2B validation", zap.Error(err))
		c.JSON(http.StatusOK, C2BAck{ResultCode: appfinance.C2BResultInvalidAccountNumber, ResultDesc: "Rejected: malformed request"})
		return
	}
	result := h.reconciler.ValidateC2B(ctx, confirmation)
	c.JSON(http.StatusOK, C2BAck{ResultCode: result.ResultCode, ResultDesc: result.ResultDesc})
}

// C2BConfirmation godoc
//
//	@ID				mpesaC2bConfirmation
//	@Summary		M-Pesa paybill confirmation
//	@Description	Records a completed paybill payment. Unmatched account references are stored as UNASSIGNED. ResultCode C2B00016 means nothing was recorded and the confirmation should be redelivered.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	C2BAck
//	@Router			/webhooks/mpesa/c2b/confirmation [post]
func (h *MpesaWebhookHandler) C2BConfirmation(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L(ctx).With(zap.String("webhook", "c2b"))
	ack := C2BAck{ResultCode: appfinance.C2BResultAccepted, ResultDesc: "Success"}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Unreadable C2B confirmation body", zap.Error(err))
		c.JSON(http.StatusOK, ack)
		return
	}
	confirmation, err := payment.DecodeC2B(body)
	if err != nil {
		log.Warn("Malformed C2B confirmation", zap.Error(err))
		c.JSON(http.StatusOK, ack)
		return
	}
	if _, err := h.reconciler.HandleC2BConfirmation(ctx, confirmation); err != nil {
		log.Error("C2B confirmation processing failed",
			zap.String("trans_id", confirmation.TransID),
			zap.String("bill_ref", confirmation.BillRefNumber),
			zap.Error(err))
		if !isRejectedC2BPayload(err) {
			// Nothing was stored; a non-zero code makes the gateway redeliver.
			ack = C2BAck{ResultCode: appfinance.C2BResultOtherError, ResultDesc: "Rejected: payment not recorded"}
		}
	}
	c.JSON(http.StatusOK, ack)
}

// isRejectedC2BPayload reports errors caused by the payload itself.
// Redelivering the same confirmation cannot succeed.
func isRejectedC2BPayload(err error) bool {
	return errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, finance.ErrInvalidAmount)
}
