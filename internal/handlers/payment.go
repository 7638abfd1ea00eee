package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/services"
	"qr-ordering/internal/utils"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	payments *services.PaymentService
	verifier *services.WebhookVerifier
	log      *logger.Logger
}

func NewPaymentHandler(payments *services.PaymentService, verifier *services.WebhookVerifier, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, verifier: verifier, log: log}
}

// Webhook receives the provider's payment outcome. A non-2xx answer makes
// the provider retry, so only failures worth retrying return 5xx.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read request body", err.Error()))
		return
	}

	if err := h.verifier.Verify(payload, c.GetHeader(services.SignatureHeader)); err != nil {
		h.log.LogSecurity("WEBHOOK_SIGNATURE", "Rejected webhook from "+c.ClientIP()+": "+err.Error())
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Invalid signature", ""))
		return
	}

	var req models.WebhookPayload
	if err := binding.JSON.BindBody(payload, &req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	res, err := h.payments.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", ""))
		case errors.Is(err, services.ErrOrderNotPayable):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Order is not awaiting payment", ""))
		default:
			h.log.Error("WEBHOOK", "Payment confirmation for order "+req.OrderID+" failed: "+err.Error())
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Payment confirmation failed", ""))
		}
		return
	}

	message := "Payment processed"
	if res.AlreadyProcessed {
		message = "Payment already processed"
	}
	c.JSON(http.StatusOK, utils.SuccessResponse(message, res))
}
