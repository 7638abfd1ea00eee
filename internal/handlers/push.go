package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/services"
	"qr-ordering/internal/utils"
)

type PushHandler struct {
	dispatcher *services.Dispatcher
	log        *logger.Logger
}

func NewPushHandler(dispatcher *services.Dispatcher, log *logger.Logger) *PushHandler {
	return &PushHandler{dispatcher: dispatcher, log: log}
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	if err := h.dispatcher.Subscribe(c.Request.Context(), &req); err != nil {
		customerError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Subscribed", nil))
}

// Notify is the internal fan-out endpoint. Individual delivery failures are
// reported in the result list, not as an error status.
func (h *PushHandler) Notify(c *gin.Context) {
	var req models.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	results, err := h.dispatcher.Notify(c.Request.Context(), req.OrderID, &models.PushMessage{
		Title: req.Title,
		Body:  req.Body,
		Data:  models.PushMessageData{URL: req.URL},
	})
	if err != nil {
		h.log.Error("PUSH", "Notify for order "+req.OrderID+" failed: "+err.Error())
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Notification failed", ""))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Notification dispatched", results))
}
