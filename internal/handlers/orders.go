package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/middleware"
	"qr-ordering/internal/models"
	"qr-ordering/internal/services"
	"qr-ordering/internal/utils"
)

type OrderHandler struct {
	orders *services.OrderService
	log    *logger.Logger
}

func NewOrderHandler(orders *services.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		customerError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Order placed", order))
}

// TrackStatus is public and returns nothing but the status.
func (h *OrderHandler) TrackStatus(c *gin.Context) {
	status, err := h.orders.GetStatusByTrackCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		customerError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: status})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid limit", err.Error()))
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid offset", err.Error()))
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), middleware.PrincipalFrom(c), limit, offset)
	if err != nil {
		staffError(c, h.log, err, "List orders")
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Orders retrieved", orders))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	detail, err := h.orders.GetOrderDetail(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		staffError(c, h.log, err, "Get order")
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Order retrieved", detail))
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), &req)
	if err != nil {
		staffError(c, h.log, err, "Status update")
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("Order status updated", order))
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
