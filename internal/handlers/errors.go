package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/services"
	"qr-ordering/internal/storage"
	"qr-ordering/internal/utils"
)

const tryAgain = "Something went wrong. Please try again."

// staffError answers restaurant staff with the specific rejection reason.
// Infrastructure failures stay generic and are logged.
func staffError(c *gin.Context, log *logger.Logger, err error, action string) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Authentication required", ""))
	case errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse(action+" failed", err.Error()))
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(action+" failed", err.Error()))
	default:
		log.Error("API", action+" failed: "+err.Error())
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(action+" failed", "internal error"))
	}
}

// customerError answers diners with a friendly message and never exposes
// infrastructure detail.
func customerError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Please check your order and try again.", err.Error()))
	case errors.Is(err, storage.ErrConstraint):
		c.JSON(http.StatusUnprocessableEntity, utils.ErrorResponse("Some items in your cart are no longer available.", ""))
	case errors.Is(err, services.ErrRestaurantNotFound), errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("We couldn't find that order.", ""))
	case errors.Is(err, services.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("This payment link is not valid.", ""))
	case errors.Is(err, services.ErrLinkUsed):
		c.JSON(http.StatusGone, utils.ErrorResponse("This payment link has already been used.", ""))
	case errors.Is(err, services.ErrLinkExpired):
		c.JSON(http.StatusGone, utils.ErrorResponse("This payment link has expired.", ""))
	case errors.Is(err, services.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, utils.ErrorResponse("This order is no longer awaiting payment.", ""))
	default:
		log.Error("API", "Request failed: "+err.Error())
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(tryAgain, ""))
	}
}
