package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qr-ordering/internal/logger"
	"qr-ordering/internal/services"
	"qr-ordering/internal/utils"
)

type MagicLinkHandler struct {
	links *services.MagicLinkService
	log   *logger.Logger
}

func NewMagicLinkHandler(links *services.MagicLinkService, log *logger.Logger) *MagicLinkHandler {
	return &MagicLinkHandler{links: links, log: log}
}

func (h *MagicLinkHandler) Issue(c *gin.Context) {
	link, err := h.links.Issue(c.Request.Context(), c.Param("id"), requestOrigin(c))
	if err != nil {
		customerError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, utils.SuccessResponse("Payment link issued", link))
}

// Redeem spends the token and redirects to the restaurant's checkout page.
func (h *MagicLinkHandler) Redeem(c *gin.Context) {
	res, err := h.links.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		customerError(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, res.CheckoutURL)
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
