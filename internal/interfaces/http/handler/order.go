package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Reimporter releases imported marketplace orders for another import run
type Reimporter interface {
	ForceReimport(ctx context.Context, remoteNumber string, force bool) error
}

// OrderHandler handles order import maintenance endpoints
type OrderHandler struct {
	BaseHandler
	reimporter Reimporter
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(reimporter Reimporter) *OrderHandler {
	return &OrderHandler{reimporter: reimporter}
}

// Reimport godoc
// @ID           reimportOrder
// @Summary      Release a marketplace order for reimport
// @Description  Removes the ledger row. Imported orders require force=true.
// @Tags         orders
// @Param        number path string true "Marketplace order number"
// @Param        force query bool false "Release successfully imported orders"
// @Success      204
// @Failure      404 {object} ErrorEnvelope
// @Failure      422 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /orders/{number}/reimport [post]
func (h *OrderHandler) Reimport(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Order number is required")
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "force must be a boolean")
			return
		}
		force = v
	}
	if err := h.reimporter.ForceReimport(c.Request.Context(), number, force); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
