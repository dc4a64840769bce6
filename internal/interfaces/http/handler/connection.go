package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/connection"
)

// ConnectionHandler handles marketplace connection endpoints
type ConnectionHandler struct {
	BaseHandler
	connections connection.Repository
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connections connection.Repository) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// parseConnectionID reads the :id path parameter, writing a 400 on failure
func (h *ConnectionHandler) parseConnectionID(c *gin.Context) (int64, bool) {
	return parseIDParam(c, &h.BaseHandler, "id")
}

func parseIDParam(c *gin.Context, h *BaseHandler, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid connection ID")
		return 0, false
	}
	return id, true
}

// List godoc
// @ID           listConnections
// @Summary      List connections
// @Tags         connections
// @Produce      json
// @Success      200 {object} Envelope[[]ConnectionResponse]
// @Failure      401 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.connections.FindAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ConnectionResponse, 0, len(conns))
	for i := range conns {
		out = append(out, toConnectionResponse(&conns[i]))
	}
	h.SuccessList(c, out, len(out))
}

// Get godoc
// @ID           getConnection
// @Summary      Get a connection
// @Tags         connections
// @Produce      json
// @Param        id path int true "Connection ID"
// @Success      200 {object} Envelope[ConnectionResponse]
// @Failure      404 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections/{id} [get]
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, ok := h.parseConnectionID(c)
	if !ok {
		return
	}
	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toConnectionResponse(conn))
}

// Create godoc
// @ID           createConnection
// @Summary      Create a connection
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        request body ConnectionRequest true "Connection"
// @Success      201 {object} Envelope[ConnectionResponse]
// @Failure      400 {object} ErrorEnvelope
// @Failure      422 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections [post]
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req ConnectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	conn, err := req.toDomain(nil)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := conn.Validate(); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toConnectionResponse(conn))
}

// Update godoc
// @ID           updateConnection
// @Summary      Replace a connection
// @Description  An empty private_key keeps the stored key
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        id path int true "Connection ID"
// @Param        request body ConnectionRequest true "Connection"
// @Success      200 {object} Envelope[ConnectionResponse]
// @Failure      404 {object} ErrorEnvelope
// @Failure      422 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections/{id} [put]
func (h *ConnectionHandler) Update(c *gin.Context) {
	id, ok := h.parseConnectionID(c)
	if !ok {
		return
	}
	var req ConnectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	existing, err := h.connections.FindByID(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	conn, err := req.toDomain(existing)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := conn.Validate(); err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.connections.Save(ctx, conn); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toConnectionResponse(conn))
}

// Delete godoc
// @ID           deleteConnection
// @Summary      Delete a connection
// @Tags         connections
// @Param        id path int true "Connection ID"
// @Success      204
// @Failure      404 {object} ErrorEnvelope
// @Security     BearerAuth
// @Router       /connections/{id} [delete]
func (h *ConnectionHandler) Delete(c *gin.Context) {
	id, ok := h.parseConnectionID(c)
	if !ok {
		return
	}
	if err := h.connections.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
