package handler

import (
	"net/http"

	"billing/internal/middleware"
	"billing/internal/service"
	"billing/pkg/pagination"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type RetainerHandler struct {
	retainerService service.RetainerService
}

func NewRetainerHandler(retainerService service.RetainerService) *RetainerHandler {
	return &RetainerHandler{retainerService: retainerService}
}

func (h *RetainerHandler) RegisterRoutes(router *gin.RouterGroup) {
	retainers := router.Group("/retainers")
	{
		retainers.POST("", middleware.RequirePermission(middleware.PermRetainersWrite), h.CreateRetainer)
		retainers.GET("", middleware.RequirePermission(middleware.PermRetainersRead), h.ListRetainers)
		retainers.GET("/:id", middleware.RequirePermission(middleware.PermRetainersRead), h.GetRetainer)
		retainers.GET("/:id/history", middleware.RequirePermission(middleware.PermRetainersRead), h.GetHistory)
		retainers.POST("/:id/consume", middleware.RequirePermission(middleware.PermRetainersWrite), h.ConsumeRetainer)
		retainers.POST("/:id/replenish", middleware.RequirePermission(middleware.PermRetainersWrite), h.ReplenishRetainer)
		retainers.POST("/:id/refund", middleware.RequirePermission(middleware.PermRetainersWrite), h.RefundRetainer)
	}
}

// CreateRetainer opens a pre-paid balance for a client
// @Summary      Create retainer
// @Tags         retainers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRetainerRequest  true  "Retainer"
// @Success      201      {object}  response.Response{data=service.RetainerResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/retainers [post]
func (h *RetainerHandler) CreateRetainer(c *gin.Context) {
	var req service.CreateRetainerRequest
	if !bindJSON(c, &req) {
		return
	}

	retainer, err := h.retainerService.CreateRetainer(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, retainer))
}

// ListRetainers returns retainers filtered by client and status
// @Summary      List retainers
// @Tags         retainers
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query     string  false  "Filter by client"
// @Param        status     query     string  false  "ACTIVE, DEPLETED or REFUNDED"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page}
// @Router       /api/retainers [get]
func (h *RetainerHandler) ListRetainers(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.RetainerFilter{
		ClientID: c.Query("client_id"),
		Status:   c.Query("status"),
		Page:     p.Page,
		Limit:    p.Limit,
	}

	retainers, total, err := h.retainerService.ListRetainers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(retainers, total, p)))
}

// GetRetainer returns one retainer
// @Summary      Get retainer
// @Tags         retainers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Retainer ID"
// @Success      200  {object}  response.Response{data=service.RetainerResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/retainers/{id} [get]
func (h *RetainerHandler) GetRetainer(c *gin.Context) {
	retainer, err := h.retainerService.GetRetainer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, retainer))
}

// GetHistory returns the balance movements of a retainer, oldest first
// @Summary      Retainer history
// @Tags         retainers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Retainer ID"
// @Success      200  {object}  response.Response{data=[]service.RetainerTransactionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/retainers/{id}/history [get]
func (h *RetainerHandler) GetHistory(c *gin.Context) {
	history, err := h.retainerService.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// ConsumeRetainer draws an amount from the balance
// @Summary      Consume retainer
// @Tags         retainers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Retainer ID"
// @Param        payload  body      service.RetainerMovementRequest  true  "Amount"
// @Success      200      {object}  response.Response{data=service.RetainerResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/retainers/{id}/consume [post]
func (h *RetainerHandler) ConsumeRetainer(c *gin.Context) {
	var req service.RetainerMovementRequest
	if !bindJSON(c, &req) {
		return
	}

	retainer, err := h.retainerService.ConsumeRetainer(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, retainer))
}

// ReplenishRetainer tops up the balance
// @Summary      Replenish retainer
// @Tags         retainers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Retainer ID"
// @Param        payload  body      service.RetainerMovementRequest  true  "Amount"
// @Success      200      {object}  response.Response{data=service.RetainerResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/retainers/{id}/replenish [post]
func (h *RetainerHandler) ReplenishRetainer(c *gin.Context) {
	var req service.RetainerMovementRequest
	if !bindJSON(c, &req) {
		return
	}

	retainer, err := h.retainerService.ReplenishRetainer(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, retainer))
}

// RefundRetainer pays out the remaining balance and closes the retainer
// @Summary      Refund retainer
// @Tags         retainers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true   "Retainer ID"
// @Param        payload  body      service.RefundRetainerRequest  false  "Refund note"
// @Success      200      {object}  response.Response{data=service.RetainerResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/retainers/{id}/refund [post]
func (h *RetainerHandler) RefundRetainer(c *gin.Context) {
	var req service.RefundRetainerRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	retainer, err := h.retainerService.RefundRetainer(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, retainer))
}
