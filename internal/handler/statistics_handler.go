package handler

import (
	"net/http"

	"billing/internal/middleware"
	"billing/internal/service"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/statistics")
	{
		statsGroup.GET("/invoices", middleware.RequirePermission(middleware.PermInvoicesRead), h.GetInvoiceStatistics)
	}
}

// @Summary      Get invoice statistics
// @Description  Per-status invoice counts and amounts, plus the overdue count and balance as of today
// @Tags         statistics
// @Produce      json
// @Param        client_id query string false "Restrict to one client"
// @Success      200 {object} response.Response{data=service.InvoiceStats}
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /api/statistics/invoices [get]
func (h *StatisticsHandler) GetInvoiceStatistics(c *gin.Context) {
	stats, err := h.statisticsService.GetInvoiceStats(c.Request.Context(), c.Query("client_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
