package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"billing/internal/export"
	"billing/internal/middleware"
	"billing/internal/service"
	"billing/pkg/pagination"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService    service.InvoiceService
	statisticsService service.StatisticsService
	company           export.Company
}

func NewInvoiceHandler(invoiceService service.InvoiceService, statisticsService service.StatisticsService, company export.Company) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:    invoiceService,
		statisticsService: statisticsService,
		company:           company,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("/preview", middleware.RequirePermission(middleware.PermInvoicesWrite), h.PreviewInvoice)
		invoices.POST("", middleware.RequirePermission(middleware.PermInvoicesWrite), h.CreateInvoice)
		invoices.GET("", middleware.RequirePermission(middleware.PermInvoicesRead), h.ListInvoices)
		invoices.GET("/:id", middleware.RequirePermission(middleware.PermInvoicesRead), h.GetInvoice)
		invoices.PUT("/:id", middleware.RequirePermission(middleware.PermInvoicesWrite), h.UpdateInvoice)
		invoices.POST("/:id/submit", middleware.RequirePermission(middleware.PermInvoicesWrite), h.SubmitInvoice)
		invoices.PUT("/:id/approve", middleware.RequirePermission(middleware.PermInvoicesApprove), h.ApproveInvoice)
		invoices.PUT("/:id/reject", middleware.RequirePermission(middleware.PermInvoicesApprove), h.RejectInvoice)
		invoices.POST("/:id/payments", middleware.RequirePermission(middleware.PermInvoicesWrite), h.RecordPayment)
		invoices.POST("/:id/void", middleware.RequirePermission(middleware.PermInvoicesApprove), h.VoidInvoice)
		invoices.GET("/:id/pdf", middleware.RequirePermission(middleware.PermInvoicesRead), h.DownloadPDF)
		invoices.GET("/:id/installments.xlsx", middleware.RequirePermission(middleware.PermInvoicesRead), h.DownloadSchedule)
	}
}

// PreviewInvoice recomputes totals and schedule for a draft without saving it
// @Summary      Preview invoice
// @Description  Runs the checklist, totals calculator and installment scheduler on a draft; nothing is persisted
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InvoiceDraftRequest  true  "Invoice draft"
// @Success      200      {object}  response.Response{data=service.PreviewResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/preview [post]
func (h *InvoiceHandler) PreviewInvoice(c *gin.Context) {
	var req service.InvoiceDraftRequest
	if !bindJSON(c, &req) {
		return
	}

	preview, err := h.invoiceService.PreviewInvoice(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// CreateInvoice validates and saves a draft invoice
// @Summary      Create invoice
// @Description  Validates the draft, computes totals and saves it as DRAFT; an applied retainer is consumed
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InvoiceDraftRequest  true  "Invoice draft"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.InvoiceDraftRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated, filtered list of invoices with per-status statistics
// @Summary      List invoices
// @Description  Retrieves a paginated list of invoices filtered by status, client or invoice number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status      query     string  false  "Filter by status (DRAFT, PENDING_APPROVAL, APPROVED, REJECTED, PARTIAL, PAID, VOID)"
// @Param        client_id   query     string  false  "Filter by client"
// @Param        invoice_no  query     string  false  "Partial invoice number"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Failure      400         {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.InvoiceFilter{
		Status:    c.Query("status"),
		ClientID:  c.Query("client_id"),
		InvoiceNo: c.Query("invoice_no"),
		Page:      p.Page,
		Limit:     p.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.statisticsService.GetInvoiceStats(c.Request.Context(), filter.ClientID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
		"stats":    stats,
	}))
}

// GetInvoice returns one invoice with lines, installments and payments
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateInvoice replaces a draft or rejected invoice
// @Summary      Update invoice
// @Description  Replaces header, lines and installment plan of a DRAFT or REJECTED invoice and recomputes totals
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Invoice ID"
// @Param        payload  body      service.InvoiceDraftRequest  true  "Invoice draft"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.InvoiceDraftRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// SubmitInvoice sends a draft for approval
// @Summary      Submit invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/submit [post]
func (h *InvoiceHandler) SubmitInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.SubmitInvoice(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ApproveInvoice approves a pending invoice
// @Summary      Approve invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Invoice ID"
// @Param        payload  body      service.ReviewRequest  false  "Review note"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/approve [put]
func (h *InvoiceHandler) ApproveInvoice(c *gin.Context) {
	var req service.ReviewRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.ApproveInvoice(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// RejectInvoice rejects a pending invoice
// @Summary      Reject invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Invoice ID"
// @Param        payload  body      service.RejectRequest  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/reject [put]
func (h *InvoiceHandler) RejectInvoice(c *gin.Context) {
	var req service.RejectRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.RejectInvoice(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// RecordPayment books a payment against an approved invoice
// @Summary      Record payment
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.PaymentRequest  true  "Payment"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.RecordPayment(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// VoidInvoice cancels an invoice that is not fully paid
// @Summary      Void invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Invoice ID"
// @Param        payload  body      service.VoidRequest  true  "Void reason"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/void [post]
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	var req service.VoidRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.VoidInvoice(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DownloadPDF renders the invoice as a PDF document
// @Summary      Invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {file}  file
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	invoice, err := h.invoiceService.LoadInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteInvoicePDF(&buf, invoice, h.company); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", invoice.InvoiceNo))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// DownloadSchedule exports the installment schedule as a spreadsheet
// @Summary      Installment schedule XLSX
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path  string  true  "Invoice ID"
// @Success      200  {file}  file
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/installments.xlsx [get]
func (h *InvoiceHandler) DownloadSchedule(c *gin.Context) {
	invoice, err := h.invoiceService.LoadInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(invoice.Installments) == 0 {
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, "invoice has no installment plan"))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteScheduleXLSX(&buf, invoice); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-installments.xlsx", invoice.InvoiceNo))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
