package handler

import (
	"fmt"
	"net/http"

	"recharge_desk/internal/middleware"
	"recharge_desk/internal/model"
	"recharge_desk/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the audit log and stored receipts
type AdminHandler struct {
	audit    service.AuditService
	receipts service.ReceiptService
}

func NewAdminHandler(audit service.AuditService, receipts service.ReceiptService) *AdminHandler {
	return &AdminHandler{audit: audit, receipts: receipts}
}

func (h *AdminHandler) GetLogs(c *gin.Context) {
	var filters model.AdminLogFilters
	if txID := c.Query("transaction_id"); txID != "" {
		filters.TransactionID = &txID
	}

	session, _ := middleware.GetSession(c)
	logs, err := h.audit.List(c.Request.Context(), session, filters)
	if err != nil {
		respondError(c, err, "Failed to retrieve logs")
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *AdminHandler) GetFile(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	filename := c.Param("filename")

	obj, err := h.receipts.Open(c.Request.Context(), session, filename)
	if err != nil {
		respondError(c, err, "Failed to retrieve file")
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", filename),
	})
}

// RegisterAdminRoutes registers audit log and file routes
func (h *AdminHandler) RegisterAdminRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.GET("/admin/logs", authMW, adminMW, h.GetLogs)
	rg.GET("/files/:filename", authMW, adminMW, h.GetFile)
}
