package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"recharge_desk/internal/middleware"
	"recharge_desk/internal/model"
	"recharge_desk/internal/service"

	"github.com/gin-gonic/gin"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

// TransactionHandler handles transaction related requests
type TransactionHandler struct {
	service        service.TransactionService
	receipts       service.ReceiptService
	maxUploadBytes int64
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(s service.TransactionService, receipts service.ReceiptService, maxUploadBytes int64) *TransactionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxFileBytes
	}
	return &TransactionHandler{service: s, receipts: receipts, maxUploadBytes: maxUploadBytes}
}

func (h *TransactionHandler) CreateVivoRecharge(c *gin.Context) {
	var req model.VivoRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, _ := middleware.GetSession(c)
	transaction, err := h.service.CreateVivoRecharge(c.Request.Context(), session, req)
	if err != nil {
		respondError(c, err, "Failed to create transaction")
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

func (h *TransactionHandler) CreateTimRecharge(c *gin.Context) {
	var req model.TimRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, _ := middleware.GetSession(c)
	transaction, err := h.service.CreateTimRecharge(c.Request.Context(), session, req)
	if err != nil {
		respondError(c, err, "Failed to create transaction")
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

func (h *TransactionHandler) CreatePayBill(c *gin.Context) {
	var req model.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, _ := middleware.GetSession(c)
	transaction, err := h.service.CreatePayBill(c.Request.Context(), session, req)
	if err != nil {
		respondError(c, err, "Failed to create transaction")
		return
	}
	c.JSON(http.StatusCreated, transaction)
}

func (h *TransactionHandler) UploadReceipt(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, service.ErrFileTooLarge, "")
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt file is required: " + err.Error()})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open uploaded file: %w", err), "Failed to upload receipt")
		return
	}
	defer src.Close()

	session, _ := middleware.GetSession(c)
	transaction, err := h.receipts.Attach(c.Request.Context(), session, c.Param("id"), service.ReceiptUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        src,
	})
	if err != nil {
		respondError(c, err, "Failed to upload receipt")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Comprovante enviado com sucesso",
		"filename": transaction.ReceiptFilename,
	})
}

func (h *TransactionHandler) GetMyTransactions(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	transactions, err := h.service.ListByUser(c.Request.Context(), session)
	if err != nil {
		respondError(c, err, "Failed to retrieve transactions")
		return
	}
	c.JSON(http.StatusOK, transactions)
}

// --- Admin Handlers ---

func (h *TransactionHandler) GetAllTransactionsAdmin(c *gin.Context) {
	filters, err := parseTransactionFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, _ := middleware.GetSession(c)
	transactions, err := h.service.ListAll(c.Request.Context(), session, filters)
	if err != nil {
		respondError(c, err, "Failed to retrieve transactions")
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *TransactionHandler) GetTransactionDetailsAdmin(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	details, err := h.service.GetDetails(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve transaction")
		return
	}
	c.JSON(http.StatusOK, details)
}

// UpdateStatusAdmin takes the new status from ?status= or a JSON body
func (h *TransactionHandler) UpdateStatusAdmin(c *gin.Context) {
	var req model.StatusUpdateRequest
	if status := c.Query("status"); status != "" {
		req.Status = model.Status(status)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	session, _ := middleware.GetSession(c)
	transaction, err := h.service.SetStatus(c.Request.Context(), session, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "Failed to update transaction status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Status atualizado com sucesso",
		"transaction": transaction,
	})
}

func (h *TransactionHandler) GetStatisticsAdmin(c *gin.Context) {
	session, _ := middleware.GetSession(c)
	stats, err := h.service.Stats(c.Request.Context(), session)
	if err != nil {
		respondError(c, err, "Failed to retrieve statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TransactionHandler) ExportTransactionsCSVAdmin(c *gin.Context) {
	filters, err := parseTransactionFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, _ := middleware.GetSession(c)
	csvBuffer, err := h.service.ExportCSV(c.Request.Context(), session, filters)
	if err != nil {
		respondError(c, err, "Failed to export transactions to CSV")
		return
	}

	fileName := fmt.Sprintf("transactions_export_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "text/csv", csvBuffer.Bytes())
}

func parseTransactionFilters(c *gin.Context) (model.TransactionFilters, error) {
	var filters model.TransactionFilters
	if userID := c.Query("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if statusParam := c.Query("status"); statusParam != "" {
		status := model.Status(statusParam)
		if !status.Valid() {
			return filters, fmt.Errorf("invalid status %q", statusParam)
		}
		filters.Status = &status
	}
	if typeParam := c.Query("transaction_type"); typeParam != "" {
		txType := model.TransactionType(typeParam)
		switch txType {
		case model.TransactionTypeRechargeVivo, model.TransactionTypeRechargeTim, model.TransactionTypePayBill:
		default:
			return filters, fmt.Errorf("invalid transaction_type %q", typeParam)
		}
		filters.TransactionType = &txType
	}
	if operatorParam := c.Query("operator"); operatorParam != "" {
		operator := model.Operator(operatorParam)
		if !operator.Valid() {
			return filters, fmt.Errorf("invalid operator %q", operatorParam)
		}
		filters.Operator = &operator
	}
	return filters, nil
}

// RegisterTransactionRoutes registers transaction routes
func (h *TransactionHandler) RegisterTransactionRoutes(rg *gin.RouterGroup, authMW, userMW, adminMW gin.HandlerFunc) {
	userTxRoutes := rg.Group("/transactions")
	userTxRoutes.Use(authMW, userMW)
	{
		userTxRoutes.POST("/vivo-recharge", h.CreateVivoRecharge)
		userTxRoutes.POST("/tim-recharge", h.CreateTimRecharge)
		userTxRoutes.POST("/pay-bill", h.CreatePayBill)
		userTxRoutes.POST("/:id/upload-receipt", h.UploadReceipt)
	}
	rg.GET("/user/transactions", authMW, userMW, h.GetMyTransactions)

	adminRoutes := rg.Group("/admin")
	adminRoutes.Use(authMW, adminMW)
	{
		adminRoutes.GET("/transactions", h.GetAllTransactionsAdmin)
		adminRoutes.GET("/transactions/export/csv", h.ExportTransactionsCSVAdmin)
		adminRoutes.GET("/stats", h.GetStatisticsAdmin)
		adminRoutes.GET("/transaction/:id", h.GetTransactionDetailsAdmin)
		adminRoutes.PUT("/transaction/:id/status", h.UpdateStatusAdmin)
	}
}
