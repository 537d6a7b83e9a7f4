package handler

import (
	"context"
	"fmt"
	"net/http"

	"recharge_desk/internal/middleware"
	"recharge_desk/internal/service"
	"recharge_desk/internal/utils"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the HTTP layer needs, built once in main
type Deps struct {
	Auth           service.AuthService
	Transactions   service.TransactionService
	Receipts       service.ReceiptService
	Audit          service.AuditService
	JWT            *utils.JWTUtil
	Health         Pinger
	CORSOrigins    []string
	MaxUploadBytes int64
}

// NewRouter wires middleware and every route under /api
func NewRouter(d Deps) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Recover(),
		middleware.CORS(d.CORSOrigins),
	)

	jwtAuthMW := middleware.JWTAuthMiddleware(d.JWT)
	userRoleMW := middleware.RequireUser()
	adminRoleMW := middleware.RequireAdmin()

	authHandler := NewAuthHandler(d.Auth)
	transactionHandler := NewTransactionHandler(d.Transactions, d.Receipts, d.MaxUploadBytes)
	adminHandler := NewAdminHandler(d.Audit, d.Receipts)

	apiGroup := router.Group("/api")
	apiGroup.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Sistema de Recarga Telefônica API v1.0", "status": "running"})
	})
	authHandler.RegisterAuthRoutes(apiGroup)
	transactionHandler.RegisterTransactionRoutes(apiGroup, jwtAuthMW, userRoleMW, adminRoleMW)
	adminHandler.RegisterAdminRoutes(apiGroup, jwtAuthMW, adminRoleMW)

	router.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	})

	return router, nil
}
