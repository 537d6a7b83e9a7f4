package handler

import (
	"errors"
	"net/http"

	"recharge_desk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type errorMapping struct {
	target  error
	status  int
	message string // empty keeps err.Error()
}

var errorMappings = []errorMapping{
	{service.ErrDuplicateIdentity, http.StatusBadRequest, "Email já cadastrado"},
	{service.ErrInvalidStatus, http.StatusBadRequest, ""},
	{service.ErrInvalidFile, http.StatusBadRequest, ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Email ou senha inválidos"},
	{service.ErrUserNotFound, http.StatusUnauthorized, "Usuário não encontrado"},
	{service.ErrForbidden, http.StatusForbidden, ""},
	{service.ErrNotFound, http.StatusNotFound, "Transação não encontrada"},
	{service.ErrReceiptNotFound, http.StatusNotFound, "Arquivo não encontrado"},
	{service.ErrTransitionNotAllowed, http.StatusConflict, ""},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ""},
}

// respondError writes the JSON error for err. Unmapped errors are logged
// and reported as 500 with the fallback message.
func respondError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			c.JSON(m.status, gin.H{"error": msg})
			return
		}
	}

	_ = c.Error(err)
	log.Ctx(c.Request.Context()).Error().Err(err).Msg(fallback)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}
