package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Виды ошибок в поле error тела ответа
const (
	kindNotFound     = "not_found"
	kindExpired      = "expired"
	kindForbidden    = "forbidden"
	kindValidation   = "validation_error"
	kindUnauthorized = "unauthorized"
	kindConflict     = "conflict"
	kindInternal     = "internal_error"
)

// CodeSessionExpired машиночитаемый код истёкшей сессии
const CodeSessionExpired = "SESSION_EXPIRED"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// writeError отображает типизированную ошибку сервиса в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются без деталей.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: kindValidation, Message: err.Error()}
	case errors.Is(err, service.ErrLinkNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrLinkMissing):
		return http.StatusNotFound, ErrorResponse{Error: kindNotFound, Message: err.Error()}
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusGone, ErrorResponse{Error: kindExpired, Message: err.Error(), Code: CodeSessionExpired}
	case errors.Is(err, service.ErrStepsIncomplete):
		return http.StatusForbidden, ErrorResponse{Error: kindForbidden, Message: err.Error()}
	case errors.Is(err, service.ErrLinkExists):
		return http.StatusConflict, ErrorResponse{Error: kindConflict, Message: err.Error()}
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Error: kindUnauthorized, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: kindInternal, Message: "Internal server error"}
	}
}

// writeBindError ответ на невалидное тело запроса
func writeBindError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   kindValidation,
		Message: err.Error(),
	})
}
