package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
)

// Response общий конверт ответа API
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Коды ошибок в конверте: HTTP статус * 100 + порядковый номер
const (
	codeOK                = 0
	codeBadRequest        = 40001
	codeUnauthorized      = 40101
	codeForbidden         = 40301
	codeNotFound          = 40401
	codeConflict          = 40901
	codeInvalidTransition = 42201
	codeInternal          = 50001
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: codeOK, Message: "success", Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: codeOK, Message: "success", Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: codeBadRequest, Message: message})
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: codeUnauthorized, Message: message})
}

// fail отображает доменную ошибку на статус и код конверта.
// Внутренние ошибки логируются, клиент получает общее сообщение.
func fail(c *gin.Context, logger *zap.Logger, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{Code: errorCode(err), Message: apperror.PublicMessage(err)})
}

func errorCode(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return codeBadRequest
	case apperror.KindForbidden:
		return codeForbidden
	case apperror.KindNotFound:
		return codeNotFound
	case apperror.KindConflict:
		return codeConflict
	case apperror.KindInvalidTransition:
		return codeInvalidTransition
	default:
		return codeInternal
	}
}
