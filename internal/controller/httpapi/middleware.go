package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "request_id"
	actorKey        = "actor_id"
	requestIDMaxLen = 64

	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
)

// RequestID берёт X-Request-ID из запроса или генерирует новый
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestID)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(headerRequestID, rid)
		c.Next()
	}
}

// Logger пишет одну запись на запрос; уровень зависит от статуса ответа
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Duration("latency", time.Since(start)),
		}
		if actor, exists := c.Get(actorKey); exists {
			fields = append(fields, zap.Any("actor_id", actor))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}

// RequireActor достаёт идентификатор пользователя из X-User-ID.
// Аутентификация вынесена за пределы сервиса, заголовок проставляет шлюз.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
		if err != nil || id <= 0 {
			unauthorized(c, "missing or invalid X-User-ID header")
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// actorID возвращает пользователя, установленного RequireActor
func actorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}
