package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradi/internal/logger"
)

// RequestIDKey holds the request ID in the Gin context.
const RequestIDKey = "requestID"

// RequestLogging logs each request with a request ID (reusing an incoming
// X-Request-ID), the authenticated actor, status and latency using Zap.
// Server errors are logged at error level.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start)
		log := logger.Get().Infow
		if c.Writer.Status() >= 500 {
			log = logger.Get().Errorw
		}
		log("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"actor", c.GetString(ActorKey),
		)
	}
}
