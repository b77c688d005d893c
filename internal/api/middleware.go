package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

func ginLoggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[INFO] http %s \"%s %s\" %d %s id=%s\n",
			param.ClientIP,
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
			param.Keys[RequestIDContextKey],
		)
	})
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return "unknown"
}
