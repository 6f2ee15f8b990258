package api

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
)

// RequestIDMiddleware attaches a request id to the context and response
// so every log line of a request can be correlated
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx := c.Request.Context()
	ctx = types.SetRequestID(ctx, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header("X-Request-ID", requestID)
	c.Next()
}

// ErrorHandlerMiddleware converts errors collected on the gin context
// into the standard error response, mapping marked sentinels to HTTP
// status codes
func ErrorHandlerMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		if status >= 500 {
			logger.Errorw("request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"error", err,
			)
		} else {
			logger.Debugw("request rejected",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"error", err,
			)
		}

		c.JSON(status, ierr.NewErrorResponse(err))
	}
}
