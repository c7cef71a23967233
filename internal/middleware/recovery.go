package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/assocnet/pipeline/internal/envelope"
)

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *zap.Logger

	// ExposeStack includes the panic value and stack trace in the error
	// envelope details. Must be false in production.
	ExposeStack bool
}

// Recovery returns the outermost safety boundary: any panic from a
// stage or business handler is logged with full detail and converted to
// a single 500 error envelope. No panic ever reaches the transport
// layer unformatted.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{Logger: logger})
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				fields := []zap.Field{
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("clientIP", c.ClientIP()),
					zap.ByteString("stack", stack),
				}
				if requestID := GetRequestID(c); requestID != "" {
					fields = append(fields, zap.String("requestID", requestID))
				}
				config.Logger.Error("panic recovered", fields...)

				panicsRecovered.Inc()

				var details any
				if config.ExposeStack {
					details = gin.H{
						"panic": fmt.Sprintf("%v", err),
						"stack": string(stack),
					}
				}
				envelope.Fail(c, envelope.Internal(details))
			}
		}()

		c.Next()
	}
}
