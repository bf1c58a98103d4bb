package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"go.uber.org/zap"
)

// RequestLoggingMW writes one access log line per request. Server errors
// log at error level and client errors at warn.
func RequestLoggingMW(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path
		query := ctx.Request.URL.RawQuery
		ctx.Next()

		status := ctx.Writer.Status()
		fields := []zap.Field{
			zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
			zap.Int("status", status),
			zap.String("method", ctx.Request.Method),
			zap.String("path", path),
			zap.String("full-path", ctx.FullPath()),
			zap.String("query", query),
			zap.String("ip", ctx.ClientIP()),
			zap.String("user-agent", ctx.Request.UserAgent()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", ctx.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(path, fields...)
		case status >= http.StatusBadRequest:
			logger.Warn(path, fields...)
		default:
			logger.Info(path, fields...)
		}
	}
}
