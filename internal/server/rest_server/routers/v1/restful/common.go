package restful

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func startRequestSpan(ctx *gin.Context, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx.Request.Context(), ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		attribute.String("http.method", ctx.Request.Method),
	))
}

func requestLogger(ctx *gin.Context, logger *log.Logger) *log.Logger {
	return logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)
}

// abortWithError writes appErr in the common envelope using its HTTP status.
func abortWithError(ctx *gin.Context, span trace.Span, appErr *cerrors.AppError) {
	span.RecordError(appErr)
	span.SetStatus(codes.Error, appErr.Message)
	ctx.AbortWithStatusJSON(cerrors.HTTPStatusOf(appErr), api_response.FromAppError(ctx, appErr))
}

func queryBool(ctx *gin.Context, key string) (bool, *cerrors.AppError) {
	raw, ok := ctx.GetQuery(key)
	if !ok {
		return false, nil
	}
	// a bare ?disable_nvblox means true
	if raw == "" {
		return true, nil
	}
	v, err := launch.ParseBool(raw)
	if err != nil {
		return false, cerrors.ErrGenericBadRequest.WithMessage("query parameter %s: %v", key, err)
	}
	return v, nil
}
