package ws

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/ws"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProgressRouter struct {
	svc    ws.IProgressService
	logger *log.Logger
	tracer trace.Tracer
}

func NewProgressRouter(svc ws.IProgressService) *ProgressRouter {
	return &ProgressRouter{
		svc:    svc,
		logger: log.Default().Named("progress-router"),
		tracer: tracer_client.Tracer("websocket_router"),
	}
}

func (r *ProgressRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/mapping")
	routes.GET("", r.subscribe)
}

func (r *ProgressRouter) subscribe(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx.Request.Context(), ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	))
	defer span.End()

	lg := r.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)
	lg.Debug("Received new websocket handshake for mapping progress")

	_, appErr := r.svc.Subscribe(ctx, rootCtx, r.tracer)
	if appErr != nil {
		lg.Error(appErr.Error())
		// the upgrader has already answered a failed handshake
		if ctx.Writer.Written() {
			ctx.Abort()
			return
		}
		ctx.AbortWithStatusJSON(cerrors.HTTPStatusOf(appErr), api_response.FromAppError(ctx, appErr))
	}
}
