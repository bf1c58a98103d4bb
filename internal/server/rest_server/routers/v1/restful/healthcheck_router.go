package restful

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/restful"
	"go.opentelemetry.io/otel/trace"
)

type HealthcheckRouter struct {
	svc    restful.IHealthcheckService
	logger *log.Logger
	tracer trace.Tracer
}

func NewHealthcheckRouter(svc restful.IHealthcheckService) *HealthcheckRouter {
	return &HealthcheckRouter{
		svc:    svc,
		logger: log.Default().Named("healthcheck-router"),
		tracer: tracer_client.Tracer("healthcheck"),
	}
}

func (r *HealthcheckRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/health")
	routes.GET("", r.healthcheck)
}

func (r *HealthcheckRouter) healthcheck(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	lg := requestLogger(ctx, r.logger)
	lg.Debug("Received new healthcheck request")

	result, appErr := r.svc.Healthcheck(ctx, &restful.HealthcheckInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
	})
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}
