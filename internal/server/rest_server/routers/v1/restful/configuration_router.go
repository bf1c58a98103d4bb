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

type ConfigurationRouter struct {
	svc    restful.IConfigurationService
	logger *log.Logger
	tracer trace.Tracer
}

func NewConfigurationRouter(svc restful.IConfigurationService) *ConfigurationRouter {
	return &ConfigurationRouter{
		svc:    svc,
		logger: log.Default().Named("configuration-router"),
		tracer: tracer_client.Tracer("configuration"),
	}
}

func (r *ConfigurationRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/configurations")
	routes.GET("", r.list)
	routes.GET("/:name", r.get)
}

func (r *ConfigurationRouter) list(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	result, appErr := r.svc.ListConfigurations(ctx, &restful.ListConfigurationsInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
	})
	if appErr != nil {
		requestLogger(ctx, r.logger).Error(appErr.Error())
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}

func (r *ConfigurationRouter) get(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	input := &restful.GetConfigurationInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		Name:      ctx.Param("name"),
	}
	for key, dst := range map[string]*bool{
		"disable_cuvslam": &input.DisableCuvslam,
		"disable_nvblox":  &input.DisableNvblox,
		"disable_vgl":     &input.DisableVgl,
	} {
		v, appErr := queryBool(ctx, key)
		if appErr != nil {
			abortWithError(ctx, span, appErr)
			return
		}
		*dst = v
	}

	result, appErr := r.svc.GetConfiguration(ctx, input)
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}
