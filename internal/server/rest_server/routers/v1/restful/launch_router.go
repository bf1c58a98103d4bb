package restful

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/restful"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

type LaunchRouter struct {
	svc    restful.ILaunchService
	logger *log.Logger
	tracer trace.Tracer
}

func NewLaunchRouter(svc restful.ILaunchService) *LaunchRouter {
	return &LaunchRouter{
		svc:    svc,
		logger: log.Default().Named("launch-router"),
		tracer: tracer_client.Tracer("launch"),
	}
}

func (r *LaunchRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/launch")
	routes.GET("", r.list)
	routes.POST("/*entry", r.render)
}

func (r *LaunchRouter) list(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	result, appErr := r.svc.ListEntries(ctx, &restful.ListEntriesInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
	})
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}

// render accepts a JSON object of launch argument overrides. Scalars are
// converted to their launch command line form, so true becomes "True".
func (r *LaunchRouter) render(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	body := map[string]any{}
	if err := ctx.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(ctx, span, cerrors.ErrGenericBadRequest.WithMessage("invalid launch arguments: %v", err))
		return
	}
	values := make(map[string]string, len(body))
	for k, v := range body {
		values[k] = launch.Format(v)
	}

	d, appErr := r.svc.Render(ctx, &restful.RenderInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		Entry:     ctx.Param("entry"),
		Values:    values,
	})
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	if ctx.Query("format") == "yaml" {
		out, err := yaml.Marshal(d)
		if err != nil {
			requestLogger(ctx, r.logger).Error(errors.Wrap(err, "failed to marshal launch description").Error())
			abortWithError(ctx, span, cerrors.ErrGenericInternalServer.WithCause(err))
			return
		}
		ctx.Data(http.StatusOK, constants.ContentTypeYAML, out)
		return
	}

	ctx.JSON(http.StatusOK, api_response.OK(ctx, d))
}
