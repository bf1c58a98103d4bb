package restful

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/okieraised/perceptor-bringup/internal/mapping"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/restful"
	"go.opentelemetry.io/otel/trace"
)

type MappingRouter struct {
	svc    restful.IMappingService
	logger *log.Logger
	tracer trace.Tracer
}

func NewMappingRouter(svc restful.IMappingService) *MappingRouter {
	return &MappingRouter{
		svc:    svc,
		logger: log.Default().Named("mapping-router"),
		tracer: tracer_client.Tracer("mapping"),
	}
}

func (r *MappingRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/maps")
	routes.POST("", r.start)
	routes.GET("", r.list)
	routes.GET("/:id", r.get)
}

// start accepts mapping options as JSON and answers 202 with the new job.
func (r *MappingRouter) start(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	// remap_tf defaults to true like the create-map flag.
	opts := mapping.Options{RemapTF: true}
	if err := ctx.ShouldBindJSON(&opts); err != nil {
		abortWithError(ctx, span, cerrors.ErrGenericBadRequest.WithMessage("invalid mapping options: %v", err))
		return
	}

	result, appErr := r.svc.StartBuild(ctx, &restful.StartBuildInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		Options:   opts,
	})
	if appErr != nil {
		requestLogger(ctx, r.logger).Warn(appErr.Error())
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusAccepted, api_response.FromOutput(ctx, result))
}

func (r *MappingRouter) list(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	result, appErr := r.svc.ListJobs(ctx, &restful.ListJobsInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
	})
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}

func (r *MappingRouter) get(ctx *gin.Context) {
	rootCtx, span := startRequestSpan(ctx, r.tracer)
	defer span.End()

	result, appErr := r.svc.GetJob(ctx, &restful.GetJobInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		ID:        ctx.Param("id"),
	})
	if appErr != nil {
		abortWithError(ctx, span, appErr)
		return
	}

	ctx.JSON(http.StatusOK, api_response.FromOutput(ctx, result))
}
