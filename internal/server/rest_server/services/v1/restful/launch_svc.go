package restful

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/bringup"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ILaunchService interface {
	ListEntries(ctx *gin.Context, input *ListEntriesInput) (*api_response.BaseOutput, *cerrors.AppError)
	Render(ctx *gin.Context, input *RenderInput) (*launch.Description, *cerrors.AppError)
}

type LaunchService struct {
	logger  *log.Logger
	bringup *bringup.Bringup
}

func WithBringup(b *bringup.Bringup) func(*LaunchService) {
	return func(svc *LaunchService) {
		svc.bringup = b
	}
}

func NewLaunchService(options ...func(*LaunchService)) *LaunchService {
	svc := &LaunchService{}
	for _, opt := range options {
		opt(svc)
	}
	if svc.bringup == nil {
		svc.bringup = bringup.New()
	}
	svc.logger = log.Default().Named("launch")
	return svc
}

type ListEntriesInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type RenderInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
	Entry     string
	Values    map[string]string
}

// EntryInfo describes one launch entry point.
type EntryInfo struct {
	Name string `json:"name"`
	File string `json:"file"`
}

func (svc *LaunchService) ListEntries(ctx *gin.Context, input *ListEntriesInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-entries-handler")
	defer span.End()

	entries := bringup.Entries()
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryInfo{Name: e, File: bringup.EntryFile(e)})
	}
	return api_response.Success(out, len(out)), nil
}

func (svc *LaunchService) Render(ctx *gin.Context, input *RenderInput) (*launch.Description, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "render-handler", trace.WithAttributes(
		attribute.String("entry", input.Entry),
		attribute.Int("values", len(input.Values)),
	))
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		zap.String("entry", input.Entry),
	)

	d, err := svc.bringup.Generate(input.Entry, input.Values)
	if err != nil {
		lg.Warn(err.Error())
		return nil, toAppError(err)
	}
	for _, msg := range d.Messages() {
		lg.Info(msg)
	}
	return d, nil
}
