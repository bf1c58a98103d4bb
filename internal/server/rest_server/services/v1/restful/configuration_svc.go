package restful

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IConfigurationService interface {
	ListConfigurations(ctx *gin.Context, input *ListConfigurationsInput) (*api_response.BaseOutput, *cerrors.AppError)
	GetConfiguration(ctx *gin.Context, input *GetConfigurationInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type ConfigurationService struct {
	logger *log.Logger
}

func NewConfigurationService(options ...func(*ConfigurationService)) *ConfigurationService {
	svc := &ConfigurationService{}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Default().Named("configuration")
	return svc
}

type ListConfigurationsInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type GetConfigurationInput struct {
	TracerCtx      context.Context
	Tracer         trace.Tracer
	Name           string
	DisableCuvslam bool
	DisableNvblox  bool
	DisableVgl     bool
}

// ConfigurationSummary is one preset in the listing.
type ConfigurationSummary struct {
	Name          string                  `json:"name"`
	Configuration perceptor.Configuration `json:"configuration"`
}

func (svc *ConfigurationService) ListConfigurations(ctx *gin.Context, input *ListConfigurationsInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-configurations-handler")
	defer span.End()

	names := perceptor.PresetNames()
	out := make([]ConfigurationSummary, 0, len(names))
	for _, name := range names {
		c, err := perceptor.Preset(name)
		if err != nil {
			return nil, toAppError(err)
		}
		out = append(out, ConfigurationSummary{Name: name, Configuration: c})
	}

	return api_response.Success(out, len(out)), nil
}

func (svc *ConfigurationService) GetConfiguration(ctx *gin.Context, input *GetConfigurationInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-configuration-handler", trace.WithAttributes(
		attribute.String("configuration", input.Name),
		attribute.Bool("disable_cuvslam", input.DisableCuvslam),
		attribute.Bool("disable_nvblox", input.DisableNvblox),
		attribute.Bool("disable_vgl", input.DisableVgl),
	))
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	res, err := perceptor.LoadPerceptorConfiguration(input.Name, input.DisableCuvslam, input.DisableNvblox, input.DisableVgl)
	if err != nil {
		lg.Warn(err.Error())
		return nil, toAppError(err)
	}
	for _, msg := range res.Messages {
		lg.Info(msg)
	}

	return api_response.Success(res, 0), nil
}

// toAppError keeps the code and status of an *AppError in err's chain and
// the full wrapped message. Anything else is an internal error.
func toAppError(err error) *cerrors.AppError {
	if appErr, ok := cerrors.AsAppError(err); ok {
		return appErr.WithMessage("%s", err.Error()).WithCause(err)
	}
	return cerrors.ErrGenericInternalServer.WithCause(err)
}
