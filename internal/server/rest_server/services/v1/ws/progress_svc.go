package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/progress_hub"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IProgressService interface {
	Subscribe(ctx *gin.Context, tracerCtx context.Context, tracer trace.Tracer) (*api_response.BaseOutput, *cerrors.AppError)
}

type ProgressService struct {
	hub      *progress_hub.Hub
	baseCtx  context.Context
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewProgressService(options ...func(*ProgressService)) *ProgressService {
	svc := &ProgressService{
		baseCtx: context.Background(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Default().Named("progress")
	return svc
}

func WithProgressHub(hub *progress_hub.Hub) func(*ProgressService) {
	return func(svc *ProgressService) {
		svc.hub = hub
	}
}

// WithBaseContext bounds subscriber connections to ctx rather than to the
// upgrade request.
func WithBaseContext(ctx context.Context) func(*ProgressService) {
	return func(svc *ProgressService) {
		svc.baseCtx = ctx
	}
}

// Subscribe upgrades the request and hands the connection to the hub. The
// connection outlives the handler.
func (svc *ProgressService) Subscribe(
	ctx *gin.Context,
	tracerCtx context.Context,
	tracer trace.Tracer,
) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := tracer.Start(tracerCtx, "upgrade-connection")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	if svc.hub == nil {
		return nil, cerrors.ErrGenericUnavailable.WithMessage("progress hub is not configured")
	}

	conn, err := svc.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		lg.Warn(err.Error())
		return nil, cerrors.ErrGenericBadRequest.WithMessage("websocket upgrade failed").WithCause(err)
	}

	client := progress_hub.NewClient(conn, svc.hub)
	lg.Info(fmt.Sprintf("New progress subscriber connected with ID: %s", client.ID.String()))
	go func() {
		if sErr := svc.hub.Serve(svc.baseCtx, client); sErr != nil {
			lg.Warn(sErr.Error())
		}
	}()

	return api_response.Success(nil, 0), nil
}
