package restful

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/okieraised/perceptor-bringup/internal/mapping"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

type IMappingService interface {
	StartBuild(ctx *gin.Context, input *StartBuildInput) (*api_response.BaseOutput, *cerrors.AppError)
	ListJobs(ctx *gin.Context, input *ListJobsInput) (*api_response.BaseOutput, *cerrors.AppError)
	GetJob(ctx *gin.Context, input *GetJobInput) (*api_response.BaseOutput, *cerrors.AppError)
}

// Job states.
const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job is one map build started through the API.
type Job struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Options    mapping.Options `json:"options"`
	Result     *mapping.Result `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// BuilderFactory returns a builder writing subprocess output to stdout.
// extra must be applied after the factory's own options.
type BuilderFactory func(stdout io.Writer, extra ...mapping.Option) *mapping.Builder

// MappingService runs at most one map build at a time in the background.
type MappingService struct {
	logger     *log.Logger
	baseCtx    context.Context
	newBuilder BuilderFactory
	now        func() time.Time
	outputDir  string

	mu      sync.RWMutex
	jobs    map[string]*Job
	running string
	wg      sync.WaitGroup
}

func WithBuilderFactory(f BuilderFactory) func(*MappingService) {
	return func(svc *MappingService) {
		svc.newBuilder = f
	}
}

// WithMappingBaseContext bounds background builds to ctx.
func WithMappingBaseContext(ctx context.Context) func(*MappingService) {
	return func(svc *MappingService) {
		svc.baseCtx = ctx
	}
}

// WithDefaultOutputFolder is used when a request sets neither
// base_output_folder nor map_dir.
func WithDefaultOutputFolder(dir string) func(*MappingService) {
	return func(svc *MappingService) {
		svc.outputDir = dir
	}
}

func WithMappingClock(now func() time.Time) func(*MappingService) {
	return func(svc *MappingService) {
		svc.now = now
	}
}

func NewMappingService(options ...func(*MappingService)) *MappingService {
	svc := &MappingService{
		baseCtx:   context.Background(),
		now:       time.Now,
		outputDir: constants.DefaultMapsFolder,
		jobs:      make(map[string]*Job),
	}
	for _, opt := range options {
		opt(svc)
	}
	if svc.newBuilder == nil {
		svc.newBuilder = func(stdout io.Writer, extra ...mapping.Option) *mapping.Builder {
			return mapping.NewBuilder(append([]mapping.Option{mapping.WithStdout(stdout)}, extra...)...)
		}
	}
	svc.logger = log.Default().Named("mapping")
	return svc
}

type StartBuildInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
	Options   mapping.Options
}

type ListJobsInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type GetJobInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
	ID        string
}

// withDefaults fills the fields the CLI gives flag defaults to. Subprocess
// output goes to the log, so only tail mode is useful by default.
func (svc *MappingService) withDefaults(opts mapping.Options) mapping.Options {
	if opts.MapDir == "" && opts.BaseOutputFolder == "" {
		opts.BaseOutputFolder = svc.outputDir
	}
	if opts.ReplayRate == 0 {
		opts.ReplayRate = 0.1
	}
	if opts.StereoCameraConfiguration == "" {
		opts.StereoCameraConfiguration = perceptor.FrontLeftRightConfiguration
	}
	if opts.PrintMode == "" {
		opts.PrintMode = subprocess.PrintTail
	}
	return opts
}

// checkOutputPaths keeps requested folders inside the maps folder.
func (svc *MappingService) checkOutputPaths(opts mapping.Options) *cerrors.AppError {
	for _, f := range []struct{ name, path string }{
		{"base_output_folder", opts.BaseOutputFolder},
		{"map_dir", opts.MapDir},
	} {
		if f.path != "" && !withinDir(svc.outputDir, f.path) {
			return cerrors.ErrMappingPathDenied.WithMessage("%s %q is outside %s", f.name, f.path, svc.outputDir)
		}
	}
	return nil
}

func withinDir(root, path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (svc *MappingService) StartBuild(ctx *gin.Context, input *StartBuildInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "start-build-handler", trace.WithAttributes(
		attribute.String("sensor_data_bag", input.Options.SensorDataBag),
	))
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	opts := svc.withDefaults(input.Options)
	if err := opts.Validate(); err != nil {
		lg.Warn(err.Error())
		return nil, toAppError(err)
	}
	if appErr := svc.checkOutputPaths(opts); appErr != nil {
		lg.Warn(appErr.Error())
		return nil, appErr
	}
	opts.RunID = uuid.NewString()

	svc.mu.Lock()
	if svc.running != "" {
		running := svc.running
		svc.mu.Unlock()
		return nil, cerrors.ErrMappingBusy.WithMessage("map build %s is still running", running)
	}
	job := &Job{
		ID:        opts.RunID,
		Status:    JobRunning,
		Options:   opts,
		StartedAt: svc.now().UTC(),
	}
	svc.jobs[job.ID] = job
	svc.running = job.ID
	snapshot := *job
	svc.mu.Unlock()

	span.SetAttributes(attribute.String("run_id", job.ID))
	lg.Info(fmt.Sprintf("Started map build %s from %s", job.ID, opts.SensorDataBag))

	svc.wg.Add(1)
	go svc.run(job.ID, opts)

	return api_response.Success(snapshot, 0), nil
}

func (svc *MappingService) run(id string, opts mapping.Options) {
	defer svc.wg.Done()

	lg := svc.logger.With(zap.String("run_id", id))
	out := &zapio.Writer{Log: lg.Logger, Level: zap.InfoLevel}
	// Requests come from the network, never escalate.
	res, err := svc.newBuilder(out, mapping.WithSudo(false)).Build(svc.baseCtx, opts)
	_ = out.Close()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	job := svc.jobs[id]
	finished := svc.now().UTC()
	job.FinishedAt = &finished
	job.Result = res
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		lg.Error(fmt.Sprintf("Map build failed: %v", err))
	} else {
		job.Status = JobSucceeded
		lg.Info(fmt.Sprintf("Map build finished in %s", res.OutputFolder))
	}
	svc.running = ""
}

// Wait blocks until every background build has returned.
func (svc *MappingService) Wait() {
	svc.wg.Wait()
}

func (svc *MappingService) ListJobs(ctx *gin.Context, input *ListJobsInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-jobs-handler")
	defer span.End()

	svc.mu.RLock()
	out := make([]Job, 0, len(svc.jobs))
	for _, job := range svc.jobs {
		out = append(out, *job)
	}
	svc.mu.RUnlock()

	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	return api_response.Success(out, len(out)), nil
}

func (svc *MappingService) GetJob(ctx *gin.Context, input *GetJobInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-job-handler", trace.WithAttributes(
		attribute.String("run_id", input.ID),
	))
	defer span.End()

	svc.mu.RLock()
	job, ok := svc.jobs[input.ID]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	svc.mu.RUnlock()

	if !ok {
		return nil, cerrors.ErrMappingJobNotFound.WithMessage("no map build with id %q", input.ID)
	}
	return api_response.Success(snapshot, 0), nil
}
