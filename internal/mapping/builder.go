package mapping

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PackageResolver locates files inside ROS package share directories.
type PackageResolver interface {
	Path(pkg, rel string) (string, error)
}

// Publisher receives progress events.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Uploader copies the finished map folder to object storage.
type Uploader interface {
	UploadDir(ctx context.Context, dir, prefix string) ([]string, error)
}

// Builder turns a sensor data rosbag into cuVSLAM, occupancy and cuVGL
// maps by driving the external mapping tools.
type Builder struct {
	runner          subprocess.Runner
	resolver        PackageResolver
	stdout          io.Writer
	now             func() time.Time
	publisher       Publisher
	uploader        Uploader
	uploadPrefix    string
	tracer          trace.Tracer
	recorderTimeout time.Duration
	allowSudo       bool
	mkdirAll        func(path string, perm os.FileMode) error
}

type Option func(*Builder)

func WithRunner(r subprocess.Runner) Option {
	return func(b *Builder) {
		b.runner = r
	}
}

func WithResolver(r PackageResolver) Option {
	return func(b *Builder) {
		b.resolver = r
	}
}

func WithStdout(w io.Writer) Option {
	return func(b *Builder) {
		b.stdout = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithPublisher reports step progress to p.
func WithPublisher(p Publisher) Option {
	return func(b *Builder) {
		b.publisher = p
	}
}

// WithUploader uploads the map folder under prefix once every step passed.
func WithUploader(u Uploader, prefix string) Option {
	return func(b *Builder) {
		b.uploader, b.uploadPrefix = u, prefix
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Builder) {
		b.tracer = t
	}
}

func WithRecorderTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.recorderTimeout = d
	}
}

// WithSudo allows creating the output folder with sudo when the base folder
// is not writable.
func WithSudo(allow bool) Option {
	return func(b *Builder) {
		b.allowSudo = allow
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		stdout:          os.Stdout,
		now:             time.Now,
		tracer:          tracer_client.Tracer("perceptor/mapping"),
		recorderTimeout: constants.RecorderReadyTimeout,
		allowSudo:       true,
		mkdirAll:        os.MkdirAll,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.runner == nil {
		b.runner = subprocess.NewExec(subprocess.WithStdout(b.stdout))
	}
	b.stdout = &lockedWriter{w: b.stdout}
	return b
}

// Result summarizes a finished run.
type Result struct {
	RunID         string   `json:"run_id" yaml:"run_id"`
	OutputFolder  string   `json:"output_folder" yaml:"output_folder"`
	Steps         []Step   `json:"steps" yaml:"steps"`
	RecorderReady bool     `json:"recorder_ready" yaml:"recorder_ready"`
	Uploaded      []string `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
}

// Metadata is written to metadata.yaml at the root of every map folder.
type Metadata struct {
	OutputFolder              string  `yaml:"output_folder"`
	RunID                     string  `yaml:"run_id"`
	CreatedAt                 string  `yaml:"created_at"`
	SensorDataBag             string  `yaml:"sensor_data_bag"`
	StereoCameraConfiguration string  `yaml:"stereo_camera_configuration"`
	ReplayRate                float64 `yaml:"replay_rate"`
	Steps                     []Step  `yaml:"steps"`
}

// ProgressEvent is published before and after every step.
type ProgressEvent struct {
	RunID        string    `json:"run_id"`
	Step         Step      `json:"step,omitempty"`
	Status       string    `json:"status"`
	OutputFolder string    `json:"output_folder"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

// Progress statuses.
const (
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusUploaded = "uploaded"
)

type run struct {
	opts   Options
	layout Layout
	result *Result
}

// Build runs the selected steps in order: cuvslam, occupancy, keyframes,
// cuvgl. It stops at the first failing step.
func (b *Builder) Build(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	root := opts.MapDir
	if root == "" {
		name := fmt.Sprintf("%s_%s", b.now().Format(constants.TimestampLayout), opts.bagName())
		var err error
		if root, err = b.createWorkdir(ctx, opts.BaseOutputFolder, name); err != nil {
			return nil, err
		}
	}
	r := &run{
		opts:   opts,
		layout: Layout{Root: root},
		result: &Result{RunID: runID, OutputFolder: root},
	}
	b.printf("Storing all maps and logs in %s.", root)

	if err := os.MkdirAll(r.layout.Logs(), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create log folder")
	}
	if err := b.writeMetadata(r); err != nil {
		return nil, err
	}

	steps := []struct {
		step Step
		fn   func(context.Context, *run) error
	}{
		{StepCuvslam, b.createCuvslamMap},
		{StepOccupancy, b.createGlobalOccupancyMap},
		{StepKeyframes, b.extractKeyframes},
		{StepCuvgl, b.createCuvglMap},
	}
	for _, s := range steps {
		// cuvgl_map exists whatever steps were selected.
		if s.step == StepKeyframes {
			if err := os.MkdirAll(r.layout.CuvglMap(), 0o755); err != nil {
				return r.result, errors.Wrap(err, "failed to create cuvgl map folder")
			}
		}
		if !opts.runs(s.step) {
			continue
		}
		if err := b.runStep(ctx, r, s.step, s.fn); err != nil {
			return r.result, err
		}
	}

	if b.uploader != nil {
		prefix := path.Join(b.uploadPrefix, filepath.Base(root))
		keys, err := b.uploader.UploadDir(ctx, root, prefix)
		if err != nil {
			return r.result, errors.Wrap(err, "failed to upload maps")
		}
		r.result.Uploaded = keys
		b.publish(ctx, r, "", StatusUploaded, nil)
	}

	b.printf("All maps can be found in %s.", root)
	return r.result, nil
}

func (b *Builder) runStep(ctx context.Context, r *run, step Step, fn func(context.Context, *run) error) error {
	ctx, span := b.tracer.Start(ctx, "mapping."+string(step), trace.WithAttributes(
		attribute.String("mapping.run_id", r.result.RunID),
		attribute.String("mapping.output_folder", r.layout.Root),
	))
	b.publish(ctx, r, step, StatusStarted, nil)

	err := fn(ctx, r)
	tracer_client.EndSpan(span, err)
	if err != nil {
		b.publish(ctx, r, step, StatusFailed, err)
		return cerrors.ErrStepFailed.WithMessage("step %s failed: %v", step, err).WithCause(err)
	}
	r.result.Steps = append(r.result.Steps, step)
	b.publish(ctx, r, step, StatusFinished, nil)
	return nil
}

func (b *Builder) publish(ctx context.Context, r *run, step Step, status string, stepErr error) {
	if b.publisher == nil {
		return
	}
	ev := ProgressEvent{
		RunID:        r.result.RunID,
		Step:         step,
		Status:       status,
		OutputFolder: r.layout.Root,
		Time:         b.now().UTC(),
	}
	if stepErr != nil {
		ev.Error = stepErr.Error()
	}
	if err := b.publisher.Publish(ctx, ev); err != nil {
		log.Default().Warn("failed to publish mapping progress", zap.String("step", string(step)), zap.Error(err))
	}
}

func (b *Builder) writeMetadata(r *run) error {
	data, err := yaml.Marshal(Metadata{
		OutputFolder:              r.layout.Root,
		RunID:                     r.result.RunID,
		CreatedAt:                 b.now().Format(time.RFC3339),
		SensorDataBag:             r.opts.SensorDataBag,
		StereoCameraConfiguration: r.opts.StereoCameraConfiguration,
		ReplayRate:                r.opts.ReplayRate,
		Steps:                     r.opts.Steps,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal map metadata")
	}
	if err := os.WriteFile(r.layout.Metadata(), data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write map metadata")
	}
	return nil
}

// createWorkdir creates base/name. When the base folder is not writable
// and sudo is allowed, the folder is created with sudo and handed over to
// the current user.
func (b *Builder) createWorkdir(ctx context.Context, base, name string) (string, error) {
	dir := filepath.Join(base, name)
	err := b.mkdirAll(dir, 0o755)
	if err == nil {
		return dir, nil
	}
	if !errors.Is(err, os.ErrPermission) || !b.allowSudo {
		return "", errors.Wrapf(err, "failed to create %s", dir)
	}

	log.Default().Warn(fmt.Sprintf("no permission to create %s, retrying with sudo", dir))
	owner := fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	for _, cmd := range []subprocess.Command{
		{Mnemonic: "Create output folder", Name: "sudo", Args: []string{"mkdir", "-p", dir}, PrintMode: subprocess.PrintNone},
		{Mnemonic: "Own output folder", Name: "sudo", Args: []string{"chown", owner, dir}, PrintMode: subprocess.PrintNone},
	} {
		if err := b.runner.Run(ctx, cmd); err != nil {
			return "", errors.Wrapf(err, "failed to create %s with sudo", dir)
		}
	}
	return dir, nil
}

func (b *Builder) path(pkg, rel string) (string, error) {
	if b.resolver == nil {
		return "", cerrors.ErrUnknownPackage.WithMessage("no package resolver configured to locate %s", pkg)
	}
	return b.resolver.Path(pkg, rel)
}

func (b *Builder) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(b.stdout, format+"\n", a...)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func ldLibraryPath(extra string) string {
	if current := os.Getenv("LD_LIBRARY_PATH"); current != "" {
		return strings.Join([]string{current, extra}, ":")
	}
	return extra
}
