package mapping

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gopkg.in/yaml.v3"
)

type fakeProcess struct {
	once sync.Once
	done chan struct{}
}

func (p *fakeProcess) Terminate() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

// fakeRunner records commands and optionally fails some of them. Started
// processes print recorderOutput through OnLine.
type fakeRunner struct {
	mu             sync.Mutex
	commands       []subprocess.Command
	fail           map[string]error
	recorderOutput []string
	startErr       error
	started        []*fakeProcess
}

func (f *fakeRunner) Run(_ context.Context, cmd subprocess.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.fail[cmd.Mnemonic]
}

func (f *fakeRunner) Start(_ context.Context, cmd subprocess.Command) (subprocess.Process, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	if f.startErr != nil {
		f.mu.Unlock()
		return nil, f.startErr
	}
	p := &fakeProcess{done: make(chan struct{})}
	f.started = append(f.started, p)
	f.mu.Unlock()

	go func() {
		for _, line := range f.recorderOutput {
			cmd.OnLine(line)
		}
	}()
	return p, nil
}

func (f *fakeRunner) mnemonics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Map(f.commands, func(c subprocess.Command, _ int) string { return c.Mnemonic })
}

func (f *fakeRunner) command(t *testing.T, mnemonic string) subprocess.Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := lo.Find(f.commands, func(c subprocess.Command) bool { return c.Mnemonic == mnemonic })
	require.True(t, ok, "command %q not run", mnemonic)
	return cmd
}

type shareResolver string

func (r shareResolver) Path(pkg, rel string) (string, error) {
	return filepath.Join(string(r), "share", pkg, rel), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload.(ProgressEvent))
	return nil
}

type fakeUploader struct {
	dir, prefix string
}

func (u *fakeUploader) UploadDir(_ context.Context, dir, prefix string) ([]string, error) {
	u.dir, u.prefix = dir, prefix
	return []string{prefix + "/metadata.yaml"}, nil
}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 5, 0, time.UTC)

func defaultOptions(base string) Options {
	return Options{
		SensorDataBag:             "/mnt/nova_ssd/recordings/warehouse_run",
		BaseOutputFolder:          base,
		ReplayRate:                0.1,
		StereoCameraConfiguration: perceptor.FrontLeftRightConfiguration,
		PrintMode:                 subprocess.PrintTail,
		RemapTF:                   true,
	}
}

func newTestBuilder(runner *fakeRunner, stdout *bytes.Buffer, opts ...Option) *Builder {
	base := []Option{
		WithRunner(runner),
		WithResolver(shareResolver("/opt/ros/humble")),
		WithStdout(stdout),
		WithClock(func() time.Time { return fixedNow }),
		WithRecorderTimeout(2 * time.Second),
	}
	return NewBuilder(append(base, opts...)...)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return lo.Map(entries, func(e os.DirEntry, _ int) string { return e.Name() })
}

func TestBuild_AllSteps(t *testing.T) {
	base := t.TempDir()
	runner := &fakeRunner{recorderOutput: []string{"[INFO] Listening for topics...", "[INFO] Recording..."}}
	var stdout bytes.Buffer

	res, err := newTestBuilder(runner, &stdout).Build(context.Background(), defaultOptions(base))
	require.NoError(t, err)

	root := filepath.Join(base, "2026-10-17_09-30-05_warehouse_run")
	assert.Equal(t, root, res.OutputFolder)
	assert.Equal(t, AllSteps, res.Steps)
	assert.True(t, res.RecorderReady)
	assert.ElementsMatch(t, []string{"logs", "metadata.yaml", "cuvgl_map"}, listDir(t, root))

	assert.Equal(t, []string{
		"Install pip requirements",
		"Extract EDEX",
		"Create cuVSLAM map",
		"Record poses",
		"Create global occupancy map",
		"Extract keyframes",
		"Create cuVGL map",
	}, runner.mnemonics())

	out := stdout.String()
	assert.True(t, strings.HasPrefix(out, "Storing all maps and logs in "+root+".\n"))
	assert.Contains(t, out, "Subprocess output: [INFO] Recording...\n")
	assert.Contains(t, out, "Rosbag recording is running\n")
	assert.True(t, strings.HasSuffix(out, "All maps can be found in "+root+".\n"))
	assert.Less(t, strings.Index(out, "Rosbag recording is running"), strings.Index(out, "Creating global occupancy map..."))

	// The recorder is stopped once the replay is over.
	select {
	case <-runner.started[0].Done():
	default:
		t.Fatal("pose recorder still running")
	}
}

func TestBuild_CommandDetails(t *testing.T) {
	base := t.TempDir()
	runner := &fakeRunner{recorderOutput: []string{"Recording..."}}
	opts := defaultOptions(base)
	opts.PrebuiltBowVocabularyFolder = "/data/bow/"

	res, err := newTestBuilder(runner, &bytes.Buffer{}).Build(context.Background(), opts)
	require.NoError(t, err)
	layout := Layout{Root: res.OutputFolder}

	pip := runner.command(t, "Install pip requirements")
	assert.Equal(t, "python3", pip.Name)
	assert.Equal(t, "/opt/ros/humble/share/isaac_ros_rosbag_utils/requirements.txt", pip.Args[len(pip.Args)-1])
	assert.Equal(t, layout.Log("install_requirements"), pip.LogFile)

	edex := runner.command(t, "Extract EDEX")
	assert.Contains(t, edex.Args, "--rosbag_path=/mnt/nova_ssd/recordings/warehouse_run")
	assert.Contains(t, edex.Args, "--edex_path="+layout.Edex())

	cuvslam := runner.command(t, "Create cuVSLAM map")
	require.Len(t, cuvslam.Env, 1)
	assert.True(t, strings.HasSuffix(cuvslam.Env[0], "/opt/ros/humble/share/cuvslam/lib"))
	assert.Contains(t, cuvslam.Args, "--print_slam_poses="+layout.SlamPoses())

	record := runner.command(t, "Record poses")
	assert.Equal(t, []string{"bag", "record", "--storage", "mcap", "--output", layout.Poses(), "/visual_slam/vis/slam_odometry"}, record.Args)

	keyframes := runner.command(t, "Extract keyframes")
	assert.Empty(t, keyframes.LogFile)
	assert.Contains(t, keyframes.Args, "--output_folder="+layout.Keyframes())
	assert.Contains(t, keyframes.Args, "--print_mode=tail")

	cuvgl := runner.command(t, "Create cuVGL map")
	assert.Equal(t, "--prebuilt_bow_vocabulary_folder=/data/bow", cuvgl.Args[len(cuvgl.Args)-1])
}

func TestOccupancyCommand(t *testing.T) {
	opts := defaultOptions("/maps")
	layout := Layout{Root: "/maps/run"}

	cmd := OccupancyCommand(opts, layout)
	assert.True(t, cmd.AllowFailure)
	assert.Contains(t, cmd.Args, "replay_rate:=0.1")
	assert.Contains(t, cmd.Args, "stereo_camera_configuration:=front_left_right_configuration")
	assert.Contains(t, cmd.Args, "nvblox_after_shutdown_map_save_path:=/maps/run/occupancy_map")
	assert.Equal(t, "replay_additional_args:=--remap /tf:=/tf_old", cmd.Args[len(cmd.Args)-1])

	opts.RemapTF = false
	cmd = OccupancyCommand(opts, layout)
	assert.Equal(t, "vslam_enable_slam:=True", cmd.Args[len(cmd.Args)-1])
}

func TestBuild_StepSubsets(t *testing.T) {
	tests := []struct {
		name      string
		steps     []Step
		mnemonics []string
	}{
		{
			name:      "keyframes only",
			steps:     []Step{StepKeyframes},
			mnemonics: []string{"Extract keyframes"},
		},
		{
			name:      "cuvgl only",
			steps:     []Step{StepCuvgl},
			mnemonics: []string{"Create cuVGL map"},
		},
		{
			name:      "cuvslam and cuvgl",
			steps:     []Step{StepCuvgl, StepCuvslam},
			mnemonics: []string{"Install pip requirements", "Extract EDEX", "Create cuVSLAM map", "Create cuVGL map"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			runner := &fakeRunner{}
			opts := defaultOptions(base)
			opts.Steps = tt.steps

			res, err := newTestBuilder(runner, &bytes.Buffer{}).Build(context.Background(), opts)
			require.NoError(t, err)
			assert.Equal(t, tt.mnemonics, runner.mnemonics())
			assert.ElementsMatch(t, []string{"logs", "metadata.yaml", "cuvgl_map"}, listDir(t, res.OutputFolder))
			assert.Empty(t, listDir(t, Layout{Root: res.OutputFolder}.CuvglMap()))
		})
	}
}

func TestBuild_MapDirAndMetadata(t *testing.T) {
	mapDir := filepath.Join(t.TempDir(), "existing")
	opts := defaultOptions("")
	opts.MapDir = mapDir
	opts.Steps = []Step{StepCuvgl}

	res, err := newTestBuilder(&fakeRunner{}, &bytes.Buffer{}).Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, mapDir, res.OutputFolder)

	data, err := os.ReadFile(Layout{Root: mapDir}.Metadata())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "output_folder: "+mapDir+"\n"))

	var meta Metadata
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, res.RunID, meta.RunID)
	assert.Equal(t, []Step{StepCuvgl}, meta.Steps)
	assert.Equal(t, 0.1, meta.ReplayRate)
}

func TestBuild_WorkdirPermissionDenied(t *testing.T) {
	denied := func(path string, _ os.FileMode) error {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrPermission}
	}
	opts := defaultOptions(t.TempDir())
	opts.Steps = []Step{StepKeyframes}

	t.Run("sudo allowed", func(t *testing.T) {
		runner := &fakeRunner{}
		b := newTestBuilder(runner, &bytes.Buffer{})
		b.mkdirAll = denied

		_, err := b.Build(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"Create output folder", "Own output folder", "Extract keyframes"}, runner.mnemonics())
		assert.Equal(t, "sudo", runner.command(t, "Create output folder").Name)
	})

	t.Run("sudo disabled", func(t *testing.T) {
		runner := &fakeRunner{}
		b := newTestBuilder(runner, &bytes.Buffer{}, WithSudo(false))
		b.mkdirAll = denied

		_, err := b.Build(context.Background(), opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrPermission)
		assert.Empty(t, runner.mnemonics())
	})
}

func TestBuild_RemovesPreviousPoses(t *testing.T) {
	mapDir := t.TempDir()
	stale := filepath.Join(Layout{Root: mapDir}.Poses(), "old.mcap")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	opts := defaultOptions("")
	opts.MapDir = mapDir
	opts.Steps = []Step{StepOccupancy}

	_, err := newTestBuilder(&fakeRunner{recorderOutput: []string{"Recording..."}}, &bytes.Buffer{}).
		Build(context.Background(), opts)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestBuild_RecorderTimeout(t *testing.T) {
	runner := &fakeRunner{recorderOutput: []string{"waiting for topics"}}
	var stdout bytes.Buffer
	opts := defaultOptions(t.TempDir())
	opts.Steps = []Step{StepOccupancy}

	res, err := newTestBuilder(runner, &stdout, WithRecorderTimeout(50*time.Millisecond)).
		Build(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, res.RecorderReady)
	assert.Contains(t, stdout.String(), "Failed to record rosbag or timed out\nCreating global occupancy map...\n")
	assert.Equal(t, []string{"Record poses", "Create global occupancy map"}, runner.mnemonics())
}

func TestBuild_RecorderRequired(t *testing.T) {
	runner := &fakeRunner{}
	opts := defaultOptions(t.TempDir())
	opts.Steps = []Step{StepOccupancy, StepKeyframes}
	opts.RequireRecorder = true

	_, err := newTestBuilder(runner, &bytes.Buffer{}, WithRecorderTimeout(20*time.Millisecond)).
		Build(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrRecorderNotReady.Code))
	assert.Equal(t, []string{"Record poses"}, runner.mnemonics())
}

func TestBuild_RecorderStartFailure(t *testing.T) {
	runner := &fakeRunner{startErr: errors.New("ros2: not found")}
	opts := defaultOptions(t.TempDir())
	opts.Steps = []Step{StepOccupancy, StepKeyframes}

	_, err := newTestBuilder(runner, &bytes.Buffer{}).Build(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrStepFailed.Code))
	assert.Contains(t, err.Error(), "ros2: not found")
	assert.Equal(t, []string{"Record poses"}, runner.mnemonics())
}

func TestBuild_StepFailureStops(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"Extract EDEX": errors.New("exit status 1")}}
	publisher := &recordingPublisher{}
	uploader := &fakeUploader{}

	res, err := newTestBuilder(runner, &bytes.Buffer{}, WithPublisher(publisher), WithUploader(uploader, "maps")).
		Build(context.Background(), defaultOptions(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step cuvslam failed: exit status 1")
	assert.True(t, cerrors.IsCode(err, cerrors.ErrStepFailed.Code))
	assert.Empty(t, res.Steps)
	assert.Equal(t, []string{"Install pip requirements", "Extract EDEX"}, runner.mnemonics())
	assert.Empty(t, uploader.dir)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, StatusStarted, publisher.events[0].Status)
	assert.Equal(t, StatusFailed, publisher.events[1].Status)
	assert.Equal(t, "exit status 1", publisher.events[1].Error)
}

func TestBuild_ProgressUploadAndSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)).Tracer("test")
	publisher := &recordingPublisher{}
	uploader := &fakeUploader{}

	opts := defaultOptions(t.TempDir())
	opts.Steps = []Step{StepKeyframes, StepCuvgl}
	res, err := newTestBuilder(&fakeRunner{}, &bytes.Buffer{},
		WithPublisher(publisher), WithUploader(uploader, "robots/carter1"), WithTracer(tracer)).
		Build(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, res.OutputFolder, uploader.dir)
	assert.Equal(t, "robots/carter1/"+filepath.Base(res.OutputFolder), uploader.prefix)
	assert.Equal(t, []string{"robots/carter1/" + filepath.Base(res.OutputFolder) + "/metadata.yaml"}, res.Uploaded)

	statuses := lo.Map(publisher.events, func(e ProgressEvent, _ int) string { return string(e.Step) + ":" + e.Status })
	assert.Equal(t, []string{
		"keyframes:started", "keyframes:finished",
		"cuvgl:started", "cuvgl:finished",
		":uploaded",
	}, statuses)
	for _, e := range publisher.events {
		assert.Equal(t, res.RunID, e.RunID)
	}

	names := lo.Map(spans.Ended(), func(s sdktrace.ReadOnlySpan, _ int) string { return s.Name() })
	assert.Equal(t, []string{"mapping.keyframes", "mapping.cuvgl"}, names)
}

func TestBuild_InvalidOptions(t *testing.T) {
	opts := defaultOptions(t.TempDir())
	opts.StereoCameraConfiguration = "rear_only"
	opts.Steps = []Step{"cuvslam", "bundle_adjust"}
	opts.ReplayRate = 0

	_, err := newTestBuilder(&fakeRunner{}, &bytes.Buffer{}).Build(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrUnknownConfiguration.Code))
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidMappingStep.Code))
	assert.Contains(t, err.Error(), "replay_rate must be positive")
}

func TestParseSteps(t *testing.T) {
	steps, err := ParseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, AllSteps, steps)

	steps, err = ParseSteps([]string{"cuvgl", "cuvgl", "keyframes"})
	require.NoError(t, err)
	assert.Equal(t, []Step{StepCuvgl, StepKeyframes}, steps)

	_, err = ParseSteps([]string{"everything"})
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidMappingStep.Code))
}
