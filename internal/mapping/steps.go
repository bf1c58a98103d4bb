package mapping

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (b *Builder) createCuvslamMap(ctx context.Context, r *run) error {
	requirements, err := b.path("isaac_ros_rosbag_utils", "requirements.txt")
	if err != nil {
		return err
	}
	edexConfig, err := b.path("isaac_ros_rosbag_utils", "config/edex_extraction_nova.yaml")
	if err != nil {
		return err
	}
	cuvslamLib, err := b.path("isaac_ros_visual_slam", "../cuvslam/lib")
	if err != nil {
		return err
	}

	mode := r.opts.PrintMode
	cmds := []subprocess.Command{
		{
			Mnemonic:  "Install pip requirements",
			Name:      "python3",
			Args:      []string{"-m", "pip", "install", "-r", requirements},
			LogFile:   r.layout.Log("install_requirements"),
			PrintMode: mode,
		},
		{
			Mnemonic: "Extract EDEX",
			Name:     "ros2",
			Args: []string{
				"run", "isaac_ros_rosbag_utils", "extract_edex",
				"--config_path", edexConfig,
				"--rosbag_path=" + r.opts.SensorDataBag,
				"--edex_path=" + r.layout.Edex(),
			},
			LogFile:   r.layout.Log("extract_edex"),
			PrintMode: mode,
		},
		{
			Mnemonic: "Create cuVSLAM map",
			Name:     "ros2",
			Args: []string{
				"run", "isaac_ros_visual_slam", "cuvslam_api_launcher",
				"--dataset=" + r.layout.Edex(),
				"--output_map=" + r.layout.CuvslamMap(),
				"--ros_frame_conversion=true",
				"--cfg_enable_slam=true",
				"--cfg_sync_slam",
				"--max_fps=15",
				"--print_format=tum",
				"--print_odom_poses=" + r.layout.OdomPoses(),
				"--print_slam_poses=" + r.layout.SlamPoses(),
			},
			// Only the launcher needs the cuVSLAM libraries.
			Env:       []string{"LD_LIBRARY_PATH=" + ldLibraryPath(cuvslamLib)},
			LogFile:   r.layout.Log("create_cuvslam_map"),
			PrintMode: mode,
		},
	}
	for _, cmd := range cmds {
		if err := b.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// OccupancyCommand is the replay launch that localizes in the cuVSLAM map
// and saves the nvblox occupancy map on shutdown.
func OccupancyCommand(opts Options, layout Layout) subprocess.Command {
	args := []string{
		"launch", "nova_carter_bringup", "perceptor.launch.py",
		"nvblox_param_filename:=params/nvblox_global_mapping.yaml",
		"mode:=rosbag",
		"rosbag:=" + opts.SensorDataBag,
		"vslam_load_map_folder_path:=" + layout.CuvslamMap(),
		"vslam_localize_on_startup:=True",
		"replay_rate:=" + formatRate(opts.ReplayRate),
		"stereo_camera_configuration:=" + opts.StereoCameraConfiguration,
		"nvblox_after_shutdown_map_save_path:=" + layout.OccupancyMap(),
		"replay_shutdown_on_exit:=True",
		"nvblox_global_frame:=map",
		"vslam_enable_slam:=True",
	}
	if opts.RemapTF {
		args = append(args, "replay_additional_args:=--remap /tf:=/tf_old")
	}
	return subprocess.Command{
		Mnemonic:     "Create global occupancy map",
		Name:         "ros2",
		Args:         args,
		LogFile:      layout.Log("create_global_occupancy_map"),
		PrintMode:    opts.PrintMode,
		AllowFailure: true,
	}
}

// recorderWatch echoes recorder output until the ready marker shows up.
type recorderWatch struct {
	b     *Builder
	once  sync.Once
	ready chan struct{}
	mu    sync.Mutex
	done  bool
}

func (w *recorderWatch) onLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.b.printf("Subprocess output: %s", strings.TrimSpace(line))
	if strings.Contains(line, constants.RecorderReadyMarker) {
		w.done = true
		w.once.Do(func() { close(w.ready) })
	}
}

// stop silences the watch once the wait is over.
func (w *recorderWatch) stop() {
	w.mu.Lock()
	w.done = true
	w.mu.Unlock()
}

func (b *Builder) createGlobalOccupancyMap(ctx context.Context, r *run) (err error) {
	b.printf("Starting recording pose rosbag...")
	if err := os.RemoveAll(r.layout.Poses()); err != nil {
		return errors.Wrap(err, "failed to remove previous pose bag")
	}

	watch := &recorderWatch{b: b, ready: make(chan struct{})}
	recorder, err := b.runner.Start(ctx, subprocess.Command{
		Mnemonic: "Record poses",
		Name:     "ros2",
		Args: []string{
			"bag", "record", "--storage", "mcap",
			"--output", r.layout.Poses(),
			constants.PoseTopic,
		},
		LogFile:   r.layout.Log("record_poses"),
		PrintMode: subprocess.PrintNone,
		// The recorder is always stopped with a signal.
		AllowFailure: true,
		OnLine:       watch.onLine,
	})
	if err != nil {
		return err
	}
	defer func() {
		if tErr := recorder.Terminate(); tErr != nil {
			log.Default().Warn("failed to stop pose recorder", zap.Error(tErr))
		}
		if wErr := recorder.Wait(); wErr != nil && err == nil {
			err = wErr
		}
	}()

	timer := time.NewTimer(b.recorderTimeout)
	defer timer.Stop()
	select {
	case <-watch.ready:
		r.result.RecorderReady = true
	case <-recorder.Done():
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	watch.stop()

	if r.result.RecorderReady {
		b.printf("Rosbag recording is running")
	} else {
		b.printf("Failed to record rosbag or timed out")
		if r.opts.RequireRecorder {
			return cerrors.ErrRecorderNotReady.WithMessage("pose recorder not ready after %s", b.recorderTimeout)
		}
		if tErr := recorder.Terminate(); tErr != nil {
			log.Default().Warn("failed to stop pose recorder", zap.Error(tErr))
		}
	}

	b.printf("Creating global occupancy map...")
	return b.runner.Run(ctx, OccupancyCommand(r.opts, r.layout))
}

func (b *Builder) extractKeyframes(ctx context.Context, r *run) error {
	return b.runner.Run(ctx, subprocess.Command{
		Mnemonic: "Extract keyframes",
		Name:     "ros2",
		Args: []string{
			"run", "isaac_mapping_ros", "run_rosbag_to_mapping_data.py",
			"--sensor_data_bag=" + r.opts.SensorDataBag,
			"--pose_bag=" + r.layout.Poses(),
			"--output_folder=" + r.layout.Keyframes(),
			"--extract_feature",
			"--rot_dist=5",
			"--trans_dist=0.2",
			"--print_mode=" + string(r.opts.PrintMode),
		},
		PrintMode: r.opts.PrintMode,
	})
}

func (b *Builder) createCuvglMap(ctx context.Context, r *run) error {
	args := []string{
		"run", "isaac_mapping_ros", "create_cuvgl_map.py",
		"--map_folder=" + r.layout.CuvglMap(),
		"--no-extract_feature",
		"--print_mode=" + string(r.opts.PrintMode),
	}
	if r.opts.PrebuiltBowVocabularyFolder != "" {
		args = append(args, "--prebuilt_bow_vocabulary_folder="+filepath.Clean(r.opts.PrebuiltBowVocabularyFolder))
	}
	return b.runner.Run(ctx, subprocess.Command{
		Mnemonic:  "Create cuVGL map",
		Name:      "ros2",
		Args:      args,
		PrintMode: r.opts.PrintMode,
	})
}
