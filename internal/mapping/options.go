package mapping

import (
	"path/filepath"
	"strconv"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// Step is one stage of the map building pipeline.
type Step string

const (
	StepCuvslam   Step = "cuvslam"
	StepOccupancy Step = "occupancy"
	StepKeyframes Step = "keyframes"
	StepCuvgl     Step = "cuvgl"
)

// AllSteps lists every step in execution order.
var AllSteps = []Step{StepCuvslam, StepOccupancy, StepKeyframes, StepCuvgl}

// StepNames returns the step names in execution order.
func StepNames() []string {
	return lo.Map(AllSteps, func(s Step, _ int) string { return string(s) })
}

// ParseSteps validates names. An empty selection means every step.
func ParseSteps(names []string) ([]Step, error) {
	if len(names) == 0 {
		return append([]Step(nil), AllSteps...), nil
	}
	var errs error
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		step := Step(name)
		if !lo.Contains(AllSteps, step) {
			errs = multierr.Append(errs, cerrors.ErrInvalidMappingStep.WithMessage("unknown step %q, expected one of %v", name, StepNames()))
			continue
		}
		steps = append(steps, step)
	}
	if errs != nil {
		return nil, errs
	}
	return lo.Uniq(steps), nil
}

// Options describes one map building run.
type Options struct {
	// RunID identifies the run in progress events. Generated when empty.
	RunID                       string               `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	SensorDataBag               string               `yaml:"sensor_data_bag" json:"sensor_data_bag"`
	BaseOutputFolder            string               `yaml:"base_output_folder" json:"base_output_folder"`
	ReplayRate                  float64              `yaml:"replay_rate" json:"replay_rate"`
	StereoCameraConfiguration   string               `yaml:"stereo_camera_configuration" json:"stereo_camera_configuration"`
	PrebuiltBowVocabularyFolder string               `yaml:"prebuilt_bow_vocabulary_folder,omitempty" json:"prebuilt_bow_vocabulary_folder,omitempty"`
	PrintMode                   subprocess.PrintMode `yaml:"print_mode" json:"print_mode"`
	Steps                       []Step               `yaml:"steps" json:"steps"`
	// MapDir reuses an existing output folder instead of creating one.
	MapDir  string `yaml:"map_dir,omitempty" json:"map_dir,omitempty"`
	RemapTF bool   `yaml:"remap_tf" json:"remap_tf"`
	// RequireRecorder aborts the occupancy step when the pose recorder does
	// not report readiness in time.
	RequireRecorder bool `yaml:"require_recorder" json:"require_recorder"`
}

// Validate checks the options and fills Steps when empty.
func (o *Options) Validate() error {
	var errs error
	if o.SensorDataBag == "" {
		errs = multierr.Append(errs, cerrors.ErrGenericBadRequest.WithMessage("sensor_data_bag is required"))
	}
	if o.MapDir == "" && o.BaseOutputFolder == "" {
		errs = multierr.Append(errs, cerrors.ErrGenericBadRequest.WithMessage("base_output_folder is required when map_dir is not set"))
	}
	if o.ReplayRate <= 0 {
		errs = multierr.Append(errs, cerrors.ErrGenericBadRequest.WithMessage("replay_rate must be positive, got %v", o.ReplayRate))
	}
	if !perceptor.IsPreset(o.StereoCameraConfiguration) {
		errs = multierr.Append(errs, cerrors.ErrUnknownConfiguration.WithMessage("unknown stereo camera configuration %q", o.StereoCameraConfiguration))
	}
	if _, err := subprocess.ParsePrintMode(string(o.PrintMode)); err != nil {
		errs = multierr.Append(errs, err)
	}
	steps, err := ParseSteps(lo.Map(o.Steps, func(s Step, _ int) string { return string(s) }))
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		o.Steps = steps
	}
	return errs
}

func (o Options) runs(step Step) bool {
	return lo.Contains(o.Steps, step)
}

// bagName is the last element of the sensor bag path.
func (o Options) bagName() string {
	return filepath.Base(filepath.Clean(o.SensorDataBag))
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
