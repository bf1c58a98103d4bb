package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/bootstrap"
	"github.com/okieraised/perceptor-bringup/internal/bringup"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/subprocess"
	"github.com/okieraised/perceptor-bringup/internal/mapping"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	// Global flags.
	flagConfigDir = "config_dir"
	flagLogLevel  = "log_level"

	// create-map flags.
	flagSensorDataBag          = "sensor_data_bag"
	flagBaseOutputFolder       = "base_output_folder"
	flagReplayRate             = "replay_rate"
	flagStereoCameraConfig     = "stereo_camera_configuration"
	flagPrebuiltBowVocabulary  = "prebuilt_bow_vocabulary_folder"
	flagPrintMode              = "print_mode"
	flagStepsToRun             = "steps_to_run"
	flagMapDir                 = "map_dir"
	flagRemapTF                = "remap_tf"
	flagRequirePoseRecorder    = "require_pose_recorder"
	flagRecorderTimeout        = "recorder_timeout"
	flagDisableCuvslam         = "disable_cuvslam"
	flagDisableNvblox          = "disable_nvblox"
	flagDisableVgl             = "disable_vgl"
	flagFormat                 = "format"
	flagArg                    = "arg"
	formatYAML                 = "yaml"
	formatJSON                 = "json"
	defaultStereoConfiguration = perceptor.FrontLeftRightConfiguration
)

// environment carries what the commands need from the outside world.
type environment struct {
	stdout     io.Writer
	init       func(c *cli.Context) error
	newBringup func() *bringup.Bringup
	newBuilder func(ctx context.Context, stdout io.Writer, extra ...mapping.Option) (*mapping.Builder, func(), error)
}

func defaultEnvironment(stdout io.Writer) *environment {
	return &environment{
		stdout: stdout,
		init: func(c *cli.Context) error {
			// console output reads better next to subprocess logs
			viper.Set(config.BringupLogFormat, "console")
			if c.IsSet(flagLogLevel) {
				viper.Set(config.BringupLogLevel, c.String(flagLogLevel))
			}
			return bootstrap.Init(config.LoadOptions{Dir: c.String(flagConfigDir)})
		},
		newBringup: bootstrap.NewBringup,
		newBuilder: func(ctx context.Context, stdout io.Writer, extra ...mapping.Option) (*mapping.Builder, func(), error) {
			ext, err := bootstrap.InitExternal(ctx)
			if err != nil {
				return nil, nil, err
			}
			cleanup := func() {
				sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if sErr := ext.Shutdown(sCtx); sErr != nil {
					log.Default().Warn(fmt.Sprintf("Failed to shutdown external services: %v", sErr))
				}
			}
			opts := append(ext.MappingOptions(), mapping.WithStdout(stdout))
			opts = append(opts, extra...)
			return mapping.NewBuilder(opts...), cleanup, nil
		},
	}
}

func newApp(env *environment) *cli.App {
	return &cli.App{
		Name:      "perceptor",
		Usage:     "render perceptor launch graphs and build maps from rosbags",
		Writer:    env.stdout,
		ErrWriter: env.stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagConfigDir,
				Value: ".",
				Usage: "directory holding .env files and the conf/ folder",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level: debug, info, warn or error",
			},
		},
		Before: func(c *cli.Context) error {
			if env.init == nil {
				return nil
			}
			return env.init(c)
		},
		Commands: []*cli.Command{
			createMapCommand(env),
			renderCommand(env),
			configurationsCommand(env),
			entriesCommand(env),
		},
	}
}

func createMapCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "create-map",
		Usage: "build cuVSLAM, occupancy and cuVGL maps from a sensor data rosbag",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagSensorDataBag, Required: true, Usage: "path to the sensor data rosbag"},
			&cli.StringFlag{Name: flagBaseOutputFolder, Value: constants.DefaultMapsFolder, Usage: "base output folder for the generated maps"},
			&cli.Float64Flag{Name: flagReplayRate, Value: 0.1, Usage: "replay rate for the rosbag playback"},
			&cli.StringFlag{Name: flagStereoCameraConfig, Value: defaultStereoConfiguration, Usage: "stereo camera configuration to use"},
			&cli.StringFlag{Name: flagPrebuiltBowVocabulary, Usage: "folder containing prebuilt BoW vocabulary files"},
			&cli.StringFlag{Name: flagPrintMode, Value: string(subprocess.PrintTail), Usage: "subprocess output: " + strings.Join(subprocess.PrintModes, ", ")},
			&cli.StringSliceFlag{Name: flagStepsToRun, Usage: "steps to run: " + strings.Join(mapping.StepNames(), ", ")},
			&cli.StringFlag{Name: flagMapDir, Usage: "existing map folder to write into"},
			&cli.BoolFlag{Name: flagRemapTF, Value: true, Usage: "remap /tf to /tf_old while replaying"},
			&cli.BoolFlag{Name: flagRequirePoseRecorder, Usage: "fail when the pose recorder does not start in time"},
			&cli.DurationFlag{Name: flagRecorderTimeout, Usage: "how long to wait for the pose recorder"},
		},
		Action: func(c *cli.Context) error {
			opts, err := mappingOptionsFromFlags(c)
			if err != nil {
				return err
			}

			var extra []mapping.Option
			if c.IsSet(flagRecorderTimeout) {
				extra = append(extra, mapping.WithRecorderTimeout(c.Duration(flagRecorderTimeout)))
			}
			builder, cleanup, err := env.newBuilder(c.Context, env.stdout, extra...)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			res, err := builder.Build(c.Context, opts)
			if err != nil {
				return err
			}
			log.Default().Info(fmt.Sprintf("Map run %s finished with steps %v", res.RunID, res.Steps))
			return nil
		},
	}
}

func mappingOptionsFromFlags(c *cli.Context) (mapping.Options, error) {
	printMode, err := subprocess.ParsePrintMode(c.String(flagPrintMode))
	if err != nil {
		return mapping.Options{}, err
	}
	steps, err := mapping.ParseSteps(expandList(c.StringSlice(flagStepsToRun)))
	if err != nil {
		return mapping.Options{}, err
	}
	baseOutputFolder := c.String(flagBaseOutputFolder)
	if !c.IsSet(flagBaseOutputFolder) && viper.GetString(config.MappingBaseOutputFolder) != "" {
		baseOutputFolder = viper.GetString(config.MappingBaseOutputFolder)
	}
	return mapping.Options{
		SensorDataBag:               c.String(flagSensorDataBag),
		BaseOutputFolder:            baseOutputFolder,
		ReplayRate:                  c.Float64(flagReplayRate),
		StereoCameraConfiguration:   c.String(flagStereoCameraConfig),
		PrebuiltBowVocabularyFolder: c.String(flagPrebuiltBowVocabulary),
		PrintMode:                   printMode,
		Steps:                       steps,
		MapDir:                      c.String(flagMapDir),
		RemapTF:                     c.Bool(flagRemapTF),
		RequireRecorder:             c.Bool(flagRequirePoseRecorder),
	}, nil
}

func renderCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "print the launch graph of an entry point",
		ArgsUsage: "<entry> [name:=value ...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: flagArg, Usage: "launch argument as name=value, repeatable"},
			&cli.StringFlag{Name: flagFormat, Value: formatYAML, Usage: "output format: yaml or json"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cerrors.ErrGenericBadRequest.WithMessage("missing launch entry, expected one of %v", bringup.Entries())
			}
			values, err := parseLaunchArgs(append(c.Args().Tail(), c.StringSlice(flagArg)...))
			if err != nil {
				return err
			}
			d, err := env.newBringup().Generate(c.Args().First(), values)
			if err != nil {
				return err
			}
			for _, msg := range d.Messages() {
				log.Default().Info(msg)
			}
			return write(env.stdout, c.String(flagFormat), d)
		},
	}
}

func configurationsCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "configurations",
		Usage:     "list stereo camera presets or resolve one",
		ArgsUsage: "[name]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagDisableCuvslam, Usage: "strip cuvslam"},
			&cli.BoolFlag{Name: flagDisableNvblox, Usage: "strip nvblox and ESS"},
			&cli.BoolFlag{Name: flagDisableVgl, Usage: "strip vgl"},
			&cli.StringFlag{Name: flagFormat, Value: formatYAML, Usage: "output format: yaml or json"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				for _, name := range perceptor.PresetNames() {
					if _, err := fmt.Fprintln(env.stdout, name); err != nil {
						return err
					}
				}
				return nil
			}
			res, err := perceptor.LoadPerceptorConfiguration(
				c.Args().First(),
				c.Bool(flagDisableCuvslam),
				c.Bool(flagDisableNvblox),
				c.Bool(flagDisableVgl),
			)
			if err != nil {
				return err
			}
			for _, msg := range res.Messages {
				log.Default().Info(msg)
			}
			return write(env.stdout, c.String(flagFormat), res)
		},
	}
}

func entriesCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "list launch entry points",
		Action: func(c *cli.Context) error {
			for _, e := range bringup.Entries() {
				if _, err := fmt.Fprintf(env.stdout, "%s\t%s\n", e, bringup.EntryFile(e)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// parseLaunchArgs accepts name:=value as on a ros2 launch command line and
// name=value.
func parseLaunchArgs(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, ":=")
		if !ok {
			name, value, ok = strings.Cut(arg, "=")
		}
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, cerrors.ErrInvalidArgument.WithMessage("malformed launch argument %q, expected name:=value", arg)
		}
		values[name] = value
	}
	return values, nil
}

// expandList splits comma separated values so both --steps_to_run a,b and
// repeated flags work.
func expandList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, p := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, p)
		}
	}
	return out
}

func write(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "failed to encode json")
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return errors.Wrap(enc.Close(), "failed to flush yaml")
	default:
		return cerrors.ErrGenericBadRequest.WithMessage("unknown output format %q, expected yaml or json", format)
	}
}
