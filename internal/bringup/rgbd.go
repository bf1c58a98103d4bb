package bringup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

func init() {
	register("rgbd_perceptor", rgbdPerceptor)
}

// RGBDConfig describes an rgbd perceptor deployment: which topics feed
// nvblox and cuVSLAM and how their containers are set up.
type RGBDConfig struct {
	Nvblox         *NvbloxConfig  `yaml:"nvblox_config"`
	Cuvslam        *CuvslamConfig `yaml:"cuvslam_config"`
	Common         CommonConfig   `yaml:"common_config"`
	URDFTransforms string         `yaml:"urdf_transforms"`
	ExtraTopics    []string       `yaml:"extra_topics"`
}

type ConfigFile struct {
	Package string `yaml:"package"`
	Path    string `yaml:"path"`
}

type ImageTopics struct {
	Image string `yaml:"image"`
	Info  string `yaml:"info"`
}

type RGBDCamera struct {
	Depth ImageTopics `yaml:"depth"`
	Color ImageTopics `yaml:"color"`
}

type NvbloxConfig struct {
	NodeName          string           `yaml:"node_name"`
	ContainerName     string           `yaml:"container_name"`
	AttachToContainer bool             `yaml:"attach_to_container"`
	ConfigFiles       []ConfigFile     `yaml:"config_files"`
	Parameters        []map[string]any `yaml:"parameters"`
	Remappings        []RGBDCamera     `yaml:"remappings"`
}

// StereoImages keeps raw maps so missing keys can be reported.
type StereoImages struct {
	Left  map[string]string `yaml:"left"`
	Right map[string]string `yaml:"right"`
}

type CuvslamRemappings struct {
	StereoImages []StereoImages `yaml:"stereo_images"`
	IMU          *string        `yaml:"imu"`
}

type CuvslamConfig struct {
	NodeName          string            `yaml:"node_name"`
	ContainerName     string            `yaml:"container_name"`
	AttachToContainer bool              `yaml:"attach_to_container"`
	ConfigFiles       []ConfigFile      `yaml:"config_files"`
	Parameters        []map[string]any  `yaml:"parameters"`
	Remappings        CuvslamRemappings `yaml:"remappings"`
}

// CommonConfig frames are optional; empty means not set.
type CommonConfig struct {
	RobotFrame string `yaml:"robot_frame"`
	OdomFrame  string `yaml:"odom_frame"`
	MapFrame   string `yaml:"map_frame"`
}

// LoadRGBDConfig reads an rgbd perceptor config file.
func LoadRGBDConfig(path string) (*RGBDConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.ErrMissingPath.WithMessage("failed to read rgbd perceptor config %s", path).WithCause(err)
	}
	cfg := &RGBDConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerrors.ErrInvalidLaunchConfig.WithMessage("failed to parse rgbd perceptor config %s", path).WithCause(err)
	}
	return cfg, nil
}

func invalid(msg string) error {
	return cerrors.ErrInvalidLaunchConfig.WithMessage("%s", msg)
}

func (b *Bringup) configFileParameters(files []ConfigFile) ([]launch.Parameter, error) {
	var out []launch.Parameter
	for _, f := range files {
		if f.Path == "" {
			return nil, invalid("No `path` provided in config_files")
		}
		pkg := lo.Ternary(f.Package != "", f.Package, constants.PackageName)
		p, err := b.path(pkg, f.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, launch.ParamFile(p))
	}
	return out, nil
}

func inlineParameters(values []map[string]any) []launch.Parameter {
	return lo.Map(values, func(v map[string]any, _ int) launch.Parameter { return launch.ParamValues(v) })
}

// container either loads node into an existing container or starts one
// dedicated to it.
func container(name string, attach bool, logLevel string, node launch.ComposableNode) launch.Action {
	if attach {
		return load(name, node)
	}
	return &launch.ComposableNodeContainer{
		Name:       name,
		Namespace:  "",
		Package:    "rclcpp_components",
		Executable: "component_container_mt",
		Arguments:  []string{"--ros-args", "--log-level", logLevel},
		Nodes:      []launch.ComposableNode{node},
	}
}

func (b *Bringup) startNvblox(args *launch.Arguments, cfg *NvbloxConfig, common CommonConfig) (launch.Action, error) {
	cameras := cfg.Remappings
	if err := checkInputChannels(len(cameras)); err != nil {
		return nil, err
	}

	params, err := b.configFileParameters(cfg.ConfigFiles)
	if err != nil {
		return nil, err
	}
	params = append(params, inlineParameters(cfg.Parameters)...)
	params = append(params, launch.ParamValues(map[string]any{"num_cameras": len(cameras)}))
	if common.RobotFrame != "" {
		params = append(params,
			launch.ParamValues(map[string]any{"map_clearing_frame_id": common.RobotFrame}),
			launch.ParamValues(map[string]any{"esdf_slice_bounds_visualization_attachment_frame_id": common.RobotFrame}),
			launch.ParamValues(map[string]any{"workspace_height_bounds_visualization_attachment_frame_id": common.RobotFrame}),
		)
	}
	if common.OdomFrame != "" {
		params = append(params, launch.ParamValues(map[string]any{"global_frame": common.OdomFrame}))
	}
	dynamics, err := b.path("nvblox_examples_bringup", "config/nvblox/specializations/nvblox_dynamics.yaml")
	if err != nil {
		return nil, err
	}
	params = append(params, launch.ParamFile(dynamics))

	var remappings []launch.Remapping
	for i, cam := range cameras {
		remappings = append(remappings,
			launch.Remap(fmt.Sprintf("camera_%d/depth/image", i), cam.Depth.Image),
			launch.Remap(fmt.Sprintf("camera_%d/depth/camera_info", i), cam.Depth.Info),
			launch.Remap(fmt.Sprintf("camera_%d/color/image", i), cam.Color.Image),
			launch.Remap(fmt.Sprintf("camera_%d/color/camera_info", i), cam.Color.Info),
		)
	}

	node := launch.ComposableNode{
		Name:       lo.Ternary(cfg.NodeName != "", cfg.NodeName, "nvblox_node"),
		Package:    "nvblox_ros",
		Plugin:     "nvblox::NvbloxNode",
		Remappings: remappings,
		Parameters: params,
	}
	name := lo.Ternary(cfg.ContainerName != "", cfg.ContainerName, "nvblox_container")
	return container(name, cfg.AttachToContainer, args.String("log_level"), node), nil
}

func checkStereoSide(side string, topics map[string]string) error {
	for _, key := range []string{"image", "info", "optical_frame"} {
		if _, ok := topics[key]; !ok {
			return invalid(fmt.Sprintf("`%s` is missing in the %s field", key, side))
		}
	}
	return nil
}

func (b *Bringup) startCuvslam(args *launch.Arguments, cfg *CuvslamConfig, common CommonConfig) (launch.Action, error) {
	stereo := cfg.Remappings.StereoImages
	if len(stereo) == 0 {
		return nil, invalid("You need to provide at least one input image pair")
	}

	var params []launch.Parameter
	var remappings []launch.Remapping
	var opticalFrames []string
	for i, pair := range stereo {
		if err := checkStereoSide("left", pair.Left); err != nil {
			return nil, err
		}
		if err := checkStereoSide("right", pair.Right); err != nil {
			return nil, err
		}
		idx := 2 * i
		remappings = append(remappings,
			launch.Remap(fmt.Sprintf("visual_slam/image_%d", idx), pair.Left["image"]),
			launch.Remap(fmt.Sprintf("visual_slam/camera_info_%d", idx), pair.Left["info"]),
			launch.Remap(fmt.Sprintf("visual_slam/image_%d", idx+1), pair.Right["image"]),
			launch.Remap(fmt.Sprintf("visual_slam/camera_info_%d", idx+1), pair.Right["info"]),
		)
		opticalFrames = append(opticalFrames, pair.Left["optical_frame"], pair.Right["optical_frame"])
	}

	if cfg.Remappings.IMU != nil {
		remappings = append(remappings, launch.Remap("visual_slam/imu", *cfg.Remappings.IMU))
		params = append(params, launch.ParamValues(map[string]any{"enable_imu_fusion": true}))
	}
	params = append(params,
		launch.ParamValues(map[string]any{"num_cameras": 2 * len(stereo)}),
		launch.ParamValues(map[string]any{"min_num_images": 2 * len(stereo)}),
		launch.ParamValues(map[string]any{"camera_optical_frames": opticalFrames}),
	)
	files, err := b.configFileParameters(cfg.ConfigFiles)
	if err != nil {
		return nil, err
	}
	params = append(params, files...)
	params = append(params, inlineParameters(cfg.Parameters)...)
	if common.OdomFrame != "" {
		params = append(params, launch.ParamValues(map[string]any{"odom_frame": common.OdomFrame}))
	}
	if common.MapFrame != "" {
		params = append(params, launch.ParamValues(map[string]any{"map_frame": common.MapFrame}))
	}
	if common.RobotFrame != "" {
		params = append(params, launch.ParamValues(map[string]any{"base_frame": common.RobotFrame}))
	}

	node := launch.ComposableNode{
		Name:       lo.Ternary(cfg.NodeName != "", cfg.NodeName, "cuvslam_node"),
		Package:    "isaac_ros_visual_slam",
		Plugin:     "nvidia::isaac_ros::visual_slam::VisualSlamNode",
		Remappings: remappings,
		Parameters: params,
	}
	name := lo.Ternary(cfg.ContainerName != "", cfg.ContainerName, "cuvslam_container")
	return container(name, cfg.AttachToContainer, args.String("log_level"), node), nil
}

// RecordingTopics lists every input topic of cfg once, in first seen order.
func RecordingTopics(cfg *RGBDConfig) []string {
	topics := append([]string(nil), cfg.ExtraTopics...)
	if cfg.Nvblox != nil {
		for _, cam := range cfg.Nvblox.Remappings {
			topics = append(topics, cam.Depth.Image, cam.Depth.Info, cam.Color.Image, cam.Color.Info)
		}
	}
	if cfg.Cuvslam != nil {
		if cfg.Cuvslam.Remappings.IMU != nil {
			topics = append(topics, *cfg.Cuvslam.Remappings.IMU)
		}
		for _, pair := range cfg.Cuvslam.Remappings.StereoImages {
			topics = append(topics, pair.Left["image"], pair.Left["info"], pair.Right["image"], pair.Right["info"])
		}
	}
	return lo.Uniq(lo.Compact(topics))
}

func startRecording(args *launch.Arguments, cfg *RGBDConfig) launch.Actions {
	topics := RecordingTopics(cfg)
	msg := "\n\n\n" +
		"-----------------------------------------------------\n" +
		"            BAG RECORDING IS STARTING NOW\n\n" +
		"         (make sure the rgbd cameras are up)\n" +
		"-----------------------------------------------------\n\n" +
		"List of topics:\n - " + strings.Join(topics, "\n - ")
	return launch.Actions{
		&launch.RecordBag{Topics: topics, Output: args.String("rosbag_output"), Storage: "mcap"},
		&launch.LogInfo{Message: msg},
	}
}

func rgbdPerceptor(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("rosbag_output", "", launch.WithDescription("Path to the output"), launch.WithCLI())
		a.Add("disable_nvblox", false, launch.WithDescription("Disable nvblox"), launch.WithCLI())
		a.Add("disable_cuvslam", false, launch.WithDescription("Disable cuvslam"), launch.WithCLI())
		a.Add("log_level", "info", launch.WithChoices("debug", "info", "warn"), launch.WithCLI())
		a.Add("config_file", "params/my_rgbd_perceptor.yaml", launch.WithDescription("Path to the config file"), launch.WithCLI())
		a.Add("use_foxglove_whitelist", false, launch.WithCLI())
	}); err != nil {
		return nil, err
	}

	configPath := args.String("config_file")
	if !filepath.IsAbs(configPath) {
		var err error
		if configPath, err = b.ownPath(configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := LoadRGBDConfig(configPath)
	if err != nil {
		return nil, err
	}

	var actions launch.Actions
	if args.String("rosbag_output") != "" {
		actions = append(actions, startRecording(args, cfg)...)
	} else {
		if cfg.Nvblox != nil && !args.Bool("disable_nvblox") {
			a, err := b.startNvblox(args, cfg.Nvblox, cfg.Common)
			if err != nil {
				return nil, errors.Wrap(err, "failed to configure nvblox")
			}
			actions = append(actions, a)
		}
		if cfg.Cuvslam != nil && !args.Bool("disable_cuvslam") {
			a, err := b.startCuvslam(args, cfg.Cuvslam, cfg.Common)
			if err != nil {
				return nil, errors.Wrap(err, "failed to configure cuvslam")
			}
			actions = append(actions, a)
		}
	}
	if cfg.URDFTransforms != "" {
		actions = append(actions, &launch.RobotDescription{CalibrationPath: cfg.URDFTransforms})
	}

	viz, err := b.include(args, "tools/visualization", map[string]string{
		"use_foxglove_whitelist":     args.String("use_foxglove_whitelist"),
		"enable_people_segmentation": launch.Format(false),
	})
	if err != nil {
		return nil, err
	}
	return append(actions, viz), nil
}
