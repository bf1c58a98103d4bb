package bringup

import (
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
)

func init() {
	register("perceptor_general", perceptorGeneral)
	register("perceptor", perceptorSystem)
}

// resolveConfiguration reads the inline perceptor_configuration argument, or
// resolves stereo_camera_configuration with the disable flags when no
// inline configuration is given.
func resolveConfiguration(args *launch.Arguments) (*perceptor.Resolution, error) {
	if args.IsValid("perceptor_configuration") {
		c, err := perceptor.ParseConfiguration(args.String("perceptor_configuration"))
		if err != nil {
			return nil, err
		}
		return &perceptor.Resolution{Configuration: c}, nil
	}
	if !args.IsValid("stereo_camera_configuration") {
		return nil, cerrors.ErrMissingArgument.WithMessage("either perceptor_configuration or stereo_camera_configuration must be provided")
	}
	return perceptor.LoadPerceptorConfiguration(
		args.String("stereo_camera_configuration"),
		args.Bool("disable_cuvslam"),
		args.Bool("disable_nvblox"),
		args.Bool("disable_vgl"),
	)
}

func resolutionMessages(res *perceptor.Resolution) launch.Actions {
	var out launch.Actions
	for _, msg := range res.Messages {
		out = append(out, &launch.LogInfo{Message: msg})
	}
	return out
}

func perceptorGeneral(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("perceptor_configuration", "None",
			launch.WithDescription("Mapping from stereo camera to its capability string."))
		a.Add("stereo_camera_configuration", "None",
			launch.WithDescription("Named configuration used when perceptor_configuration is not set."))
		a.Add("disable_cuvslam", false)
		a.Add("disable_nvblox", false)
		a.Add("disable_vgl", false)
		a.Add("global_frame", "odom")
		a.Add("vslam_image_qos", "SENSOR_DATA")
		a.Add("invert_odom_to_base_tf", false)
	}); err != nil {
		return nil, err
	}

	res, err := resolveConfiguration(args)
	if err != nil {
		return nil, err
	}
	config := res.Configuration
	actions := resolutionMessages(res)

	hawksArgs := map[string]string{}
	for _, slot := range perceptor.CameraSlots {
		hawksArgs[string(slot)] = config.Get(slot)
	}
	hawksInclude, err := b.include(args, "algorithms/hawks_processing", hawksArgs)
	if err != nil {
		return nil, err
	}
	owlsInclude, err := b.include(args, "algorithms/owls_processing", nil)
	if err != nil {
		return nil, err
	}
	actions = append(actions, hawksInclude, owlsInclude)

	if config.ValuesContain(perceptor.Cuvslam) {
		inc, err := b.include(args, "algorithms/vslam", map[string]string{
			"enabled_stereo_cameras_for_vslam": config.EnabledList(perceptor.Cuvslam),
			"global_frame":                     args.String("global_frame"),
			"image_qos":                        args.String("vslam_image_qos"),
			"invert_odom_to_base_tf":           args.String("invert_odom_to_base_tf"),
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, inc)
	}
	if config.ValuesContain(perceptor.Nvblox) {
		inc, err := b.include(args, "algorithms/nvblox", map[string]string{
			"enabled_stereo_cameras_for_nvblox":        config.EnabledList(perceptor.Nvblox),
			"enabled_stereo_cameras_for_nvblox_people": config.EnabledList(perceptor.NvbloxPeople),
			"global_frame": args.String("global_frame"),
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, inc)
	}
	return actions, nil
}

// perceptorSystem is the whole robot: node container, sensor sources,
// perception pipelines and visualization.
func perceptorSystem(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("stereo_camera_configuration", perceptor.FrontLeftRightConfiguration,
			launch.WithChoices(perceptor.PresetNames()...), launch.WithCLI())
		a.Add("disable_cuvslam", false, launch.WithCLI())
		a.Add("disable_nvblox", false, launch.WithCLI())
		a.Add("disable_vgl", false, launch.WithCLI())
		a.Add("mode", ModeRealWorld, launch.WithChoices(ModeRealWorld, ModeSimulation, ModeRosbag), launch.WithCLI())
		a.Add("rosbag", "None", launch.WithCLI())
		a.Add("type_negotiation_duration_s", 5)
		a.Add("enabled_fisheye_cameras", "")
		a.Add("enabled_2d_lidars", "")
		a.Add("enable_3d_lidar", false)
		a.Add("container_name", constants.DefaultContainerName)
		a.Add("global_frame", "odom")
		a.Add("use_foxglove_whitelist", true, launch.WithCLI())
	}); err != nil {
		return nil, err
	}
	if args.String("mode") == ModeRosbag && !args.IsValid("rosbag") {
		return nil, cerrors.ErrMissingArgument.WithMessage("rosbag must be set when mode is rosbag")
	}

	res, err := perceptor.LoadPerceptorConfiguration(
		args.String("stereo_camera_configuration"),
		args.Bool("disable_cuvslam"),
		args.Bool("disable_nvblox"),
		args.Bool("disable_vgl"),
	)
	if err != nil {
		return nil, err
	}
	config := res.Configuration

	actions := resolutionMessages(res)
	actions = append(actions, &launch.ComposableNodeContainer{
		Name:       args.String("container_name"),
		Namespace:  "",
		Package:    "rclcpp_components",
		Executable: "component_container_mt",
	})

	sensors, err := b.include(args, "drivers/nova_sensor_abstraction_layer", map[string]string{
		"mode":                        args.String("mode"),
		"rosbag":                      args.String("rosbag"),
		"enabled_stereo_cameras":      config.EnabledList(perceptor.Driver),
		"type_negotiation_duration_s": args.String("type_negotiation_duration_s"),
	})
	if err != nil {
		return nil, err
	}
	general, err := b.include(args, "perceptor_general", map[string]string{
		"perceptor_configuration": config.String(),
		"global_frame":            args.String("global_frame"),
	})
	if err != nil {
		return nil, err
	}
	viz, err := b.include(args, "tools/visualization", map[string]string{
		"use_foxglove_whitelist":     args.String("use_foxglove_whitelist"),
		"enable_people_segmentation": launch.Format(config.ValuesContain(perceptor.NvbloxPeople)),
	})
	if err != nil {
		return nil, err
	}
	return append(actions, sensors, general, viz), nil
}
