package bringup

import (
	"fmt"
	"strings"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
)

func init() {
	register("algorithms/hawks_processing", hawksProcessing)
	register("algorithms/owls_processing", owlsProcessing)
	register("algorithms/vslam", vslam)
	register("algorithms/nvblox", nvblox)
	register("algorithms/occupancy_map_server", occupancyMapServer)
	register("algorithms/occupancy_grid_localizer", occupancyGridLocalizer)
}

// FisheyeCameras lists the owl camera names in canonical order.
var FisheyeCameras = []string{"front_fisheye_camera", "back_fisheye_camera", "left_fisheye_camera", "right_fisheye_camera"}

func (b *Bringup) essEnginePath(file string) string {
	return b.isaacRosWS + "/" + constants.ESSModelDir + "/" + file
}

func hawksProcessing(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		for _, slot := range perceptor.CameraSlots {
			a.AddRequired(string(slot))
		}
		a.Add("container_name", constants.DefaultContainerName)
		a.Add("ess_number_of_frames_to_skip", 1)
		a.Add("ess_full_engine_file_path", b.essEnginePath(constants.ESSFullEngineFile))
		a.Add("ess_light_engine_file_path", b.essEnginePath(constants.ESSLightEngineFile))
	})
	if err != nil {
		return nil, err
	}

	var actions launch.Actions
	for _, slot := range perceptor.CameraSlots {
		pipeline, err := hawkPipeline(slot, args)
		if err != nil {
			return nil, err
		}
		actions = append(actions, pipeline...)
	}
	return actions, nil
}

func hawkPipeline(slot perceptor.CameraSlot, args *launch.Arguments) (launch.Actions, error) {
	config := args.String(string(slot))
	container := args.String("container_name")

	runESSLight := strings.Contains(config, perceptor.ESSLight)
	runESSFull := strings.Contains(config, perceptor.ESSFull)
	runESS := runESSLight || runESSFull
	if runESSLight && runESSFull {
		return nil, cerrors.ErrInvalidCameraConfig.WithMessage(
			"Camera config invalid. Can not run ess_light and ess_full at the same time. (%s: %q)", slot, config)
	}

	enginePath := args.String("ess_full_engine_file_path")
	if runESSLight {
		enginePath = args.String("ess_light_engine_file_path")
	}
	if runESS {
		if err := requirePath(enginePath, "ESS engine file"); err != nil {
			return nil, err
		}
	}
	throttlerSkip := 0
	if strings.Contains(config, perceptor.ESSSkipFrames) {
		throttlerSkip = args.Int("ess_number_of_frames_to_skip")
	}

	var actions launch.Actions
	if strings.Contains(config, perceptor.Rectify) {
		for _, side := range []string{"left", "right"} {
			actions = append(actions, load(container, launch.ComposableNode{
				Name:      "rectify_node",
				Package:   "isaac_ros_image_proc",
				Plugin:    "nvidia::isaac_ros::image_proc::RectifyNode",
				Namespace: string(slot) + "/" + side,
				Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
					"input_qos":     "SENSOR_DATA",
					"output_width":  constants.HawkImageWidth,
					"output_height": constants.HawkImageHeight,
				})},
			}))
		}
	}

	if runESS {
		ess := launch.ComposableNode{
			Name:      "ess_node",
			Package:   "isaac_ros_ess",
			Plugin:    "nvidia::isaac_ros::dnn_stereo_depth::ESSDisparityNode",
			Namespace: string(slot),
			Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
				"engine_file_path": enginePath,
				"threshold":        constants.ESSThreshold,
				"throttler_skip":   throttlerSkip,
			})},
			Remappings: []launch.Remapping{
				launch.Remap("left/camera_info", "left/camera_info_rect"),
				launch.Remap("left/image_raw", "left/image_rect"),
				launch.Remap("right/camera_info", "right/camera_info_rect"),
				launch.Remap("right/image_raw", "right/image_rect"),
			},
		}
		disparity := launch.ComposableNode{
			Name:      "disparity_to_depth",
			Package:   "isaac_ros_stereo_image_proc",
			Plugin:    "nvidia::isaac_ros::stereo_image_proc::DisparityToDepthNode",
			Namespace: string(slot),
		}
		actions = append(actions, load(container, ess, disparity))
	}
	return actions, nil
}

func owlsProcessing(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("enabled_fisheye_cameras")
		a.Add("container_name", constants.DefaultContainerName)
		a.Add("output_width", constants.OwlResizedWidth)
		a.Add("output_height", constants.OwlResizedHeight)
	})
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_fisheye_cameras")
	var actions launch.Actions
	for _, name := range FisheyeCameras {
		if !strings.Contains(enabled, name) {
			continue
		}
		actions = append(actions, load(args.String("container_name"), launch.ComposableNode{
			Name:      name + "_resize_node",
			Package:   "isaac_ros_image_proc",
			Plugin:    "nvidia::isaac_ros::image_proc::ResizeNode",
			Namespace: name,
			Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
				"output_width":  args.Int("output_width"),
				"output_height": args.Int("output_height"),
			})},
		}))
	}
	return actions, nil
}

func vslamRemappings(i int, camera, side string) []launch.Remapping {
	return []launch.Remapping{
		launch.Remap(fmt.Sprintf("visual_slam/image_%d", i), fmt.Sprintf("/%s/%s/image_raw", camera, side)),
		launch.Remap(fmt.Sprintf("visual_slam/camera_info_%d", i), fmt.Sprintf("/%s/%s/camera_info", camera, side)),
	}
}

func vslam(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("enabled_stereo_cameras_for_vslam")
		a.Add("enable_imu_for_vslam", false)
		a.Add("enable_slam_for_vslam", false)
		a.Add("min_num_images_used_in_vslam", 2)
		a.Add("container_name", constants.DefaultContainerName)
		a.Add("global_frame", "odom")
		a.Add("invert_odom_to_base_tf", false)
		a.Add("publish_odom_to_base_tf", true)
	})
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_stereo_cameras_for_vslam")
	cameras := utilities.SplitCommaList(enabled)
	if len(cameras) == 0 {
		return nil, cerrors.ErrInvalidLaunchConfig.WithMessage("no stereo camera enabled for vslam")
	}

	remappings := []launch.Remapping{launch.Remap("visual_slam/imu", "/front_stereo_imu/imu")}
	for i, camera := range cameras {
		remappings = append(remappings, vslamRemappings(2*i, camera, "left")...)
		remappings = append(remappings, vslamRemappings(2*i+1, camera, "right")...)
	}

	node := launch.ComposableNode{
		Name:    "visual_slam_node",
		Package: "isaac_ros_visual_slam",
		Plugin:  "nvidia::isaac_ros::visual_slam::VisualSlamNode",
		Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
			// Images
			"num_cameras":                          2 * len(cameras),
			"min_num_images":                       2 * len(cameras),
			"enable_image_denoising":               false,
			"enable_localization_n_mapping":        args.Bool("enable_slam_for_vslam"),
			"enable_ground_constraint_in_odometry": true,
			"enable_imu_fusion":                    args.Bool("enable_imu_for_vslam"),
			"gyro_noise_density":                   0.000244,
			"gyro_random_walk":                     0.000019393,
			"accel_noise_density":                  0.001862,
			"accel_random_walk":                    0.003,
			"calibration_frequency":                200.0,
			// Image masking is meant for unrectified images.
			"rectified_images": false,
			"img_mask_bottom":  30,
			"img_mask_left":    150,
			"img_mask_right":   30,
			// Frames
			"map_frame":              "map",
			"odom_frame":             args.String("global_frame"),
			"base_frame":             "base_link",
			"imu_frame":              "front_stereo_camera_imu",
			"publish_map_to_odom_tf": false,
			"invert_odom_to_base_tf": args.Bool("invert_odom_to_base_tf"),
			// Visualization
			"path_max_size":             1024,
			"enable_slam_visualization": false,
			"enable_landmarks_view":     false,
			"enable_observations_view":  false,
		})},
		Remappings: remappings,
	}

	return launch.Actions{
		load(args.String("container_name"), node),
		logf("Enabling vslam for cameras '%s'", enabled),
	}, nil
}

func nvbloxRemappings(cameras []string, peopleSegmentation bool) []launch.Remapping {
	var out []launch.Remapping
	for i, name := range cameras {
		out = append(out,
			launch.Remap(fmt.Sprintf("camera_%d/depth/image", i), name+"/depth"),
			launch.Remap(fmt.Sprintf("camera_%d/depth/camera_info", i), name+"/camera_info"),
		)
		// The front camera reads color from the segmentation graph in people mode.
		if peopleSegmentation && name == string(perceptor.FrontStereoCamera) {
			out = append(out,
				launch.Remap(fmt.Sprintf("camera_%d/color/image", i), "/segmentation/image_resized"),
				launch.Remap(fmt.Sprintf("camera_%d/color/camera_info", i), "/segmentation/camera_info_resized"),
			)
		} else {
			out = append(out,
				launch.Remap(fmt.Sprintf("camera_%d/color/image", i), name+"/left/image_rect"),
				launch.Remap(fmt.Sprintf("camera_%d/color/camera_info", i), name+"/left/camera_info_rect"),
			)
		}
	}
	if peopleSegmentation {
		out = append(out,
			launch.Remap("mask/image", "/unet/raw_segmentation_mask"),
			launch.Remap("mask/camera_info", "/segmentation/camera_info_resized"),
		)
	}
	return out
}

func (b *Bringup) nvbloxParameters(numCameras int, peopleSegmentation bool, globalFrame string) ([]launch.Parameter, error) {
	base, err := b.path("nvblox_examples_bringup", "config/nvblox/nvblox_base.yaml")
	if err != nil {
		return nil, err
	}
	perceptorParams, err := b.ownPath("params/nvblox_perceptor.yaml")
	if err != nil {
		return nil, err
	}
	params := []launch.Parameter{
		launch.ParamFile(base),
		launch.ParamFile(perceptorParams),
		launch.ParamValues(map[string]any{"num_cameras": numCameras}),
		launch.ParamValues(map[string]any{"global_frame": globalFrame}),
	}
	if peopleSegmentation {
		seg, err := b.path("nvblox_examples_bringup", "config/nvblox/specializations/nvblox_segmentation.yaml")
		if err != nil {
			return nil, err
		}
		params = append(params, launch.ParamFile(seg))
	}
	return params, nil
}

// checkInputChannels bounds the number of nvblox depth/color inputs.
func checkInputChannels(n int) error {
	if n == 0 {
		return invalid("You need to provide at least one input channel")
	}
	if n > 4 {
		return invalid("No more than 4 input channels must be provided")
	}
	return nil
}

func nvblox(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("enabled_stereo_cameras_for_nvblox")
		a.AddRequired("enabled_stereo_cameras_for_nvblox_people")
		a.Add("container_name", constants.DefaultContainerName)
		a.Add("global_frame", "odom")
	})
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_stereo_cameras_for_nvblox")
	cameras := utilities.SplitCommaList(enabled)
	if err := checkInputChannels(len(cameras)); err != nil {
		return nil, err
	}
	peopleCameras := utilities.SplitCommaList(args.String("enabled_stereo_cameras_for_nvblox_people"))
	peopleSegmentation := len(peopleCameras) > 0
	if peopleSegmentation {
		if len(peopleCameras) > 1 {
			return nil, cerrors.ErrInvalidCameraConfig.WithMessage("People segmentation is only possible for one camera.")
		}
		if peopleCameras[0] != string(perceptor.FrontStereoCamera) {
			return nil, cerrors.ErrInvalidCameraConfig.WithMessage("People segmentation is only possible for the front stereo camera.")
		}
	}

	params, err := b.nvbloxParameters(len(cameras), peopleSegmentation, args.String("global_frame"))
	if err != nil {
		return nil, err
	}

	name, plugin := "nvblox_node", "nvblox::NvbloxNode"
	if peopleSegmentation {
		name, plugin = "nvblox_human_node", "nvblox::NvbloxHumanNode"
	}
	container := args.String("container_name")

	actions := launch.Actions{
		load(container, launch.ComposableNode{
			Name:       name,
			Package:    "nvblox_ros",
			Plugin:     plugin,
			Remappings: nvbloxRemappings(cameras, peopleSegmentation),
			Parameters: params,
		}),
		logf("Enabling nvblox for cameras '%s'", enabled),
	}
	if peopleSegmentation {
		actions = append(actions, external("nvblox_examples_bringup", "launch/perception/segmentation.launch.py", map[string]string{
			"container_name":          container,
			"input_topic":             "/front_stereo_camera/left/image_rect",
			"input_camera_info_topic": "/front_stereo_camera/left/camera_info_rect",
			"people_segmentation":     "peoplesemsegnet_shuffleseg",
		}))
	}
	return actions, nil
}

func occupancyMapServer(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		a.Add("omap_frame", "map")
		a.AddRequired("occupancy_map_yaml_file")
	})
	if err != nil {
		return nil, err
	}

	mapFile := args.String("occupancy_map_yaml_file")
	return launch.Actions{
		logf("Loading occupancy map file from '%s'", mapFile),
		&launch.Node{
			Package:    "nav2_map_server",
			Executable: "map_server",
			Name:       "map_server",
			Output:     "screen",
			Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
				"yaml_filename": mapFile,
				"frame_id":      args.String("omap_frame"),
				"output":        "screen",
			})},
		},
		&launch.Timer{
			Period: constants.LifecycleManagerDelay.Seconds(),
			Actions: launch.Actions{&launch.Node{
				Package:    "nav2_lifecycle_manager",
				Executable: "lifecycle_manager",
				Name:       "lifecycle_manager_map_server",
				Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
					"autostart":  true,
					"node_names": []string{"map_server"},
				})},
			}},
		},
	}, nil
}

func occupancyGridLocalizer(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("map_yaml_path")
		a.AddRequired("enable_3d_lidar_localization")
		a.Add("container_name", constants.DefaultContainerName)
	})
	if err != nil {
		return nil, err
	}

	scanTopic := "/front_2d_lidar/flatscan"
	if args.Bool("enable_3d_lidar_localization") {
		scanTopic = "/front_3d_lidar/flatscan"
	}
	mapYAML := args.String("map_yaml_path")

	return launch.Actions{load(args.String("container_name"), launch.ComposableNode{
		Name:    "occupancy_grid_localizer",
		Package: "isaac_ros_occupancy_grid_localizer",
		Plugin:  "nvidia::isaac_ros::occupancy_grid_localizer::OccupancyGridLocalizerNode",
		Parameters: []launch.Parameter{
			launch.ParamFile(mapYAML),
			launch.ParamValues(map[string]any{
				"loc_result_frame": "map",
				"map_yaml_path":    mapYAML,
			}),
		},
		Remappings: []launch.Remapping{
			launch.Remap("localization_result", "/initialpose"),
			launch.Remap("flatscan", scanTopic),
		},
	})}, nil
}
