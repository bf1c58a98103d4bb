package bringup

import (
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
)

func init() {
	register("tools/foxglove_bridge", foxgloveBridge)
	register("tools/rviz", rviz)
	register("tools/visualization", visualization)
}

// topicWhitelist holds the only topics forwarded to Foxglove when the
// whitelist is enabled.
var topicWhitelist = []string{
	// nvblox
	"/nvblox_human_node/.*_layer",
	"/nvblox_human_node/combined_esdf_pointcloud",
	"/nvblox_node/.*_layer",
	"/nvblox_node/map_slice_bounds",
	"/nvblox_node/mesh",
	"/nvblox_node/static_esdf_pointcloud",
	// cuVSLAM
	"/visual_slam/status",
	"/visual_slam/tracking/odometry",
	"/visual_slam/tracking/slam_path",
	"/visual_slam/tracking/vo_path",
	"/visual_slam/tracking/vo_pose",
	"/visual_slam/vis/landmarks_cloud",
	"/visual_slam/vis/observations_cloud",
	// Navigation
	"/map",
	"/plan",
	"/local_costmap/costmap",
	"/local_costmap/local_costmap",
	"/local_costmap/published_footprint",
	"/global_costmap/costmap",
	"/global_costmap/global_costmap",
	"/global_costmap/published_footprint",
	"/initialpose",
	"/goal_pose",
	// Lidar
	"/back_2d_lidar/scan",
	"/front_2d_lidar/scan",
	"/front_3d_lidar/scan",
	// Robot
	"/robot_description",
	"/tf",
	"/tf_static",
	"/diagnostics",
}

var imageTopicWhitelist = []string{"depth", "left/image_resized"}

// TopicWhitelist returns a fresh copy of the Foxglove whitelist including
// the image topics of every stereo camera.
func TopicWhitelist() []string {
	out := make([]string, 0, len(topicWhitelist)+len(perceptor.CameraSlots)*len(imageTopicWhitelist))
	out = append(out, topicWhitelist...)
	for _, camera := range perceptor.CameraSlots {
		for _, topic := range imageTopicWhitelist {
			out = append(out, "/"+string(camera)+"/"+topic)
		}
	}
	return out
}

func foxgloveBridge(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("send_buffer_limit", 10000000)
		a.Add("use_foxglove_whitelist", true)
	}); err != nil {
		return nil, err
	}

	params := map[string]any{
		"send_buffer_limit": args.Int("send_buffer_limit"),
		"max_qos_depth":     1,
		"use_compression":   false,
		"capabilities":      []string{"clientPublish", "connectionGraph", "assets"},
	}
	if args.Bool("use_foxglove_whitelist") {
		params["topic_whitelist"] = TopicWhitelist()
	}

	return launch.Actions{&launch.Node{
		Package:    "foxglove_bridge",
		Executable: "foxglove_bridge",
		Parameters: []launch.Parameter{launch.ParamValues(params)},
		// Error level keeps "send_buffer_limit reached" warnings off the terminal.
		Arguments: []string{"--ros-args", "--log-level", "ERROR"},
	}}, nil
}

func rviz(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("rviz_config", "None", launch.WithCLI())
		a.Add("rviz_frame", "odom")
		a.AddRequired("enable_people_segmentation")
	}); err != nil {
		return nil, err
	}

	configPath := args.String("rviz_config")
	if !args.IsValid("rviz_config") {
		name := "perceptor.rviz"
		if args.Bool("enable_people_segmentation") {
			name = "perceptor_people.rviz"
		}
		var err error
		configPath, err = b.ownPath("params/" + name)
		if err != nil {
			return nil, err
		}
	}
	if err := requirePath(configPath, "Rviz config"); err != nil {
		return nil, err
	}

	return launch.Actions{&launch.Node{
		Package:    "rviz2",
		Executable: "rviz2",
		Arguments:  []string{"-d", configPath, "-f", args.String("rviz_frame")},
		Output:     "screen",
	}}, nil
}

func visualization(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("run_foxglove", true, launch.WithCLI())
		a.Add("run_rviz", false, launch.WithCLI())
		a.AddRequired("use_foxglove_whitelist")
		a.AddRequired("enable_people_segmentation")
	}); err != nil {
		return nil, err
	}

	var actions launch.Actions
	if args.Bool("run_foxglove") {
		inc, err := b.include(args, "tools/foxglove_bridge", map[string]string{
			"use_foxglove_whitelist": args.String("use_foxglove_whitelist"),
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, inc)
	}
	if args.Bool("run_rviz") {
		inc, err := b.include(args, "tools/rviz", map[string]string{
			"enable_people_segmentation": args.String("enable_people_segmentation"),
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, inc)
	}
	return actions, nil
}
