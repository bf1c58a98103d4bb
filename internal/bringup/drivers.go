package bringup

import (
	"strings"

	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/samber/lo"
)

func init() {
	register("drivers/correlated_timestamp_driver", correlatedTimestampDriver)
	register("drivers/hawks", hawks)
	register("drivers/owls", owls)
	register("drivers/rplidars", rplidars)
	register("drivers/hesai", hesai)
	register("drivers/joystick", joystick)
	register("drivers/nova_sensor_drivers", novaSensorDrivers)
	register("drivers/nova_sensor_abstraction_layer", novaSensorAbstractionLayer)
}

// Sensor sources accepted by the abstraction layer.
const (
	ModeRealWorld  = "real_world"
	ModeSimulation = "simulation"
	ModeRosbag     = "rosbag"
)

func correlatedTimestampDriver(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("container_name", constants.DefaultContainerName)
	}); err != nil {
		return nil, err
	}
	return launch.Actions{
		logf("Enabling correlated timestamp driver."),
		load(args.String("container_name"), launch.ComposableNode{
			Name:    "correlated_timestamp_driver",
			Package: "isaac_ros_correlated_timestamp_driver",
			Plugin:  "nvidia::isaac_ros::correlated_timestamp_driver::CorrelatedTimestampDriverNode",
			Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
				"use_time_since_epoch": false,
				"nvpps_dev_name":       "/dev/nvpps0",
			})},
		}),
	}, nil
}

func hawks(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("container_name", constants.DefaultContainerName)
		a.AddRequired("enabled_stereo_cameras")
	}); err != nil {
		return nil, err
	}
	info, err := b.SystemInfo()
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_stereo_cameras")
	var actions launch.Actions
	for _, sensor := range info.OfType(SensorTypeHawk) {
		// The front_stereo_imu is listed as a hawk without a module id.
		if sensor.ModuleID == nil || !strings.Contains(enabled, sensor.Name) {
			continue
		}
		name := sensor.Name
		actions = append(actions, &launch.Group{Actions: launch.Actions{
			logf("Adding hawk driver '%s'.", name),
			load(args.String("container_name"), launch.ComposableNode{
				Name:      name + "_node",
				Package:   "isaac_ros_hawk",
				Plugin:    "nvidia::isaac_ros::hawk::HawkNode",
				Namespace: name,
				Remappings: []launch.Remapping{
					launch.Remap("/"+name+"/correlated_timestamp", "/correlated_timestamp"),
					launch.Remap("/"+name+"/left/camerainfo", "/"+name+"/left/camera_info"),
					launch.Remap("/"+name+"/right/camerainfo", "/"+name+"/right/camera_info"),
				},
				Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
					"module_id":               *sensor.ModuleID,
					"camera_link_frame_name":  name,
					"left_camera_frame_name":  name + "_left",
					"right_camera_frame_name": name + "_right",
				})},
			}),
		}})
	}
	return actions, nil
}

func owls(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("container_name", constants.DefaultContainerName)
		a.AddRequired("enabled_fisheye_cameras")
	}); err != nil {
		return nil, err
	}
	info, err := b.SystemInfo()
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_fisheye_cameras")
	var actions launch.Actions
	for _, sensor := range info.OfType(SensorTypeOwl) {
		if !strings.Contains(enabled, sensor.Name) {
			continue
		}
		name := sensor.Name
		actions = append(actions, &launch.Group{Actions: launch.Actions{
			logf("Adding owl driver '%s'.", name),
			load(args.String("container_name"), launch.ComposableNode{
				Name:      name + "_node",
				Package:   "isaac_ros_owl",
				Plugin:    "nvidia::isaac_ros::owl::OwlNode",
				Namespace: name,
				Remappings: []launch.Remapping{
					launch.Remap("/"+name+"/correlated_timestamp", "/correlated_timestamp"),
					launch.Remap("/"+name+"/camerainfo", "/"+name+"/camera_info"),
				},
				Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
					"module_id":              lo.FromPtr(sensor.ModuleID),
					"camera_id":              lo.FromPtr(sensor.CameraID),
					"camera_link_frame_name": name,
					"optical_frame_name":     name + "_optical",
				})},
			}),
		}})
	}
	return actions, nil
}

func rplidars(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("enabled_2d_lidars")
		a.Add("container_name", constants.DefaultContainerName)
	}); err != nil {
		return nil, err
	}
	info, err := b.SystemInfo()
	if err != nil {
		return nil, err
	}

	enabled := args.String("enabled_2d_lidars")
	actions := launch.Actions{logf("Enabling 2D lidars: '%s'", enabled)}
	for _, sensor := range info.OfType(SensorTypeRplidar) {
		if !strings.Contains(enabled, sensor.Name) {
			continue
		}
		name := sensor.Name
		actions = append(actions, &launch.Group{Actions: launch.Actions{
			&launch.Node{
				Package:    "sllidar_ros2",
				Executable: "sllidar_node",
				Name:       name + "_node",
				Namespace:  name,
				Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
					"channel_type":     "udp",
					"udp_ip":           sensor.IP,
					"udp_port":         8089,
					"frame_id":         name,
					"inverted":         false,
					"angle_compensate": true,
					"scan_mode":        "Sensitivity",
				})},
				ShutdownOnExit: true,
			},
			load(args.String("container_name"), launch.ComposableNode{
				Name:      "laserscan_to_flatscan",
				Package:   "isaac_ros_pointcloud_utils",
				Plugin:    "nvidia::isaac_ros::pointcloud_utils::LaserScantoFlatScanNode",
				Namespace: name,
			}),
			logf("Enabling 2D lidar: '%s'", name),
		}})
	}
	return actions, nil
}

func hesai(_ *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("container_name", constants.DefaultContainerName)
	}); err != nil {
		return nil, err
	}
	return launch.Actions{
		logf("Enabling 3D lidar."),
		load(args.String("container_name"), launch.ComposableNode{
			Name:       "hesai",
			Package:    "isaac_ros_hesai",
			Plugin:     "nvidia::isaac_ros::hesai::HesaiNode",
			Namespace:  "front_3d_lidar",
			Remappings: []launch.Remapping{launch.Remap("pointcloud", "lidar_points")},
		}),
	}, nil
}

func joystick(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	joyConfig, err := b.defaultOwnPath(args, "joy_config_file_path", "params/joystick_ps5.yaml")
	if err != nil {
		return nil, err
	}
	if err := declare(args, func(a *launch.Arguments) {
		a.Add("device_path", "/dev/input/js0")
		a.Add("joy_config_file_path", joyConfig)
	}); err != nil {
		return nil, err
	}

	teleop := func(namespace string) *launch.Node {
		return &launch.Node{
			Package:        "teleop_twist_joy",
			Executable:     "teleop_node",
			Name:           "teleop_twist_joy_node",
			Namespace:      namespace,
			Parameters:     []launch.Parameter{launch.ParamFile(args.String("joy_config_file_path"))},
			ShutdownOnExit: true,
		}
	}
	return launch.Actions{
		logf("Enabling joystick."),
		&launch.Node{
			Package:    "joy_linux",
			Executable: "joy_linux_node",
			Name:       "joy_linux_node",
			Namespace:  "joy",
			Parameters: []launch.Parameter{launch.ParamValues(map[string]any{
				"dev":             args.String("device_path"),
				"deadzone":        0.3,
				"autorepeat_rate": 20.0,
			})},
			ShutdownOnExit: true,
		},
		teleop("joy"),
		teleop("virtual_joy"),
	}, nil
}

// unionLists merges comma separated lists, keeping first occurrences.
func unionLists(lists ...string) string {
	var items []string
	for _, l := range lists {
		items = append(items, utilities.SplitCommaList(l)...)
	}
	return utilities.JoinCommaList(lo.Uniq(items))
}

func novaSensorDrivers(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("enable_3d_lidar")
		a.AddRequired("enabled_2d_lidars")
		a.AddRequired("enabled_stereo_cameras")
		a.AddRequired("enabled_fisheye_cameras")
		a.Add("container_name", constants.DefaultContainerName)
	}); err != nil {
		return nil, err
	}

	container := map[string]string{"container_name": args.String("container_name")}
	enabledCameras := unionLists(args.String("enabled_stereo_cameras"), args.String("enabled_fisheye_cameras"))

	includes := []struct {
		entry string
		when  bool
	}{
		{"drivers/correlated_timestamp_driver", launch.IsValidValue(enabledCameras)},
		{"drivers/rplidars", args.IsValid("enabled_2d_lidars")},
		{"drivers/hesai", args.Bool("enable_3d_lidar")},
		{"drivers/hawks", args.IsValid("enabled_stereo_cameras")},
		{"drivers/owls", args.IsValid("enabled_fisheye_cameras")},
	}

	var actions launch.Actions
	for _, inc := range includes {
		if !inc.when {
			continue
		}
		action, err := b.include(args, inc.entry, container)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func novaSensorAbstractionLayer(b *Bringup, args *launch.Arguments) (launch.Actions, error) {
	if err := declare(args, func(a *launch.Arguments) {
		a.AddRequired("mode", launch.WithChoices(ModeRealWorld, ModeSimulation, ModeRosbag))
		a.AddRequired("rosbag")
		a.AddRequired("enabled_stereo_cameras")
		a.AddRequired("type_negotiation_duration_s")
	}); err != nil {
		return nil, err
	}

	switch args.String("mode") {
	case ModeRosbag:
		return launch.Actions{external("isaac_ros_data_replayer", "launch/include/data_replayer_include.launch.py", map[string]string{
			"rosbag":                 args.String("rosbag"),
			"replay_delay":           args.String("type_negotiation_duration_s"),
			"enabled_stereo_cameras": args.String("enabled_stereo_cameras"),
		})}, nil
	case ModeRealWorld:
		inc, err := b.include(args, "drivers/nova_sensor_drivers", map[string]string{
			"enabled_stereo_cameras": args.String("enabled_stereo_cameras"),
		})
		if err != nil {
			return nil, err
		}
		return launch.Actions{inc}, nil
	default:
		// Simulation publishes sensor data itself.
		return nil, nil
	}
}
