package bringup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/okieraised/perceptor-bringup/internal/perceptor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dirResolver maps every package to <root>/<pkg>.
type dirResolver string

func (r dirResolver) Path(pkg, rel string) (string, error) {
	return filepath.Join(string(r), pkg, rel), nil
}

const testSystemInfo = `
sensors:
  front_stereo_camera:
    type: hawk
    module_id: 5
  front_stereo_imu:
    type: hawk
  left_stereo_camera:
    type: hawk
    module_id: 3
  right_stereo_camera:
    type: hawk
    module_id: 4
  front_fisheye_camera:
    type: owl
    module_id: 5
    camera_id: 0
  front_2d_lidar:
    type: rplidar
    ip: 192.168.1.111
`

type fixture struct {
	share string
	ws    string
	b     *Bringup
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func newFixture(t *testing.T, withEngines bool) *fixture {
	t.Helper()
	f := &fixture{share: t.TempDir(), ws: t.TempDir()}
	if withEngines {
		touch(t, filepath.Join(f.ws, constants.ESSModelDir, constants.ESSFullEngineFile))
		touch(t, filepath.Join(f.ws, constants.ESSModelDir, constants.ESSLightEngineFile))
	}
	info, err := ParseSystemInfo([]byte(testSystemInfo))
	require.NoError(t, err)
	f.b = New(WithResolver(dirResolver(f.share)), WithIsaacRosWS(f.ws), WithSystemInfo(info))
	return f
}

func nodeNames(d *launch.Description) []string {
	return lo.Map(d.ComposableNodes(), func(n launch.ComposableNode, _ int) string {
		if n.Namespace != "" {
			return n.Namespace + "/" + n.Name
		}
		return n.Name
	})
}

func findNode(t *testing.T, d *launch.Description, name string) launch.ComposableNode {
	t.Helper()
	n, ok := lo.Find(d.ComposableNodes(), func(n launch.ComposableNode) bool { return n.Name == name })
	require.True(t, ok, "node %s not found in %v", name, nodeNames(d))
	return n
}

func hawksValues(front, back, left, right string) map[string]string {
	return map[string]string{
		"front_stereo_camera": front,
		"back_stereo_camera":  back,
		"left_stereo_camera":  left,
		"right_stereo_camera": right,
	}
}

func TestEntries(t *testing.T) {
	entries := Entries()
	assert.True(t, lo.Every(entries, []string{
		"perceptor", "perceptor_general", "rgbd_perceptor",
		"algorithms/hawks_processing", "algorithms/nvblox", "algorithms/vslam",
		"drivers/nova_sensor_abstraction_layer", "tools/visualization",
	}))
	assert.IsIncreasing(t, entries)
	assert.Equal(t, "launch/tools/rviz.launch.py", EntryFile("tools/rviz"))
}

func TestGenerate_UnknownEntry(t *testing.T) {
	_, err := New().Generate("does/not_exist", nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrUnknownLaunchEntry.Code))
}

func TestGenerate_NormalizesEntryName(t *testing.T) {
	d, err := New().Generate("launch/tools/foxglove_bridge.launch.py", nil)
	require.NoError(t, err)
	assert.Equal(t, "tools/foxglove_bridge", d.Name)

	decls := d.Find(launch.KindDeclareArgument)
	require.Len(t, decls, 2)
	assert.Equal(t, "send_buffer_limit", decls[0].(*launch.DeclareArgument).Name)
}

func TestGenerate_MissingRequiredArgument(t *testing.T) {
	_, err := New().Generate("algorithms/occupancy_map_server", nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingArgument.Code))
}

func TestHawksProcessing_ESSConflict(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.b.Generate("algorithms/hawks_processing", hawksValues("ess_full,ess_light", "", "", ""))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidCameraConfig.Code))
	assert.Contains(t, err.Error(), "Can not run ess_light and ess_full at the same time")
}

func TestHawksProcessing_MissingEngine(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.b.Generate("algorithms/hawks_processing", hawksValues("rectify,ess_full", "", "", ""))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingPath.Code))
	assert.Contains(t, err.Error(), "does not exist.")

	// No ESS requested, no engine needed.
	_, err = f.b.Generate("algorithms/hawks_processing", hawksValues("rectify", "", "", ""))
	assert.NoError(t, err)
}

func TestHawksProcessing_Pipeline(t *testing.T) {
	f := newFixture(t, true)
	d, err := f.b.Generate("algorithms/hawks_processing",
		hawksValues("driver,rectify,ess_light,ess_skip_frames", "", "rectify", ""))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"front_stereo_camera/left/rectify_node",
		"front_stereo_camera/right/rectify_node",
		"front_stereo_camera/ess_node",
		"front_stereo_camera/disparity_to_depth",
		"left_stereo_camera/left/rectify_node",
		"left_stereo_camera/right/rectify_node",
	}, nodeNames(d))

	ess := findNode(t, d, "ess_node")
	params := ess.Parameters[0].Values
	assert.Equal(t, 1, params["throttler_skip"])
	assert.Equal(t, filepath.Join(f.ws, constants.ESSModelDir, constants.ESSLightEngineFile), params["engine_file_path"])

	for _, a := range d.Find(launch.KindLoadComposableNodes) {
		assert.Equal(t, constants.DefaultContainerName, a.(*launch.LoadComposableNodes).TargetContainer)
	}
}

func TestHawksProcessing_NoSkipFrames(t *testing.T) {
	f := newFixture(t, true)
	d, err := f.b.Generate("algorithms/hawks_processing", hawksValues("ess_full", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 0, findNode(t, d, "ess_node").Parameters[0].Values["throttler_skip"])
}

func TestOwlsProcessing(t *testing.T) {
	d, err := New().Generate("algorithms/owls_processing", map[string]string{
		"enabled_fisheye_cameras": "left_fisheye_camera,front_fisheye_camera",
	})
	require.NoError(t, err)
	// Canonical order regardless of the list order.
	assert.Equal(t, []string{
		"front_fisheye_camera/front_fisheye_camera_resize_node",
		"left_fisheye_camera/left_fisheye_camera_resize_node",
	}, nodeNames(d))
}

func TestVslam(t *testing.T) {
	d, err := New().Generate("algorithms/vslam", map[string]string{
		"enabled_stereo_cameras_for_vslam": "front_stereo_camera,left_stereo_camera",
		"global_frame":                     "map",
	})
	require.NoError(t, err)

	node := findNode(t, d, "visual_slam_node")
	params := node.Parameters[0].Values
	assert.Equal(t, 4, params["num_cameras"])
	assert.Equal(t, "map", params["odom_frame"])
	assert.Contains(t, node.Remappings, launch.Remap("visual_slam/image_3", "/left_stereo_camera/right/image_raw"))
	assert.Contains(t, node.Remappings, launch.Remap("visual_slam/camera_info_0", "/front_stereo_camera/left/camera_info"))
	assert.Equal(t, []string{"Enabling vslam for cameras 'front_stereo_camera,left_stereo_camera'"}, d.Messages())

	_, err = New().Generate("algorithms/vslam", map[string]string{"enabled_stereo_cameras_for_vslam": ""})
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidLaunchConfig.Code))
}

func TestNvblox_InputChannels(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name    string
		cameras string
		wantErr string
	}{
		{name: "none", cameras: "", wantErr: "You need to provide at least one input channel"},
		{
			name:    "five",
			cameras: "front_stereo_camera,back_stereo_camera,left_stereo_camera,right_stereo_camera,front_stereo_camera",
			wantErr: "No more than 4 input channels must be provided",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.b.Generate("algorithms/nvblox", map[string]string{
				"enabled_stereo_cameras_for_nvblox":        tt.cameras,
				"enabled_stereo_cameras_for_nvblox_people": "",
			})
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidLaunchConfig.Code))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNvblox_PeopleSegmentation(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name    string
		people  string
		wantErr string
	}{
		{name: "two cameras", people: "front_stereo_camera,left_stereo_camera", wantErr: "only possible for one camera"},
		{name: "not front", people: "left_stereo_camera", wantErr: "only possible for the front stereo camera"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.b.Generate("algorithms/nvblox", map[string]string{
				"enabled_stereo_cameras_for_nvblox":        "front_stereo_camera,left_stereo_camera",
				"enabled_stereo_cameras_for_nvblox_people": tt.people,
			})
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidCameraConfig.Code))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	d, err := f.b.Generate("algorithms/nvblox", map[string]string{
		"enabled_stereo_cameras_for_nvblox":        "front_stereo_camera",
		"enabled_stereo_cameras_for_nvblox_people": "front_stereo_camera",
	})
	require.NoError(t, err)
	node := findNode(t, d, "nvblox_human_node")
	assert.Contains(t, node.Remappings, launch.Remap("camera_0/color/image", "/segmentation/image_resized"))
	assert.Len(t, node.Parameters, 5)
	incs := d.Includes()
	require.Len(t, incs, 1)
	assert.Equal(t, "nvblox_examples_bringup", incs[0].Package)
}

func TestNvblox_Plain(t *testing.T) {
	f := newFixture(t, false)
	d, err := f.b.Generate("algorithms/nvblox", map[string]string{
		"enabled_stereo_cameras_for_nvblox":        "front_stereo_camera,right_stereo_camera",
		"enabled_stereo_cameras_for_nvblox_people": "",
	})
	require.NoError(t, err)
	node := findNode(t, d, "nvblox_node")
	assert.Equal(t, filepath.Join(f.share, "nvblox_examples_bringup", "config/nvblox/nvblox_base.yaml"), node.Parameters[0].File)
	assert.Equal(t, 2, node.Parameters[2].Values["num_cameras"])
	assert.Contains(t, node.Remappings, launch.Remap("camera_1/color/image", "right_stereo_camera/left/image_rect"))
	assert.Empty(t, d.Includes())
}

func TestOccupancyMapServer(t *testing.T) {
	d, err := New().Generate("algorithms/occupancy_map_server", map[string]string{
		"occupancy_map_yaml_file": "/maps/omap.yaml",
	})
	require.NoError(t, err)
	timers := d.Find(launch.KindTimer)
	require.Len(t, timers, 1)
	assert.Equal(t, 5.0, timers[0].(*launch.Timer).Period)
	assert.Equal(t, []string{"Loading occupancy map file from '/maps/omap.yaml'"}, d.Messages())
}

func TestOccupancyGridLocalizer_ScanTopic(t *testing.T) {
	d, err := New().Generate("algorithms/occupancy_grid_localizer", map[string]string{
		"map_yaml_path":                "/maps/omap.yaml",
		"enable_3d_lidar_localization": "true",
	})
	require.NoError(t, err)
	node := findNode(t, d, "occupancy_grid_localizer")
	assert.Contains(t, node.Remappings, launch.Remap("flatscan", "/front_3d_lidar/flatscan"))

	_, err = New().Generate("algorithms/occupancy_grid_localizer", map[string]string{
		"map_yaml_path":                "/maps/omap.yaml",
		"enable_3d_lidar_localization": "maybe",
	})
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidArgument.Code))
}

func TestFoxgloveBridge_Whitelist(t *testing.T) {
	d, err := New().Generate("tools/foxglove_bridge", nil)
	require.NoError(t, err)
	nodes := d.Find(launch.KindNode)
	require.Len(t, nodes, 1)
	params := nodes[0].(*launch.Node).Parameters[0].Values
	assert.Equal(t, 10000000, params["send_buffer_limit"])
	whitelist := params["topic_whitelist"].([]string)
	assert.Contains(t, whitelist, "/front_stereo_camera/depth")
	assert.Contains(t, whitelist, "/right_stereo_camera/left/image_resized")

	d, err = New().Generate("tools/foxglove_bridge", map[string]string{"use_foxglove_whitelist": "False"})
	require.NoError(t, err)
	assert.NotContains(t, d.Find(launch.KindNode)[0].(*launch.Node).Parameters[0].Values, "topic_whitelist")
}

func TestTopicWhitelist_IsCopy(t *testing.T) {
	first := TopicWhitelist()
	first[0] = "changed"
	assert.NotEqual(t, "changed", TopicWhitelist()[0])
	assert.Len(t, first, len(topicWhitelist)+8)
}

func TestRviz(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.b.Generate("tools/rviz", map[string]string{"enable_people_segmentation": "True"})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingPath.Code))

	config := filepath.Join(f.share, constants.PackageName, "params", "perceptor_people.rviz")
	touch(t, config)
	d, err := f.b.Generate("tools/rviz", map[string]string{"enable_people_segmentation": "True"})
	require.NoError(t, err)
	node := d.Find(launch.KindNode)[0].(*launch.Node)
	assert.Equal(t, []string{"-d", config, "-f", "odom"}, node.Arguments)
}

func TestVisualization(t *testing.T) {
	d, err := New().Generate("tools/visualization", map[string]string{
		"use_foxglove_whitelist":     "False",
		"enable_people_segmentation": "False",
	})
	require.NoError(t, err)
	incs := d.Includes()
	require.Len(t, incs, 1)
	assert.Equal(t, "launch/tools/foxglove_bridge.launch.py", incs[0].File)
	assert.Equal(t, map[string]string{"use_foxglove_whitelist": "False"}, incs[0].Arguments)

	d, err = New().Generate("tools/visualization", map[string]string{
		"use_foxglove_whitelist":     "False",
		"enable_people_segmentation": "False",
		"run_foxglove":               "False",
	})
	require.NoError(t, err)
	assert.Empty(t, d.Includes())
}

func TestHawksDriver_SkipsSensorsWithoutModule(t *testing.T) {
	f := newFixture(t, false)
	d, err := f.b.Generate("drivers/hawks", map[string]string{
		"enabled_stereo_cameras": "front_stereo_camera,front_stereo_imu,right_stereo_camera",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"front_stereo_camera/front_stereo_camera_node",
		"right_stereo_camera/right_stereo_camera_node",
	}, nodeNames(d))
	assert.Equal(t, 5, findNode(t, d, "front_stereo_camera_node").Parameters[0].Values["module_id"])
}

func TestRplidars(t *testing.T) {
	f := newFixture(t, false)
	d, err := f.b.Generate("drivers/rplidars", map[string]string{"enabled_2d_lidars": "front_2d_lidar"})
	require.NoError(t, err)
	nodes := d.Find(launch.KindNode)
	require.Len(t, nodes, 1)
	node := nodes[0].(*launch.Node)
	assert.Equal(t, "192.168.1.111", node.Parameters[0].Values["udp_ip"])
	assert.True(t, node.ShutdownOnExit)
}

func TestNovaSensorDrivers_ConditionalIncludes(t *testing.T) {
	f := newFixture(t, false)
	d, err := f.b.Generate("drivers/nova_sensor_drivers", map[string]string{
		"enable_3d_lidar":         "True",
		"enabled_2d_lidars":       "",
		"enabled_stereo_cameras":  "front_stereo_camera",
		"enabled_fisheye_cameras": "None",
		"container_name":          "my_container",
	})
	require.NoError(t, err)

	var files []string
	for _, a := range d.Actions {
		if inc, ok := a.(*launch.Include); ok {
			files = append(files, inc.File)
		}
	}
	assert.Equal(t, []string{
		"launch/drivers/correlated_timestamp_driver.launch.py",
		"launch/drivers/hesai.launch.py",
		"launch/drivers/hawks.launch.py",
	}, files)
	for _, a := range d.Find(launch.KindLoadComposableNodes) {
		assert.Equal(t, "my_container", a.(*launch.LoadComposableNodes).TargetContainer)
	}
}

func TestUnionLists(t *testing.T) {
	assert.Equal(t, "a,b,c", unionLists("a,b", "b, c", ""))
	assert.Equal(t, "", unionLists("", ""))
}

func TestNovaSensorAbstractionLayer_Modes(t *testing.T) {
	f := newFixture(t, false)
	base := map[string]string{
		"rosbag":                      "/bags/run1",
		"enabled_stereo_cameras":      "front_stereo_camera",
		"type_negotiation_duration_s": "5",
	}

	d, err := f.b.Generate("drivers/nova_sensor_abstraction_layer", launch.Merge(base, map[string]string{"mode": "rosbag"}))
	require.NoError(t, err)
	incs := d.Includes()
	require.Len(t, incs, 1)
	assert.Equal(t, "isaac_ros_data_replayer", incs[0].Package)
	assert.Equal(t, "/bags/run1", incs[0].Arguments["rosbag"])
	assert.Nil(t, incs[0].Description)

	d, err = f.b.Generate("drivers/nova_sensor_abstraction_layer", launch.Merge(base, map[string]string{"mode": "simulation"}))
	require.NoError(t, err)
	assert.Empty(t, d.Includes())

	_, err = f.b.Generate("drivers/nova_sensor_abstraction_layer", launch.Merge(base, map[string]string{"mode": "mars"}))
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidArgument.Code))
}

func TestPerceptor_EndToEnd(t *testing.T) {
	f := newFixture(t, true)
	d, err := f.b.Generate("perceptor", map[string]string{
		"stereo_camera_configuration": perceptor.FrontConfiguration,
		"disable_nvblox":              "True",
		"container_name":              "robot_container",
	})
	require.NoError(t, err)

	assert.Contains(t, d.Messages(), "Disabling nvblox.")
	names := nodeNames(d)
	assert.Contains(t, names, "front_stereo_camera/front_stereo_camera_node")
	assert.Contains(t, names, "visual_slam_node")
	assert.Contains(t, names, "front_stereo_camera/left/rectify_node")
	// Disabling nvblox drops ESS too.
	assert.NotContains(t, names, "front_stereo_camera/ess_node")
	assert.NotContains(t, names, "nvblox_node")

	// Every include inherits the container chosen at the top.
	for _, a := range d.Find(launch.KindLoadComposableNodes) {
		assert.Equal(t, "robot_container", a.(*launch.LoadComposableNodes).TargetContainer)
	}
	containers := d.Find(launch.KindComposableNodeContainer)
	require.Len(t, containers, 1)
	assert.Equal(t, "robot_container", containers[0].(*launch.ComposableNodeContainer).Name)
}

func TestPerceptor_RosbagModeNeedsBag(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.b.Generate("perceptor", map[string]string{"mode": "rosbag"})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingArgument.Code))

	d, err := f.b.Generate("perceptor", map[string]string{"mode": "rosbag", "rosbag": "/bags/run1"})
	require.NoError(t, err)
	replayer, ok := lo.Find(d.Includes(), func(i *launch.Include) bool { return i.Package == "isaac_ros_data_replayer" })
	require.True(t, ok)
	assert.Equal(t, "front_stereo_camera,left_stereo_camera,right_stereo_camera", replayer.Arguments["enabled_stereo_cameras"])
}

func TestPerceptor_UnknownPreset(t *testing.T) {
	_, err := New().Generate("perceptor", map[string]string{"stereo_camera_configuration": "nope"})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidArgument.Code))
}

func TestPerceptorGeneral_InlineConfiguration(t *testing.T) {
	f := newFixture(t, true)
	d, err := f.b.Generate("perceptor_general", map[string]string{
		"perceptor_configuration": `{"front_stereo_camera": "rectify,cuvslam"}`,
		"enabled_fisheye_cameras": "",
	})
	require.NoError(t, err)
	assert.Contains(t, nodeNames(d), "visual_slam_node")
	assert.Empty(t, lo.Filter(d.Includes(), func(i *launch.Include, _ int) bool {
		return i.File == EntryFile("algorithms/nvblox")
	}))

	_, err = f.b.Generate("perceptor_general", map[string]string{"enabled_fisheye_cameras": ""})
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingArgument.Code))
}

func TestSystemInfo_KeepsFileOrder(t *testing.T) {
	info, err := ParseSystemInfo([]byte(testSystemInfo))
	require.NoError(t, err)
	hawks := info.OfType(SensorTypeHawk)
	assert.Equal(t, []string{"front_stereo_camera", "front_stereo_imu", "left_stereo_camera", "right_stereo_camera"},
		lo.Map(hawks, func(s Sensor, _ int) string { return s.Name }))
	assert.Nil(t, hawks[1].ModuleID)

	_, err = LoadSystemInfo(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingPath.Code))
}
