package bringup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/launch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRGBDConfig = `
nvblox_config:
  config_files:
    - path: params/nvblox_rgbd.yaml
  parameters:
    - voxel_size: 0.05
  remappings:
    - depth:
        image: /camera/depth/image_rect_raw
        info: /camera/depth/camera_info
      color:
        image: /camera/color/image_raw
        info: /camera/color/camera_info
cuvslam_config:
  attach_to_container: true
  container_name: nvblox_container
  remappings:
    imu: /camera/imu
    stereo_images:
      - left:
          image: /camera/infra1/image_rect_raw
          info: /camera/infra1/camera_info
          optical_frame: camera_infra1_optical_frame
        right:
          image: /camera/infra2/image_rect_raw
          info: /camera/infra2/camera_info
          optical_frame: camera_infra2_optical_frame
common_config:
  robot_frame: base_link
  odom_frame: odom
urdf_transforms: /etc/robot/calibration.urdf
extra_topics:
  - /tf
  - /camera/imu
`

func writeRGBDConfig(t *testing.T, f *fixture, content string) string {
	t.Helper()
	path := filepath.Join(f.share, constants.PackageName, "params", "my_rgbd_perceptor.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRGBDPerceptor(t *testing.T) {
	f := newFixture(t, false)
	writeRGBDConfig(t, f, testRGBDConfig)

	d, err := f.b.Generate("rgbd_perceptor", map[string]string{"log_level": "debug"})
	require.NoError(t, err)

	containers := d.Find(launch.KindComposableNodeContainer)
	require.Len(t, containers, 1)
	c := containers[0].(*launch.ComposableNodeContainer)
	assert.Equal(t, "nvblox_container", c.Name)
	assert.Equal(t, []string{"--ros-args", "--log-level", "debug"}, c.Arguments)

	nv := findNode(t, d, "nvblox_node")
	require.Len(t, nv.Parameters, 8)
	assert.Equal(t, filepath.Join(f.share, constants.PackageName, "params/nvblox_rgbd.yaml"), nv.Parameters[0].File)
	assert.Equal(t, 1, nv.Parameters[2].Values["num_cameras"])
	assert.Equal(t, "odom", nv.Parameters[6].Values["global_frame"])
	assert.Contains(t, nv.Remappings, launch.Remap("camera_0/color/image", "/camera/color/image_raw"))

	loads := d.Find(launch.KindLoadComposableNodes)
	require.Len(t, loads, 1)
	assert.Equal(t, "nvblox_container", loads[0].(*launch.LoadComposableNodes).TargetContainer)

	vs := findNode(t, d, "cuvslam_node")
	assert.Equal(t, true, vs.Parameters[0].Values["enable_imu_fusion"])
	assert.Equal(t, 2, vs.Parameters[1].Values["num_cameras"])
	assert.Equal(t, []string{"camera_infra1_optical_frame", "camera_infra2_optical_frame"}, vs.Parameters[3].Values["camera_optical_frames"])
	assert.Contains(t, vs.Remappings, launch.Remap("visual_slam/image_1", "/camera/infra2/image_rect_raw"))
	assert.Contains(t, vs.Remappings, launch.Remap("visual_slam/imu", "/camera/imu"))

	robots := d.Find(launch.KindRobotDescription)
	require.Len(t, robots, 1)
	assert.Equal(t, "/etc/robot/calibration.urdf", robots[0].(*launch.RobotDescription).CalibrationPath)

	incs := d.Includes()
	require.NotEmpty(t, incs)
	assert.Equal(t, EntryFile("tools/visualization"), incs[0].File)
	assert.Equal(t, "False", incs[0].Arguments["enable_people_segmentation"])
}

func TestRGBDPerceptor_Disable(t *testing.T) {
	f := newFixture(t, false)
	writeRGBDConfig(t, f, testRGBDConfig)

	d, err := f.b.Generate("rgbd_perceptor", map[string]string{"disable_nvblox": "True", "disable_cuvslam": "True"})
	require.NoError(t, err)
	assert.Empty(t, d.ComposableNodes())
}

func TestRGBDPerceptor_Recording(t *testing.T) {
	f := newFixture(t, false)
	writeRGBDConfig(t, f, testRGBDConfig)

	d, err := f.b.Generate("rgbd_perceptor", map[string]string{"rosbag_output": "/bags/rgbd"})
	require.NoError(t, err)
	assert.Empty(t, d.ComposableNodes())

	bags := d.Find(launch.KindRecordBag)
	require.Len(t, bags, 1)
	bag := bags[0].(*launch.RecordBag)
	assert.Equal(t, "/bags/rgbd", bag.Output)
	assert.Equal(t, []string{
		"/tf",
		"/camera/imu",
		"/camera/depth/image_rect_raw",
		"/camera/depth/camera_info",
		"/camera/color/image_raw",
		"/camera/color/camera_info",
		"/camera/infra1/image_rect_raw",
		"/camera/infra1/camera_info",
		"/camera/infra2/image_rect_raw",
		"/camera/infra2/camera_info",
	}, bag.Topics)
	assert.Contains(t, d.Messages()[0], "BAG RECORDING IS STARTING NOW")
	assert.Contains(t, d.Messages()[0], " - /camera/infra2/camera_info")
}

func TestRGBDPerceptor_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "no nvblox channel",
			config:  "nvblox_config:\n  remappings: []\n",
			wantErr: "You need to provide at least one input channel",
		},
		{
			name: "too many nvblox channels",
			config: "nvblox_config:\n  remappings:\n" +
				"    - {}\n    - {}\n    - {}\n    - {}\n    - {}\n",
			wantErr: "No more than 4 input channels must be provided",
		},
		{
			name:    "config file without path",
			config:  "nvblox_config:\n  config_files:\n    - package: foo\n  remappings:\n    - {}\n",
			wantErr: "No `path` provided in config_files",
		},
		{
			name:    "no stereo pair",
			config:  "cuvslam_config:\n  remappings:\n    stereo_images: []\n",
			wantErr: "You need to provide at least one input image pair",
		},
		{
			name: "missing right image",
			config: "cuvslam_config:\n  remappings:\n    stereo_images:\n" +
				"      - left: {image: a, info: b, optical_frame: c}\n        right: {info: b, optical_frame: c}\n",
			wantErr: "`image` is missing in the right field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			writeRGBDConfig(t, f, tt.config)
			_, err := f.b.Generate("rgbd_perceptor", nil)
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidLaunchConfig.Code))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRGBDPerceptor_MissingConfigFile(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.b.Generate("rgbd_perceptor", map[string]string{"config_file": filepath.Join(f.share, "absent.yaml")})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrMissingPath.Code))
}

func TestRGBDPerceptor_LogLevelChoice(t *testing.T) {
	_, err := New().Generate("rgbd_perceptor", map[string]string{"log_level": "trace"})
	assert.True(t, cerrors.IsCode(err, cerrors.ErrInvalidArgument.Code))
}
