package constants

import "time"

// PackageName is the ROS package this repository generates launch graphs for.
const PackageName = "isaac_ros_perceptor_bringup"

const (
	DefaultContainerName  = "nova_container"
	DefaultSystemInfoPath = "/etc/nova/systeminfo.yaml"
	DefaultIsaacRosWS     = "/workspaces/isaac_ros-dev"
	DefaultMapsFolder     = "/mnt/nova_ssd/maps"
)

// Hawk stereo camera native resolution.
const (
	HawkImageWidth  = 1920
	HawkImageHeight = 1200
)

// Owl fisheye output after resize.
const (
	OwlResizedWidth  = 192
	OwlResizedHeight = 120
)

const (
	ESSModelDir        = "isaac_ros_assets/models/dnn_stereo_disparity/dnn_stereo_disparity_v4.0.0"
	ESSFullEngineFile  = "ess.engine"
	ESSLightEngineFile = "light_ess.engine"
	ESSThreshold       = 0.4
)

const (
	RecorderReadyMarker  = "Recording..."
	RecorderReadyTimeout = 30 * time.Second
	PoseTopic            = "/visual_slam/vis/slam_odometry"
	TimestampLayout      = "2006-01-02_15-04-05"
	TailLines            = 10
)

const LifecycleManagerDelay = 5 * time.Second
