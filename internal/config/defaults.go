package config

import (
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/spf13/viper"
)

func setDefaults() {
	viper.SetDefault(BringupLogLevel, "info")
	viper.SetDefault(BringupLogFormat, "json")
	viper.SetDefault(BringupHTTPPort, constants.DefaultHTTPPort)
	viper.SetDefault(BringupGRPCPort, constants.DefaultGRPCPort)
	viper.SetDefault(BringupMonitoringPort, constants.DefaultMonitoringPort)
	viper.SetDefault(BringupHTTPRequestTimeout, constants.DefaultHTTPRequestTimeout)
	viper.SetDefault(BringupHTTPMode, "release")

	viper.SetDefault(RosSystemInfoPath, constants.DefaultSystemInfoPath)
	viper.SetDefault(RosIsaacRosWS, constants.DefaultIsaacRosWS)

	viper.SetDefault(MappingBaseOutputFolder, constants.DefaultMapsFolder)
	viper.SetDefault(MappingRecorderTimeout, constants.RecorderReadyTimeout)

	viper.SetDefault(MqttProgressTopic, "perceptor/mapping/progress")
	viper.SetDefault(S3Prefix, "maps")
	viper.SetDefault(TracingServiceName, "perceptor-bringup")
}
