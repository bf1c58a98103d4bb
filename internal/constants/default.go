package constants

import "time"

const (
	DefaultHTTPPort       = 8080
	DefaultGRPCPort       = 7070
	DefaultMonitoringPort = 6060
)

const (
	DefaultHTTPRequestTimeout = 10
	GraceWaitPeriod           = 10 * time.Second
)

const (
	MqttDefaultWriteTimeout         = 10 * time.Second
	MqttDefaultKeepAlive            = 30 * time.Second
	MqttDefaultPingTimeout          = 5 * time.Second
	MqttDefaultMaxReconnectInterval = 30 * time.Second
	MqttDefaultConnectTimeout       = 10 * time.Second
	MqttDefaultConnectRetryInterval = 10 * time.Second
)
