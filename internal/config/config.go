package config

const (
	BringupEnableMonitoring   = "bringup.enable_monitoring"
	BringupMonitoringPort     = "bringup.monitoring_port"
	BringupLogLevel           = "bringup.log_level"
	BringupLogFormat          = "bringup.log_format"
	BringupHTTPPort           = "bringup.http_port"
	BringupHTTPMode           = "bringup.http_mode"
	BringupHTTPRequestTimeout = "bringup.http_request_timeout"
	BringupGRPCPort           = "bringup.grpc_port"
	BringupTLSCertFile        = "bringup.tls_cert_file"
	BringupTLSKeyFile         = "bringup.tls_key_file"
	BringupTLSClientCAFile    = "bringup.tls_client_ca_file"
	BringupEnableMQTT         = "bringup.enable_mqtt"
	BringupEnableTracing      = "bringup.enable_tracing"
	BringupEnableS3           = "bringup.enable_s3"
	BringupSerialNumber       = "bringup.serial_number"
)

const (
	RosAmentPrefixPath = "ros.ament_prefix_path"
	RosIsaacRosWS      = "ros.isaac_ros_ws"
	RosSystemInfoPath  = "ros.system_info_path"
)

const (
	MappingBaseOutputFolder = "mapping.base_output_folder"
	MappingRecorderTimeout  = "mapping.recorder_timeout"
	MappingUploadOnFinish   = "mapping.upload_on_finish"
)

const (
	MqttEndpoint              = "mqtt.endpoint"
	MqttCleanSession          = "mqtt.clean_session"
	MqttClientId              = "mqtt.client_id"
	MqttAutoReconnect         = "mqtt.auto_reconnect"
	MqttConnectRetry          = "mqtt.connect_retry"
	MqttMaxConnectInterval    = "mqtt.max_connect_interval"
	MqttWriteTimeout          = "mqtt.write_timeout"
	MqttPingTimeout           = "mqtt.ping_timeout"
	MqttKeepAliveDuration     = "mqtt.keep_alive_duration"
	MqttResumeSubs            = "mqtt.resume_subs"
	MqttConnectTimeout        = "mqtt.connect_timeout"
	MqttConnectRetryInterval  = "mqtt.connect_retry_interval"
	MqttTLSInsecureSkipVerify = "mqtt.tls_insecure_skip_verify"
	MqttProgressTopic         = "mqtt.progress_topic"
)

const (
	S3Region                = "s3.region"
	S3Endpoint              = "s3.endpoint"
	S3AccessKey             = "s3.access_key"
	S3SecretKey             = "s3.secret_key"
	S3UsePathStyle          = "s3.use_path_style"
	S3TLSInsecureSkipVerify = "s3.tls_insecure_skip_verify"
	S3Bucket                = "s3.bucket"
	S3Prefix                = "s3.prefix"
)

const (
	TracingEndpoint    = "tracing.endpoint"
	TracingServiceName = "tracing.service_name"
	TracingInsecure    = "tracing.insecure"
)
