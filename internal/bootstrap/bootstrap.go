// Package bootstrap wires configuration, logging and the optional external
// services shared by the bringup server and the perceptor CLI.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/bringup"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/local_cache"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/mqtt_client"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/package_resolver"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/s3_client"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/tracer_client"
	"github.com/okieraised/perceptor-bringup/internal/mapping"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Init loads configuration, then initializes the default logger, the local
// cache and the global package resolver.
func Init(opts config.LoadOptions) error {
	if err := config.Load(opts); err != nil {
		return errors.Wrap(err, "failed to setup service configuration")
	}
	if err := log.InitDefault(); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	log.Default().Info("Started initializing local cache")
	if err := local_cache.NewLocalCache(); err != nil {
		return errors.Wrap(err, "failed to initialize local cache")
	}
	log.Default().Info("Finished initializing local cache")

	package_resolver.NewGlobal(
		viper.GetString(config.RosAmentPrefixPath),
		package_resolver.WithCache(local_cache.Cache()),
	)
	return nil
}

// External holds the optional clients enabled in configuration. Shutdown
// releases whatever was started.
type External struct {
	shutdownTracer func(ctx context.Context) error
	mqttEnabled    bool
	s3Enabled      bool
}

// InitExternal connects to S3, the MQTT broker and the tracing collector
// when their bringup.enable_* keys are set.
func InitExternal(ctx context.Context) (*External, error) {
	ext := &External{}

	if viper.GetBool(config.BringupEnableS3) {
		log.Default().Info("Started initializing client connection to external S3 storage")
		err := s3_client.NewS3Client(
			ctx,
			s3_client.WithRegion(viper.GetString(config.S3Region)),
			s3_client.WithEndpoint(viper.GetString(config.S3Endpoint), viper.GetBool(config.S3UsePathStyle)),
			s3_client.WithStaticCredentials(viper.GetString(config.S3AccessKey), viper.GetString(config.S3SecretKey), ""),
			s3_client.WithRetry(5, 30*time.Second),
			s3_client.WithHTTPClient(
				&http.Client{
					Transport: &http.Transport{
						TLSClientConfig: &tls.Config{
							InsecureSkipVerify: viper.GetBool(config.S3TLSInsecureSkipVerify), // #nosec G402
						},
					},
				},
			),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize client connection to external S3 storage")
		}
		ext.s3Enabled = true
		log.Default().Info("Finished initializing client connection to external S3 storage")
	}

	if viper.GetBool(config.BringupEnableMQTT) {
		log.Default().Info("Started initializing client connection to MQTT broker")
		clientID := viper.GetString(config.MqttClientId)
		if clientID == "" {
			host, _ := os.Hostname()
			clientID = fmt.Sprintf("perceptor-bringup-%s", host)
		}
		err := mqtt_client.NewMQTTClient(
			viper.GetString(config.MqttEndpoint),
			clientID,
			mqtt_client.WithAutoReconnect(viper.GetBool(config.MqttAutoReconnect)),
			mqtt_client.WithTLSInsecureSkipVerify(viper.GetBool(config.MqttTLSInsecureSkipVerify)),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize client connection to MQTT broker")
		}
		ext.mqttEnabled = true
		log.Default().Info("Finished initializing client connection to MQTT broker")
	}

	if viper.GetBool(config.BringupEnableTracing) {
		log.Default().Info("Started initializing OTEL tracer")
		host, _ := os.Hostname()
		shutdown, err := tracer_client.NewTracerClient(
			tracer_client.WithEndpoint(viper.GetString(config.TracingEndpoint)),
			tracer_client.WithInsecure(viper.GetBool(config.TracingInsecure)),
			tracer_client.WithServiceName(viper.GetString(config.TracingServiceName)),
			tracer_client.WithHostName(host),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize OTEL tracer")
		}
		ext.shutdownTracer = shutdown
		log.Default().Info("Finished initializing OTEL tracer")
	}

	return ext, nil
}

// Shutdown flushes traces and disconnects from the broker.
func (e *External) Shutdown(ctx context.Context) error {
	var errs error
	if e.shutdownTracer != nil {
		errs = multierr.Append(errs, e.shutdownTracer(ctx))
	}
	if e.mqttEnabled {
		if c := mqtt_client.Client(); c != nil {
			c.Disconnect(250)
		}
	}
	return errs
}

// MappingOptions returns the builder options backed by the enabled
// external services. Progress goes to the MQTT broker when enabled and to
// every extra publisher.
func (e *External) MappingOptions(extra ...mapping.Publisher) []mapping.Option {
	opts := []mapping.Option{
		mapping.WithResolver(package_resolver.Global()),
		mapping.WithTracer(tracer_client.Tracer("perceptor/mapping")),
	}
	// bare numbers are seconds
	d, err := utilities.ParseOrDefault(viper.GetString(config.MappingRecorderTimeout), 0)
	if err != nil {
		log.Default().Warn(fmt.Sprintf("Ignoring %s: %v", config.MappingRecorderTimeout, err))
	} else if d > 0 {
		opts = append(opts, mapping.WithRecorderTimeout(d))
	}
	publishers := append([]mapping.Publisher{}, extra...)
	if e.mqttEnabled && mqtt_client.Client() != nil {
		publishers = append(publishers,
			mqtt_client.NewPublisher(mqtt_client.Client(), viper.GetString(config.MqttProgressTopic)),
		)
	}
	if len(publishers) > 0 {
		opts = append(opts, mapping.WithPublisher(mapping.Publishers(publishers...)))
	}
	if e.s3Enabled && viper.GetBool(config.MappingUploadOnFinish) && s3_client.Client() != nil {
		opts = append(opts, mapping.WithUploader(
			s3_client.NewUploader(s3_client.Client(), viper.GetString(config.S3Bucket)),
			viper.GetString(config.S3Prefix),
		))
	}
	return opts
}

// NewBringup builds a launch graph generator from configuration.
func NewBringup() *bringup.Bringup {
	opts := []bringup.Option{
		bringup.WithResolver(package_resolver.Global()),
		bringup.WithIsaacRosWS(viper.GetString(config.RosIsaacRosWS)),
	}
	if p := viper.GetString(config.RosSystemInfoPath); p != "" {
		opts = append(opts, bringup.WithSystemInfoPath(p))
	}
	return bringup.New(opts...)
}
