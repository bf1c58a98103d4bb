package mqtt_client

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Options configures the broker connection used for progress events.
type Options struct {
	CleanSession         bool
	AutoReconnect        bool
	ConnectRetry         bool
	ResumeSubs           bool
	TLSInsecureSkip      bool
	TLSConfig            *tls.Config
	WriteTimeout         time.Duration
	KeepAlive            time.Duration
	PingTimeout          time.Duration
	MaxReconnectInterval time.Duration
	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration
	// Will is published by the broker when the connection drops.
	WillTopic   string
	WillPayload string
}

type Option func(*Options)

func WithAutoReconnect(v bool) Option {
	return func(o *Options) {
		o.AutoReconnect = v
	}
}

func WithTLSInsecureSkipVerify(v bool) Option {
	return func(o *Options) {
		o.TLSInsecureSkip = v
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) {
		o.TLSConfig = cfg
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

// WithWill registers a last will message, e.g. an offline marker on the
// progress topic.
func WithWill(topic, payload string) Option {
	return func(o *Options) {
		o.WillTopic, o.WillPayload = topic, payload
	}
}

func boolOr(key string, def bool) bool {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetBool(key)
}

// durationOr accepts "10s", "500ms" or a bare number of seconds.
func durationOr(key string, def time.Duration) time.Duration {
	d, err := utilities.ParseOrDefault(viper.GetString(key), def)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func optionsFromViper() Options {
	return Options{
		CleanSession:         boolOr(config.MqttCleanSession, true),
		AutoReconnect:        boolOr(config.MqttAutoReconnect, true),
		ConnectRetry:         boolOr(config.MqttConnectRetry, true),
		ResumeSubs:           boolOr(config.MqttResumeSubs, true),
		TLSInsecureSkip:      boolOr(config.MqttTLSInsecureSkipVerify, false),
		WriteTimeout:         durationOr(config.MqttWriteTimeout, constants.MqttDefaultWriteTimeout),
		KeepAlive:            durationOr(config.MqttKeepAliveDuration, constants.MqttDefaultKeepAlive),
		PingTimeout:          durationOr(config.MqttPingTimeout, constants.MqttDefaultPingTimeout),
		MaxReconnectInterval: durationOr(config.MqttMaxConnectInterval, constants.MqttDefaultMaxReconnectInterval),
		ConnectTimeout:       durationOr(config.MqttConnectTimeout, constants.MqttDefaultConnectTimeout),
		ConnectRetryInterval: durationOr(config.MqttConnectRetryInterval, constants.MqttDefaultConnectRetryInterval),
	}
}

func isSecureScheme(endpoint string) bool {
	s := strings.ToLower(endpoint)
	for _, scheme := range []string{"mqtts://", "ssl://", "tls://", "wss://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func clientOptions(endpoint, clientID string, conf Options) *mqtt.ClientOptions {
	logger := log.Default().Named("mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(clientID).
		SetCleanSession(conf.CleanSession).
		SetAutoReconnect(conf.AutoReconnect).
		SetConnectRetry(conf.ConnectRetry).
		SetConnectRetryInterval(conf.ConnectRetryInterval).
		SetMaxReconnectInterval(conf.MaxReconnectInterval).
		SetWriteTimeout(conf.WriteTimeout).
		SetKeepAlive(conf.KeepAlive).
		SetPingTimeout(conf.PingTimeout).
		SetResumeSubs(conf.ResumeSubs).
		SetConnectTimeout(conf.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn(fmt.Sprintf("Lost connection to %s: %v", endpoint, err))
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			logger.Info(fmt.Sprintf("Reconnecting to %s", endpoint))
		})

	switch {
	case conf.TLSConfig != nil:
		opts.SetTLSConfig(conf.TLSConfig)
	case isSecureScheme(endpoint):
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: conf.TLSInsecureSkip}) // #nosec G402
	}
	if conf.WillTopic != "" {
		opts.SetWill(conf.WillTopic, conf.WillPayload, 1, true)
	}
	return opts
}

var (
	once    sync.Once
	client  mqtt.Client
	initErr error
)

// NewMQTTClient connects the process-wide client. Later calls return the
// first call's error.
func NewMQTTClient(endpoint, clientID string, optFns ...Option) error {
	once.Do(func() {
		conf := optionsFromViper()
		for _, fn := range optFns {
			fn(&conf)
		}

		c := mqtt.NewClient(clientOptions(endpoint, clientID, conf))
		tok := c.Connect()
		if !tok.WaitTimeout(conf.ConnectTimeout) {
			initErr = errors.Errorf("mqtt connect timeout after %s", conf.ConnectTimeout)
			return
		}
		if err := tok.Error(); err != nil {
			initErr = errors.Wrap(err, "mqtt connect error")
			return
		}
		client = c
	})
	return initErr
}

// Client returns the connected client, nil when NewMQTTClient was never
// called or failed.
func Client() mqtt.Client {
	return client
}
