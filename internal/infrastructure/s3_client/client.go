package s3_client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

var (
	client  *s3.Client
	once    sync.Once
	initErr error
)

// Options configures the map upload client. Endpoint and UsePathStyle
// target MinIO or other on-prem stores.
type Options struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Endpoint         string
	UsePathStyle     bool
	HTTPClient       *http.Client
	RetryMaxAttempts int
	RetryMaxBackoff  time.Duration
}

type Option func(*Options)

func WithRegion(r string) Option {
	return func(o *Options) {
		o.Region = r
	}
}

// WithStaticCredentials skips the default credential chain when id is set.
func WithStaticCredentials(id, secret, token string) Option {
	return func(o *Options) {
		o.AccessKeyID, o.SecretAccessKey, o.SessionToken = id, secret, token
	}
}

func WithEndpoint(endpoint string, pathStyle bool) Option {
	return func(o *Options) {
		o.Endpoint, o.UsePathStyle = endpoint, pathStyle
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = h
	}
}

func WithRetry(maxAttempts int, maxBackoff time.Duration) Option {
	return func(o *Options) {
		o.RetryMaxAttempts, o.RetryMaxBackoff = maxAttempts, maxBackoff
	}
}

// Client returns the shared client, nil before NewS3Client succeeded.
func Client() *s3.Client {
	return client
}

// NewS3Client builds the process-wide client once. Later calls return the
// first call's error.
func NewS3Client(ctx context.Context, opts ...Option) error {
	once.Do(func() {
		conf := Options{}
		for _, fn := range opts {
			fn(&conf)
		}
		client, initErr = newClient(ctx, conf)
	})
	return initErr
}

func newClient(ctx context.Context, conf Options) (*s3.Client, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if conf.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(conf.Region))
	}
	if conf.HTTPClient != nil {
		loadOpts = append(loadOpts, awscfg.WithHTTPClient(conf.HTTPClient))
	}
	if conf.AccessKeyID != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.SecretAccessKey, conf.SessionToken),
		)))
	}
	if conf.RetryMaxAttempts > 0 || conf.RetryMaxBackoff > 0 {
		loadOpts = append(loadOpts, awscfg.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				if conf.RetryMaxAttempts > 0 {
					o.MaxAttempts = conf.RetryMaxAttempts
				}
				if conf.RetryMaxBackoff > 0 {
					o.MaxBackoff = conf.RetryMaxBackoff
				}
			})
		}))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	}), nil
}
