package tracer_client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

var (
	mu   sync.RWMutex
	tp   *sdktrace.TracerProvider
	once sync.Once
)

// Options configures NewTracerClient.
type Options struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	HostName    string
	Timeout     time.Duration
	// Exporter replaces the OTLP exporter, mostly for tests.
	Exporter sdktrace.SpanExporter
}

type Option func(*Options)

func WithEndpoint(ep string) Option {
	return func(o *Options) { o.Endpoint = ep }
}

func WithInsecure(insecure bool) Option {
	return func(o *Options) { o.Insecure = insecure }
}

func WithServiceName(name string) Option {
	return func(o *Options) { o.ServiceName = name }
}

// WithHostName tags spans with the robot host name.
func WithHostName(name string) Option {
	return func(o *Options) { o.HostName = name }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *Options) { o.Exporter = exp }
}

// NewTracerClient installs the global tracer provider once and returns its
// shutdown function.
func NewTracerClient(opts ...Option) (func(ctx context.Context) error, error) {
	var initErr error
	once.Do(func() {
		opt := Options{}
		for _, o := range opts {
			o(&opt)
		}

		if opt.Timeout <= 0 {
			opt.Timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
		defer cancel()

		exp := opt.Exporter
		if exp == nil {
			grpcOpts := []grpc.DialOption{
				grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
			}
			if opt.Insecure {
				grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
			}
			otlp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(opt.Endpoint),
				otlptracegrpc.WithDialOption(grpcOpts...),
			))
			if err != nil {
				initErr = errors.Wrap(err, "failed to create otlp trace exporter")
				return
			}
			exp = otlp
		}

		attrs := []attribute.KeyValue{semconv.ServiceName(opt.ServiceName)}
		if opt.HostName != "" {
			attrs = append(attrs, semconv.HostName(opt.HostName))
		}
		res, err := resource.New(ctx,
			resource.WithFromEnv(),
			resource.WithProcess(),
			resource.WithTelemetrySDK(),
			resource.WithAttributes(attrs...),
		)
		if err != nil {
			initErr = errors.Wrap(err, "failed to create trace resource")
			return
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
			sdktrace.WithBatcher(
				exp,
				sdktrace.WithBatchTimeout(5*time.Second),
				sdktrace.WithExportTimeout(10*time.Second),
			),
		)
		mu.Lock()
		tp = provider
		mu.Unlock()

		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			),
		)
	})

	if initErr != nil {
		return nil, initErr
	}
	return Shutdown, nil
}

func Provider() *sdktrace.TracerProvider {
	mu.RLock()
	defer mu.RUnlock()
	return tp
}

// Tracer returns a tracer from the installed provider, or from the global
// one (a no-op unless set elsewhere) before initialization.
func Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p := Provider(); p != nil {
		return p.Tracer(name, opts...)
	}
	return otel.Tracer(name, opts...)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := tp
	tp = nil
	mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}
