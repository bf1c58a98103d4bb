package restful

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/bringup"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IHealthcheckService interface {
	Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type HealthcheckService struct {
	logger   *log.Logger
	prefixes []string
	entries  func() []string
	started  time.Time
}

// WithAmentPrefixes reports the prefixes searched for package shares.
func WithAmentPrefixes(prefixes []string) func(*HealthcheckService) {
	return func(svc *HealthcheckService) {
		svc.prefixes = prefixes
	}
}

func NewHealthcheckService(options ...func(*HealthcheckService)) *HealthcheckService {
	svc := &HealthcheckService{
		entries: bringup.Entries,
		started: time.Now(),
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Default().Named("healthcheck")
	return svc
}

type HealthcheckInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type HealthcheckOutput struct {
	Host    HostInfo    `json:"host"`
	Memory  MemoryInfo  `json:"memory"`
	Network NetworkInfo `json:"network"`
	CPU     CPUInfo     `json:"cpu"`
	Bringup BringupInfo `json:"bringup"`
}

type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type NetworkInfo struct {
	OutboundIP   string   `json:"outbound_ip,omitempty"`
	PhysicalMacs []string `json:"physical_macs"`
}

type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	Uptime          uint64 `json:"uptime"`
}

type CPUInfo struct {
	ModelName     string `json:"model_name"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
}

type BringupInfo struct {
	AmentPrefixes []string `json:"ament_prefixes"`
	Entries       int      `json:"entries"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

func (svc *HealthcheckService) Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "healthcheck-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	_, cSpan := input.Tracer.Start(rootCtx, "get-host-info")
	hostStat, err := host.InfoWithContext(ctx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get host info").Error())
		return nil, cerrors.ErrGenericInternalServer.WithCause(err)
	}

	_, cSpan = input.Tracer.Start(rootCtx, "get-memory-info")
	memoryInfo, err := mem.VirtualMemoryWithContext(ctx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get memory info").Error())
		return nil, cerrors.ErrGenericInternalServer.WithCause(err)
	}

	_, cSpan = input.Tracer.Start(rootCtx, "get-cpu-info")
	cpuInfo, err := svc.cpuInfo(ctx)
	cSpan.End()
	if err != nil {
		lg.Error(err.Error())
		return nil, cerrors.ErrGenericInternalServer.WithCause(err)
	}

	// Robots often run without a default route; missing network details
	// do not fail the healthcheck.
	_, cSpan = input.Tracer.Start(rootCtx, "get-net-info")
	network := NetworkInfo{PhysicalMacs: []string{}}
	if macs, mErr := utilities.RetrievePhysicalMacAddr(); mErr != nil {
		lg.Warn(errors.Wrap(mErr, "failed to get physical mac addresses").Error())
	} else if macs != nil {
		network.PhysicalMacs = macs
	}
	if ip, iErr := utilities.GetOutboundIP(); iErr != nil {
		lg.Warn(errors.Wrap(iErr, "failed to get outbound ip").Error())
	} else {
		network.OutboundIP = ip.String()
	}
	cSpan.End()

	prefixes := svc.prefixes
	if prefixes == nil {
		prefixes = []string{}
	}

	return api_response.Success(HealthcheckOutput{
		Host: HostInfo{
			Hostname:        hostStat.Hostname,
			OS:              hostStat.OS,
			Platform:        hostStat.Platform,
			PlatformVersion: hostStat.PlatformVersion,
			KernelVersion:   hostStat.KernelVersion,
			Arch:            hostStat.KernelArch,
			Uptime:          hostStat.Uptime,
		},
		Memory: MemoryInfo{
			Total:       memoryInfo.Total,
			Free:        memoryInfo.Free,
			UsedPercent: memoryInfo.UsedPercent,
		},
		Network: network,
		CPU:     cpuInfo,
		Bringup: BringupInfo{
			AmentPrefixes: prefixes,
			Entries:       len(svc.entries()),
			UptimeSeconds: int64(time.Since(svc.started).Seconds()),
		},
	}, 0), nil
}

func (svc *HealthcheckService) cpuInfo(ctx context.Context) (CPUInfo, error) {
	var out CPUInfo
	stats, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return out, errors.Wrap(err, "failed to get cpu info")
	}
	if len(stats) > 0 {
		out.ModelName = stats[0].ModelName
	}
	if out.PhysicalCores, err = cpu.CountsWithContext(ctx, false); err != nil {
		return out, errors.Wrap(err, "failed to count physical cores")
	}
	if out.LogicalCores, err = cpu.CountsWithContext(ctx, true); err != nil {
		return out, errors.Wrap(err, "failed to count logical cores")
	}
	return out, nil
}
