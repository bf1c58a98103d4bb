package grpc_server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported next to the overall "".
const ServiceName = "perceptor.bringup"

func getGRPCPort() int {
	port := viper.GetInt(config.BringupGRPCPort)
	if port <= 0 {
		return constants.DefaultGRPCPort
	}
	return port
}

func recoveryHandler(p any) error {
	log.Default().Error(fmt.Sprintf("panic recovered: %v", p))
	return status.Error(codes.Internal, "internal server error")
}

func loadTLSConfig() (*tls.Config, error) {
	certFile := viper.GetString(config.BringupTLSCertFile)
	keyFile := viper.GetString(config.BringupTLSKeyFile)
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load server cert file")
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	caFile := viper.GetString(config.BringupTLSClientCAFile)
	if caFile == "" {
		return tlsCfg, nil
	}
	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read client CA file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, errors.Errorf("failed to append client CA %s to pool", caFile)
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsCfg, nil
}

// NewServer builds the gRPC server with recovery interceptors, keepalive
// policy and a health service already marked as serving.
func NewServer(registerServices func(s *grpc.Server)) (*grpc.Server, *health.Server, error) {
	var serverOpts []grpc.ServerOption

	tlsCfg, err := loadTLSConfig()
	if err != nil {
		return nil, nil, err
	}
	if tlsCfg != nil {
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	serverOpts = append(serverOpts,
		grpc.MaxRecvMsgSize(4<<20),
		grpc.MaxSendMsgSize(4<<20),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      2 * time.Hour,
			MaxConnectionAgeGrace: 30 * time.Second,
			Time:                  2 * time.Minute,
			Timeout:               20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(
			keepalive.EnforcementPolicy{
				MinTime:             1 * time.Minute,
				PermitWithoutStream: true,
			}),
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryHandler)),
		),
		grpc.ChainStreamInterceptor(
			grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryHandler)),
		),
	)

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if registerServices != nil {
		registerServices(grpcServer)
	}
	return grpcServer, hs, nil
}

// Serve runs grpcServer on lis until ctx is done, then graceful-stops it.
// The health status flips to NOT_SERVING before draining.
func Serve(ctx context.Context, lis net.Listener, grpcServer *grpc.Server, hs *health.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Default().Info(fmt.Sprintf("Starting gRPC server on %s", lis.Addr()))
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down gRPC server")
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		// hard stop if graceful takes too long
		t := time.NewTimer(3 * time.Second)
		defer t.Stop()
		select {
		case <-stopped:
			return nil
		case <-t.C:
			log.Default().Info("Graceful stop timed out, forcing shutdown")
			grpcServer.Stop()
			return nil
		}
	case err := <-errCh:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return errors.Wrap(err, "failed to start gRPC server")
	}
}

// NewGRPCServer starts the server, blocks until ctx is done, then graceful-stops.
func NewGRPCServer(ctx context.Context, registerServices func(s *grpc.Server)) error {
	log.Default().Info("Initializing gRPC server")
	grpcServer, hs, err := NewServer(registerServices)
	if err != nil {
		log.Default().Error(err.Error())
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", getGRPCPort()))
	if err != nil {
		wErr := errors.Wrap(err, "failed to listen")
		log.Default().Error(wErr.Error())
		return wErr
	}
	return Serve(ctx, lis, grpcServer, hs)
}
