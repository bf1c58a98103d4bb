package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okieraised/perceptor-bringup/internal/bootstrap"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/package_resolver"
	"github.com/okieraised/perceptor-bringup/internal/mapping"
	"github.com/okieraised/perceptor-bringup/internal/progress_hub"
	"github.com/okieraised/perceptor-bringup/internal/server/grpc_server"
	"github.com/okieraised/perceptor-bringup/internal/server/monitoring"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/routers"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/services/v1/ws"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := bootstrap.Init(config.LoadOptions{RequireSource: true}); err != nil {
		panic(fmt.Sprintf("Failed to setup service configuration: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	ext, err := bootstrap.InitExternal(context.Background())
	if err != nil {
		log.Default().Fatal(err.Error())
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if sErr := ext.Shutdown(ctx); sErr != nil {
			log.Default().Error(fmt.Sprintf("Failed to shutdown external services: %v", sErr))
		}
	}()
	log.Default().Info("Finished initializing connection to external services")

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	parentCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(parentCtx)

	// Init GRPC server
	g.Go(func() error {
		gErr := grpc_server.NewGRPCServer(ctx, nil)
		if gErr != nil {
			return gErr
		}
		return ctx.Err()
	})

	// Init profiling
	g.Go(func() error {
		if viper.GetBool(config.BringupEnableMonitoring) {
			mErr := monitoring.NewMonitoringServer(ctx)
			if mErr != nil {
				return mErr
			}
		}
		return ctx.Err()
	})

	// Init mapping progress hub
	hub := progress_hub.NewHub(progress_hub.WithSerialNumber(viper.GetString(config.BringupSerialNumber)))
	g.Go(func() error {
		hub.Run(ctx)
		return ctx.Err()
	})

	// Init HTTP server
	g.Go(func() error {
		appState := routers.NewAppState()

		v1RestState := routers.NewV1RestState()
		v1RestState.SetHealthcheckService(
			restful.NewHealthcheckService(
				restful.WithAmentPrefixes(package_resolver.Global().Prefixes()),
			),
		)
		v1RestState.SetConfigurationService(
			restful.NewConfigurationService(),
		)
		v1RestState.SetLaunchService(
			restful.NewLaunchService(
				restful.WithBringup(bootstrap.NewBringup()),
			),
		)
		mappingSvc := restful.NewMappingService(
			restful.WithMappingBaseContext(ctx),
			restful.WithDefaultOutputFolder(viper.GetString(config.MappingBaseOutputFolder)),
			restful.WithBuilderFactory(func(stdout io.Writer, extra ...mapping.Option) *mapping.Builder {
				opts := append(ext.MappingOptions(hub), mapping.WithStdout(stdout), mapping.WithSudo(false))
				return mapping.NewBuilder(append(opts, extra...)...)
			}),
		)
		v1RestState.SetMappingService(mappingSvc)
		appState.SetV1RestState(v1RestState)

		wsState := routers.NewWebsocketState()
		wsState.SetProgressService(
			ws.NewProgressService(
				ws.WithProgressHub(hub),
				ws.WithBaseContext(ctx),
			),
		)
		appState.SetWebsocketState(wsState)

		rErr := rest_server.NewHTTPServer(ctx, routers.NewRootRouter(appState).InitRouters)
		mappingSvc.Wait()
		if rErr != nil {
			return rErr
		}
		return ctx.Err()
	})

	select {
	case sig := <-sigCh:
		log.Default().Debug(fmt.Sprintf("Signal received: %v", sig))
		cancel()

		done := make(chan error, 1)
		go func() {
			done <- g.Wait()
		}()

		select {
		case <-done:
			log.Default().Info("All tasks exited, shutting down bringup server")
			return
		case sig2 := <-sigCh:
			log.Default().Debug(fmt.Sprintf("Second signal received: %v", sig2))
			return
		case <-time.After(constants.GraceWaitPeriod):
			log.Default().Info("Grace period timed out, forcing exit")
			return
		}

	case err = <-func() chan error {
		ch := make(chan error, 1)
		go func() {
			ch <- g.Wait()
		}()
		return ch
	}():
		log.Default().Info(fmt.Sprintf("Services finished early with error: %v", err))
	}
}
