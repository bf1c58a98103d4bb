package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arl/statsviz"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func getMonitoringPort() int {
	port := viper.GetInt(config.BringupMonitoringPort)
	if port <= 0 {
		return constants.DefaultMonitoringPort
	}
	return port
}

// NewHandler returns a mux serving the statsviz dashboard under /debug/statsviz/.
func NewHandler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return nil, errors.Wrap(err, "failed to register statsviz")
	}
	return mux, nil
}

func NewMonitoringServer(ctx context.Context) error {
	log.Default().Info("Starting monitoring server")
	handler, err := NewHandler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", getMonitoringPort()),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if lErr := srv.ListenAndServe(); lErr != nil && !errors.Is(lErr, http.ErrServerClosed) {
			errCh <- lErr
		}
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down monitoring server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err = <-errCh:
		wErr := errors.Wrap(err, "failed to start monitoring server")
		log.Default().Error(wErr.Error())
		return wErr
	}
}
