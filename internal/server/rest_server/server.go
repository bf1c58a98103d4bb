package rest_server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"github.com/okieraised/perceptor-bringup/internal/server/rest_server/middlewares"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func getHTTPPort() int {
	port := viper.GetInt(config.BringupHTTPPort)
	if port <= 0 {
		return constants.DefaultHTTPPort
	}
	return port
}

func getHTTPRequestTimeout() time.Duration {
	timeout := constants.DefaultHTTPRequestTimeout
	if viper.GetInt(config.BringupHTTPRequestTimeout) > 0 {
		timeout = viper.GetInt(config.BringupHTTPRequestTimeout)
	}

	return time.Duration(timeout) * time.Second
}

// NewEngine builds the gin engine with the middleware chain installed
// before registerRoutes so every route goes through it.
func NewEngine(registerRoutes func(engine *gin.Engine)) *gin.Engine {
	gin.SetMode(viper.GetString(config.BringupHTTPMode))
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodGet},
		AllowHeaders: []string{constants.HeaderAccessControlAllowHeaders, constants.HeaderOrigin, constants.HeaderAccept,
			constants.HeaderXRequestedWith, constants.HeaderContentType, constants.HeaderXRequestID},
		ExposeHeaders: []string{constants.HeaderContentLength, constants.HeaderXRequestID, constants.HeaderContentDigest},
	}))

	router.NoRoute(middlewares.NoRouteMW())
	router.Use(
		middlewares.RequestIDMW(),
		middlewares.RecoveryMW(),
		middlewares.RequestLoggingMW(log.Default().Named("http").Logger),
		middlewares.RequestTimeoutMW(getHTTPRequestTimeout()),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{constants.WebsocketPathPrefix})),
		middlewares.ResponseHashMW(),
	)

	if registerRoutes != nil {
		registerRoutes(router)
	}
	return router
}

func NewHTTPServer(ctx context.Context, registerRoutes func(engine *gin.Engine)) error {
	log.Default().Info("Initializing HTTP server")
	router := NewEngine(registerRoutes)

	serverAddr := fmt.Sprintf("0.0.0.0:%d", getHTTPPort())
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Default().Info(fmt.Sprintf("Starting HTTP server on %s", serverAddr))
		var err error
		if viper.GetString(config.BringupTLSCertFile) != "" && viper.GetString(config.BringupTLSKeyFile) != "" {
			err = srv.ListenAndServeTLS(viper.GetString(config.BringupTLSCertFile), viper.GetString(config.BringupTLSKeyFile))
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down HTTP server")
		stopped := make(chan struct{})
		go func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			err := srv.Shutdown(shutdownCtx)
			if err != nil {
				wErr := errors.Wrap(err, "failed to shutdown http server")
				log.Default().Error(wErr.Error())
			}
			close(stopped)
		}()

		t := time.NewTimer(3 * time.Second)
		defer t.Stop()
		select {
		case <-stopped:
			return nil
		case <-t.C:
			log.Default().Info("Graceful stop timed out, forcing shutdown")
			_ = srv.Close()
			return nil
		}
	case err := <-errCh:
		wErr := errors.Wrap(err, "failed to start HTTP server")
		return wErr
	}
}
