package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
)

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// RequestTimeoutMW answers 504 when the handler chain outlives timeout and
// cancels the request context so handlers can give up early. Websocket
// upgrades are exempt.
func RequestTimeoutMW(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if isWebsocketUpgrade(ctx.Request) {
			ctx.Next()
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(reqCtx)

		done := make(chan struct{})
		panicked := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
					return
				}
				close(done)
			}()
			ctx.Next()
		}()

		select {
		case <-done:
		case p := <-panicked:
			logPanic(ctx, p)
			abortWithAppError(ctx, cerrors.ErrGenericInternalServer)
		case <-reqCtx.Done():
			abortWithAppError(ctx, cerrors.ErrGenericRequestTimedOut)
		}
	}
}
