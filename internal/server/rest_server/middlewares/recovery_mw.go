package middlewares

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
	"github.com/okieraised/perceptor-bringup/internal/infrastructure/log"
	"go.uber.org/zap"
)

func logPanic(ctx *gin.Context, p any) {
	log.Default().Named("http").Error(fmt.Sprintf("Recovered from panic: %v", p),
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		zap.String("path", ctx.Request.URL.Path),
		zap.ByteString("stack", debug.Stack()),
	)
}

func RecoveryMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logPanic(ctx, p)
				abortWithAppError(ctx, cerrors.ErrGenericInternalServer)
			}
		}()
		ctx.Next()
	}
}
