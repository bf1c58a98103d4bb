package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/api_response"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
)

func abortWithAppError(ctx *gin.Context, appErr *cerrors.AppError) {
	ctx.AbortWithStatusJSON(cerrors.HTTPStatusOf(appErr), api_response.FromAppError(ctx, appErr))
}

func NoRouteMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		abortWithAppError(ctx, cerrors.ErrGenericUnknownAPIPath.WithMessage("unknown api path %s %s", ctx.Request.Method, ctx.Request.URL.Path))
	}
}
