package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/okieraised/perceptor-bringup/internal/constants"
)

// RequestIDMW reuses a caller supplied X-Request-ID or mints a new one and
// echoes it on the response.
func RequestIDMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(constants.HeaderXRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx.Request.Header.Set(constants.APIFieldRequestID, requestID)
		ctx.Set(constants.APIFieldRequestID, requestID)
		ctx.Header(constants.HeaderXRequestID, requestID)
		ctx.Next()
	}
}
