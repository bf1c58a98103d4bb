package middlewares

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/perceptor-bringup/internal/constants"
)

// digestWriter sets Content-Digest from the first body write, which is the
// whole body for gin's JSON, YAML and string renderers.
type digestWriter struct {
	gin.ResponseWriter
}

func (w *digestWriter) Write(data []byte) (int, error) {
	if !w.Written() {
		sum := sha256.Sum256(data)
		w.Header().Set(constants.HeaderContentDigest, "sha-256=:"+base64.StdEncoding.EncodeToString(sum[:])+":")
	}
	return w.ResponseWriter.Write(data)
}

func ResponseHashMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Writer = &digestWriter{ResponseWriter: ctx.Writer}
		ctx.Next()
	}
}
