// Package api_response holds the JSON envelope every REST endpoint answers
// with.
package api_response

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/constants"
)

type Response[T any] struct {
	RequestID     string         `json:"request_id"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	ServerTime    int64          `json:"server_time"`
	ServerTimeISO string         `json:"server_time_iso"`
	Count         int            `json:"count,omitempty"`
	Data          T              `json:"data"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// BaseOutput is what services hand back to routers.
type BaseOutput struct {
	Code    string
	Message string
	Data    any
	Count   int
}

// Success wraps data in an OK output.
func Success(data any, count int) *BaseOutput {
	return &BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    data,
		Count:   count,
	}
}

func New[T any](ctx context.Context) *Response[T] {
	now := time.Now()
	return &Response[T]{
		RequestID:     requestIDFromContext(ctx),
		ServerTime:    now.Unix(),
		ServerTimeISO: now.Format(time.RFC3339),
	}
}

// OK constructs a success response carrying data.
func OK[T any](ctx context.Context, data T) *Response[T] {
	resp := New[T](ctx)
	resp.Code = cerrors.OK.Code
	resp.Message = cerrors.OK.Message
	resp.Data = data
	return resp
}

// FromOutput copies a service output into a response.
func FromOutput(ctx context.Context, out *BaseOutput) *Response[any] {
	resp := New[any](ctx)
	resp.Code = out.Code
	resp.Message = out.Message
	resp.Data = out.Data
	resp.Count = out.Count
	return resp
}

// FromAppError builds an error response with no data.
func FromAppError(ctx context.Context, appErr *cerrors.AppError) *Response[any] {
	resp := New[any](ctx)
	resp.Code = appErr.Code
	resp.Message = appErr.Message
	return resp
}

func (r *Response[T]) WithMetaKV(k string, v any) *Response[T] {
	if r.Meta == nil {
		r.Meta = make(map[string]any)
	}
	r.Meta[k] = v
	return r
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return uuid.New().String()
	}
	if v := ctx.Value(constants.APIFieldRequestID); v != nil {
		return fmt.Sprint(v)
	}
	return uuid.New().String()
}
