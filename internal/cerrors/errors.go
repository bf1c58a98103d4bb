package cerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return "OK"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a shallow copy of e with Cause.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Cause = err
	return &c
}

// WithMessage returns a shallow copy with an overridden message.
func (e *AppError) WithMessage(msg string, a ...any) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	if len(a) > 0 {
		c.Message = fmt.Sprintf(msg, a...)
	} else {
		c.Message = msg
	}
	return &c
}

// CodeOf returns the code if err is *AppError; "UNKNOWN" otherwise; "OK" for nil.
func CodeOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "OK"
	case *AppError:
		return e.Code
	default:
		return "UNKNOWN"
	}
}

// MessageOf returns the message if err is *AppError; err.Error() otherwise; "OK" for nil.
func MessageOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "OK"
	case *AppError:
		if e.Message != "" {
			return e.Message
		}
		return e.Code
	default:
		return e.Error()
	}
}

// HTTPStatusOf returns the HTTP status if err is *AppError; otherwise 500; 200 for nil.
func HTTPStatusOf(err error) int {
	switch e := err.(type) {
	case nil:
		return http.StatusOK
	case *AppError:
		if e.HTTPStatus != 0 {
			return e.HTTPStatus
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Is matches any *AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e != nil && t != nil && e.Code == t.Code
}

// IsCode reports whether err, or any error it wraps or joins, is an
// *AppError with the given code.
func IsCode(err error, code string) bool {
	return errors.Is(err, &AppError{Code: code})
}

// def is a small constructor for sentinels.
func def(code, msg string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus}
}

var (
	OK = def("OK", "OK", http.StatusOK)
)

var (
	ErrGenericBadRequest      = def("400000", "bad request error", http.StatusBadRequest)
	ErrGenericUnknownAPIPath  = def("400004", "unknown api path", http.StatusNotFound)
	ErrGenericInternalServer  = def("500000", "internal server error", http.StatusInternalServerError)
	ErrGenericRequestTimedOut = def("500004", "request timeout error", http.StatusGatewayTimeout)
	ErrGenericUnavailable     = def("500003", "service unavailable", http.StatusServiceUnavailable)
)

var (
	ErrUnknownConfiguration = def("410000", "unknown perceptor configuration", http.StatusNotFound)
	ErrInvalidCameraConfig  = def("410001", "camera config invalid", http.StatusUnprocessableEntity)
	ErrInvalidCapability    = def("410002", "invalid camera capability", http.StatusBadRequest)
	ErrUnknownCameraSlot    = def("410003", "unknown camera slot", http.StatusBadRequest)
)

var (
	ErrUnknownLaunchEntry  = def("420000", "unknown launch entry", http.StatusNotFound)
	ErrMissingArgument     = def("420001", "missing required launch argument", http.StatusBadRequest)
	ErrInvalidArgument     = def("420002", "invalid launch argument", http.StatusBadRequest)
	ErrMissingPath         = def("420003", "path does not exist", http.StatusUnprocessableEntity)
	ErrInvalidLaunchConfig = def("420004", "invalid launch configuration", http.StatusUnprocessableEntity)
	ErrUnknownPackage      = def("420005", "package not found", http.StatusNotFound)
)

var (
	ErrInvalidMappingStep = def("430000", "invalid mapping step", http.StatusBadRequest)
	ErrRecorderNotReady   = def("430001", "failed to record rosbag or timed out", http.StatusInternalServerError)
	ErrStepFailed         = def("430002", "mapping step failed", http.StatusInternalServerError)
	ErrMappingBusy        = def("430003", "a map build is already running", http.StatusConflict)
	ErrMappingJobNotFound = def("430004", "map build job not found", http.StatusNotFound)
	ErrMappingPathDenied  = def("430005", "output folder outside the maps folder", http.StatusForbidden)
)

// AsAppError returns the first *AppError found in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var e *AppError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
