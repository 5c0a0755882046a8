package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = fmt.Errorf("validation failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrUploadFailed       = fmt.Errorf("upload failed")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrSessionClosed      = fmt.Errorf("session closed")
	ErrSlowConsumer       = fmt.Errorf("session buffer full")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// Code is the stable, machine readable name of a failure sent back to clients.
type Code string

const (
	CodeValidation       Code = "ValidationError"
	CodeNotAuthenticated Code = "NotAuthenticated"
	CodeStoreUnavailable Code = "StoreUnavailable"
	CodeUploadFailed     Code = "UploadFailed"
	CodeNotFound         Code = "NotFound"
	CodeConflict         Code = "Conflict"
	CodeInternal         Code = "InternalError"
)

// MapToHTTPStatus translates the error taxonomy into an HTTP status and a wire code.
// Unknown errors are reported as internal errors.
func MapToHTTPStatus(err error) (int, Code) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeNotAuthenticated
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, ErrUploadFailed):
		return http.StatusBadGateway, CodeUploadFailed
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// IsPushFailure reports whether err comes from a dead or slow live session.
// Those are never surfaced to the request that triggered the push.
func IsPushFailure(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSlowConsumer)
}
