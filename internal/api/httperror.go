package api

import (
	"errors"
	"net/http"
)

const (
	msgBadRequest     = "Bad Request"
	msgNotFound       = "Resource not found"
	msgInternalServer = "Internal Server Error"
	msgTooManyReqs    = "Too many requests"
)

// HTTPError is an error with a status code and a message safe to show the
// client.
type HTTPError struct {
	cause   error
	Code    int
	Message string
}

func (he *HTTPError) Error() string {
	return he.Message
}

func (he *HTTPError) Unwrap() error {
	return he.cause
}

func defaultMessageIfEmpty(initialMsg, defaultVal string) string {
	if initialMsg == "" {
		return defaultVal
	}
	return initialMsg
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		cause:   errors.New(message),
		Code:    code,
		Message: message,
	}
}

func NewHTTPErrorWrap(code int, message string, cause error) *HTTPError {
	return &HTTPError{
		cause:   cause,
		Code:    code,
		Message: message,
	}
}

func ErrBadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest))
}

func ErrNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, defaultMessageIfEmpty(message, msgNotFound))
}

func ErrUnauthorized(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, defaultMessageIfEmpty(message, "Unauthorized"))
}

func ErrTooManyRequests() *HTTPError {
	return NewHTTPError(http.StatusTooManyRequests, msgTooManyReqs)
}
