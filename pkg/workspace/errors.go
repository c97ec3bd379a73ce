package workspace

import (
	"errors"
	"fmt"
)

// Error codes returned by the workspace platform in the "error_code" field.
const (
	ErrorCodeResourceDoesNotExist  = "RESOURCE_DOES_NOT_EXIST"
	ErrorCodeInvalidParameterValue = "INVALID_PARAMETER_VALUE"
)

// ErrNotFound is matched (with errors.Is) by every error that reports a missing
// remote job or experiment.
var ErrNotFound = errors.New("resource not found")

// RemoteErrorBody is the error document returned by the workspace REST APIs.
type RemoteErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// APIError is any non-success HTTP response from the workspace platform.
type APIError struct {
	StatusCode   int
	ResponseBody string
	ErrorCode    string
	Message      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote request failed with status %d: %s", e.StatusCode, e.ResponseBody)
}

// TransportError is a connection level failure (DNS, TLS, timeout, reset) where no
// HTTP response was received.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to execute request %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedInputError is raised before any remote call is attempted.
type MalformedInputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing remote resource. Cause is the response that was
// classified as not found. It is not unwrapped, a not found outcome never
// satisfies IsRemote.
type NotFoundError struct {
	Kind  string
	ID    string
	Cause *APIError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRemote reports whether err is a RemoteError or its connection level equivalent.
func IsRemote(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	return IsTransport(err)
}

func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func IsMalformedInput(err error) bool {
	var inputErr *MalformedInputError
	return errors.As(err, &inputErr)
}

// IsResourceDoesNotExist reports whether a RemoteError signals absence, either with
// an HTTP 404 or the RESOURCE_DOES_NOT_EXIST error code.
func IsResourceDoesNotExist(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.ErrorCode == ErrorCodeResourceDoesNotExist
	}
	return false
}

// StatusCode returns the HTTP status of a RemoteError, or 0 when err carries none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
