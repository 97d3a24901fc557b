package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorType is the classification of a failed upstream call.
type ErrorType string

const (
	ErrorTimeout       ErrorType = "TIMEOUT"
	ErrorService       ErrorType = "SERVICE_ERROR"
	ErrorNetwork       ErrorType = "NETWORK_ERROR"
	ErrorAuthorization ErrorType = "AUTHORIZATION_ERROR"
	ErrorInvalid       ErrorType = "INVALID_REQUEST"
	ErrorUnknown       ErrorType = "UNKNOWN"
)

// GenerationError is a typed, retryability-tagged failure of a generation
// request.
type GenerationError struct {
	Type      ErrorType `json:"type"`
	Retryable bool      `json:"retryable"`
	// Status is the upstream HTTP status, 0 when none was obtained.
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// StatusCode maps the error type to the HTTP status the gateway reports to
// its own callers.
func (e *GenerationError) StatusCode() int {
	switch e.Type {
	case ErrorAuthorization:
		return http.StatusUnauthorized
	case ErrorInvalid:
		return http.StatusBadRequest
	case ErrorTimeout:
		return http.StatusGatewayTimeout
	case ErrorService, ErrorNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClassifyStatus maps an upstream HTTP status to a GenerationError.
func ClassifyStatus(status int, cause error) *GenerationError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &GenerationError{
			Type:    ErrorAuthorization,
			Status:  status,
			Message: "text service rejected credentials",
			Cause:   cause,
		}
	case status == http.StatusBadRequest:
		return &GenerationError{
			Type:    ErrorInvalid,
			Status:  status,
			Message: "text service rejected the request",
			Cause:   cause,
		}
	case status >= http.StatusInternalServerError:
		return &GenerationError{
			Type:      ErrorService,
			Retryable: true,
			Status:    status,
			Message:   fmt.Sprintf("text service error (status %d)", status),
			Cause:     cause,
		}
	default:
		return &GenerationError{
			Type:      ErrorUnknown,
			Retryable: status < http.StatusInternalServerError,
			Status:    status,
			Message:   fmt.Sprintf("unexpected text service status %d", status),
			Cause:     cause,
		}
	}
}

// Classify maps any error from an upstream attempt to a GenerationError.
// Deadline expiry is checked before the typed client errors because the
// client wraps cancelled transports in its own error types.
func Classify(err error) *GenerationError {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{
			Type:      ErrorTimeout,
			Retryable: true,
			Message:   "text service call timed out",
			Cause:     err,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return ClassifyStatus(reqErr.HTTPStatusCode, err)
	}

	// No HTTP status was obtained; treat as a transport failure.
	return &GenerationError{
		Type:      ErrorNetwork,
		Retryable: true,
		Message:   "text service unreachable",
		Cause:     err,
	}
}
