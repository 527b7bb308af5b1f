package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the session.
var (
	// ErrMissingToken is returned by New when no access token is configured.
	ErrMissingToken = errors.New("access token is required")

	// ErrMissingItems is returned by GetItems when a list response is a JSON
	// object without an "items" array.
	ErrMissingItems = errors.New("'items' key not found in JSON data")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection, DNS, and TLS failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents single-request or overall timeouts.
	ErrorClassTimeout ErrorClass = "timeout"
)

// APIError is returned when the service answers with a non-2xx status that
// the retry policy did not resolve.
type APIError struct {
	StatusCode int
	Message    string

	// TrackingID correlates the failed request with the service's logs.
	// Quote it when contacting support.
	TrackingID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.TrackingID != "" {
		return fmt.Sprintf("spark api error (status %d): %s [tracking id: %s]",
			e.StatusCode, e.Message, e.TrackingID)
	}
	return fmt.Sprintf("spark api error (status %d): %s", e.StatusCode, e.Message)
}

// Class returns the error classification of the status code.
func (e *APIError) Class() ErrorClass {
	return classifyStatus(e.StatusCode)
}

// TimeoutError is returned when a single request or a bounded operation
// exceeds its configured duration.
type TimeoutError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// TransportError is returned when no HTTP response was received at all
// (connection refused, DNS failure, TLS failure). It is not retried.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsRateLimited reports whether err is an APIError with status 429.
func IsRateLimited(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

// errorBody is the service's JSON error envelope.
type errorBody struct {
	Message    string `json:"message"`
	TrackingID string `json:"trackingId"`
	Errors     []struct {
		Description string `json:"description"`
	} `json:"errors"`
}

// newAPIError builds an APIError from a non-2xx response. The message falls
// back to the first error description, then to the status text.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		TrackingID: resp.Header.Get("TrackingID"),
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		apiErr.Message = parsed.Message
		if apiErr.Message == "" && len(parsed.Errors) > 0 {
			apiErr.Message = parsed.Errors[0].Description
		}
		if parsed.TrackingID != "" {
			apiErr.TrackingID = parsed.TrackingID
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(http.StatusText(resp.StatusCode))
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}

	return apiErr
}

// classifyStatus categorizes a status code for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
