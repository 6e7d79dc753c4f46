package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// FromService converts an error returned by the genai SDK into the
// package taxonomy. Errors that are already classified pass through.
func FromService(err error, endpoint string) error {
	if err == nil {
		return nil
	}

	if isClassified(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutAt("no response before the deadline", endpoint)
	}

	if apiErr, ok := asGenAIError(err); ok {
		return fromStatus(apiErr.Code, apiErr.Status, apiErr.Message, endpoint)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return timeoutAt("the connection timed out", endpoint)
		}
		return NewNetworkError("request", endpoint, err)
	}

	return err
}

func fromStatus(code int, status, message, endpoint string) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return NewAuthError(message)
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return NewUsageLimitError(message)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		return timeoutAt(message, endpoint)
	case code == http.StatusBadRequest && strings.Contains(strings.ToUpper(message), "SAFETY"):
		return NewBlockedError(message)
	}

	apiErr := NewAPIError(code, endpoint, message)
	apiErr.Status = status
	return apiErr
}

func timeoutAt(message, endpoint string) *TimeoutError {
	err := NewTimeoutError(message)
	err.Endpoint = endpoint
	return err
}

func asGenAIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func isClassified(err error) bool {
	var (
		authErr    *AuthError
		apiErr     *APIError
		netErr     *NetworkError
		timeoutErr *TimeoutError
		usageErr   *UsageLimitError
		blockedErr *BlockedError
		parseErr   *ParseError
	)
	return errors.As(err, &authErr) ||
		errors.As(err, &apiErr) ||
		errors.As(err, &netErr) ||
		errors.As(err, &timeoutErr) ||
		errors.As(err, &usageErr) ||
		errors.As(err, &blockedErr) ||
		errors.As(err, &parseErr)
}

// IsAuthError reports whether err is an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrNoAPIKey)
}

// IsRateLimitError reports whether err is a usage limit rejection
func IsRateLimitError(err error) bool {
	var target *UsageLimitError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err is a timeout
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target) || errors.Is(err, context.DeadlineExceeded)
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsBlockedError reports whether err is a safety block
func IsBlockedError(err error) bool {
	var target *BlockedError
	return errors.As(err, &target)
}

// GetHTTPStatus returns the HTTP status carried by err, or 0
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Hint returns a short user-facing suggestion for err, or ""
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAuthError(err):
		return "Set NANOGENIUS_API_KEY (or GEMINI_API_KEY) to a valid Gemini API key"
	case IsRateLimitError(err):
		return "Usage limit reached. Try again later or use a different model"
	case IsBlockedError(err):
		return "The request was blocked by safety filters. Try rephrasing"
	case IsNetworkError(err):
		return "Check your internet connection"
	case IsTimeoutError(err):
		return "Request timed out. Try again"
	}
	return ""
}
