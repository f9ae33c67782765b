package qbo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error code QuickBooks returns when a name is already in use.
const codeDuplicateName = "6240"

// APIError is a QuickBooks fault response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Detail     string
	IntuitTID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("quickbooks: %d", e.StatusCode)
	if e.Code != "" {
		msg += " code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

type faultEnvelope struct {
	Fault struct {
		Type   string `json:"type"`
		Errors []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
	} `json:"Fault"`
}

// parseAPIError builds an APIError from a non-2xx response body. Bodies
// that are not a Fault envelope still produce an error with the status.
func parseAPIError(status int, intuitTID string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, IntuitTID: intuitTID}
	var env faultEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Fault.Errors) > 0 {
		first := env.Fault.Errors[0]
		apiErr.Code = first.Code
		apiErr.Message = first.Message
		apiErr.Detail = first.Detail
	} else if len(body) > 0 {
		apiErr.Message = string(body)
	}
	return apiErr
}

// AuthError wraps a failed token refresh. The credentials themselves are
// bad, so no amount of retrying helps.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuth reports whether err is an authentication or authorization failure.
// These abort the whole run.
func IsAuth(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsRateLimit reports whether err is a throttling response.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsDuplicate reports whether err means the entity name already exists in
// the target company.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeDuplicateName
}

// IsRetryable reports whether err is worth another attempt: throttling,
// server-side errors, and transport failures. Auth and validation errors
// are not retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure (connection reset, timeout).
		return true
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return apiErr.StatusCode >= 500
}
