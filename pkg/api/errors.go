package api

import "fmt"

// ConfigurationError means a required credential is missing or lexically
// invalid. It is raised before any network call and carries remediation
// guidance when the credential is absent entirely.
type ConfigurationError struct {
	Message  string
	Guidance string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NetworkError means the request never produced an HTTP response (DNS
// failure, timeout, connection reset). Retrying is safe when the call was
// idempotent.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError means the server responded with a non-success status. The
// vendor's wire format is normalized into category/code/message plus the
// offending parameter when the vendor names one.
type APIError struct {
	StatusCode int
	Category   string
	Code       string
	Message    string
	Param      string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (%s/%s): %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (%s): %s", e.Category, e.Message)
}

// Retryable reports whether a manual retry can succeed without changing
// the request. Rate limits clear after backoff; validation failures do
// not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.Category == "rate_limit_error"
}
