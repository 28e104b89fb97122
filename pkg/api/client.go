// Package api executes single HTTP calls against vendor REST APIs. It
// resolves the credential, serializes parameter trees into the vendor's
// body encoding, and normalizes transport and application failures into
// the ConfigurationError / NetworkError / APIError taxonomy so call sites
// handle every outcome explicitly. The executor never retries; callers own
// retry policy and can attach idempotency keys to make retries of
// mutating calls safe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vendorkit/vendorkit/pkg/auth"
	"github.com/vendorkit/vendorkit/pkg/logger"
	"github.com/vendorkit/vendorkit/pkg/params"
)

// Encoding selects how mutating-call bodies are produced. Both paths route
// through pkg/params so array, nil and nested-object handling stays
// consistent.
type Encoding string

const (
	EncodingForm Encoding = "form"
	EncodingJSON Encoding = "json"
)

// Config describes one vendor endpoint. Credentials are read once at the
// program boundary (see pkg/config) and passed in here; the client never
// touches the process environment itself.
type Config struct {
	BaseURL    string
	Credential string

	// Vendor and EnvVar feed the setup guide when Credential is empty.
	Vendor       string
	EnvVar       string
	DashboardURL string

	// VersionHeader/APIVersion pin the vendor API version on every
	// request, e.g. "Stripe-Version: 2024-06-20". Both empty means the
	// vendor does not version by header.
	VersionHeader string
	APIVersion    string

	Scheme   auth.Scheme
	Encoding Encoding

	// Timeout bounds each request on the transport. Zero means no
	// client-imposed bound beyond the caller's context.
	Timeout time.Duration

	// HTTPClient may be set for tests; defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client issues requests for one vendor. It holds no mutable state between
// calls and is safe for concurrent use.
type Client struct {
	cfg Config
}

// NewClient builds a client. Credential validity is checked per call, not
// here, so a client can be constructed before configuration is complete
// and per-call credential overrides stay possible.
func NewClient(cfg Config) *Client {
	if cfg.Scheme == "" {
		cfg.Scheme = auth.SchemeBearer
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingForm
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}
}

// Response is a successful call result. A 204 response has a nil Body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v. Decoding an empty body is a
// no-op so 204 responses compose with optional results.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "failed to decode response body")
}

type callOptions struct {
	idempotencyKey string
	timeout        time.Duration
	credential     string
}

// CallOption adjusts a single Execute call.
type CallOption func(*callOptions)

// WithIdempotencyKey attaches an Idempotency-Key header to a mutating
// call so the server treats repeated identical requests as one effect.
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOptions) { o.idempotencyKey = key }
}

// WithTimeout overrides the client's transport timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithCredential overrides the configured credential for one call.
func WithCredential(credential string) CallOption {
	return func(o *callOptions) { o.credential = credential }
}

// NewIdempotencyKey returns a fresh key for WithIdempotencyKey.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPatch:  true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Execute issues one HTTP call. GET params become the query string; for
// mutating verbs they become the form or JSON body per the configured
// encoding. The credential is classified before any I/O and an invalid or
// missing one fails fast with a ConfigurationError.
func (c *Client) Execute(ctx context.Context, method, path string, tree params.Tree, opts ...CallOption) (*Response, error) {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	if !allowedMethods[method] {
		return nil, errors.Errorf("unsupported HTTP method %q", method)
	}

	credential := c.cfg.Credential
	if options.credential != "" {
		credential = options.credential
	}
	if credential == "" {
		return nil, &ConfigurationError{
			Message: "missing " + c.cfg.Vendor + " credential",
			Guidance: auth.MissingCredentialGuidance(auth.GuidanceInput{
				Vendor:       c.cfg.Vendor,
				EnvVar:       c.cfg.EnvVar,
				DashboardURL: c.cfg.DashboardURL,
			}),
		}
	}
	classification := auth.Classify(credential)
	if !classification.Valid {
		return nil, &ConfigurationError{
			Message: "unrecognized " + c.cfg.Vendor + " credential " + auth.Redact(credential),
		}
	}

	timeout := c.cfg.Timeout
	if options.timeout > 0 {
		timeout = options.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	var body io.Reader
	contentType := ""
	if method == http.MethodGet {
		if len(tree) > 0 {
			url += "?" + params.Encode(tree)
		}
	} else if len(tree) > 0 {
		switch c.cfg.Encoding {
		case EncodingJSON:
			encoded, err := json.Marshal(params.Compact(tree))
			if err != nil {
				return nil, errors.Wrap(err, "failed to encode request body")
			}
			body = bytes.NewReader(encoded)
			contentType = "application/json"
		default:
			body = strings.NewReader(params.Encode(tree))
			contentType = "application/x-www-form-urlencoded"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", auth.Header(c.cfg.Scheme, credential))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.VersionHeader != "" && c.cfg.APIVersion != "" {
		req.Header.Set(c.cfg.VersionHeader, c.cfg.APIVersion)
	}
	if options.idempotencyKey != "" && method != http.MethodGet {
		req.Header.Set("Idempotency-Key", options.idempotencyKey)
	}

	logger.G(ctx).WithFields(map[string]any{
		"method":     method,
		"url":        url,
		"mode":       classification.Mode,
		"credential": auth.Redact(credential),
	}).Debug("executing vendor API call")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	if resp.StatusCode == http.StatusNoContent {
		return &Response{StatusCode: resp.StatusCode}, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{StatusCode: resp.StatusCode, Body: data}, nil
	}
	return nil, normalizeAPIError(resp.StatusCode, data)
}

// errorEnvelope covers the two wire shapes seen across vendors: a nested
// {"error": {...}} object and a flat {"category", "code", ...} object.
type errorEnvelope struct {
	Error    *errorBody `json:"error"`
	Category string     `json:"category"`
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Param    string     `json:"param"`
}

type errorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

func normalizeAPIError(statusCode int, data []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Category:   "api_error",
		Message:    http.StatusText(statusCode),
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		if len(data) > 0 {
			apiErr.Message = string(data)
		}
		return apiErr
	}

	if envelope.Error != nil {
		if envelope.Error.Type != "" {
			apiErr.Category = envelope.Error.Type
		}
		apiErr.Code = envelope.Error.Code
		apiErr.Param = envelope.Error.Param
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if envelope.Category != "" {
		apiErr.Category = envelope.Category
	}
	apiErr.Code = envelope.Code
	apiErr.Param = envelope.Param
	if envelope.Message != "" {
		apiErr.Message = envelope.Message
	}
	return apiErr
}
