package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorkit/vendorkit/pkg/auth"
	"github.com/vendorkit/vendorkit/pkg/params"
)

const testCredential = "sk_test_abcdefghijklmnopqrst"

func newTestClient(serverURL string, mutate ...func(*Config)) *Client {
	cfg := Config{
		BaseURL:    serverURL,
		Credential: testCredential,
		Vendor:     "Stripe",
		EnvVar:     "STRIPE_API_KEY",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg)
}

func TestExecuteFormEncodedPost(t *testing.T) {
	var gotAuth string
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"wid_123"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Execute(context.Background(), http.MethodPost, "/widgets", params.Tree{
		"name": "foo",
		"tags": []any{"a", "b"},
		"meta": params.Tree{"owner": nil},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+testCredential, gotAuth)
	assert.Equal(t, []string{"foo"}, gotForm["name"])
	assert.Equal(t, []string{"a"}, gotForm["tags[0]"])
	assert.Equal(t, []string{"b"}, gotForm["tags[1]"])
	assert.NotContains(t, gotForm, "meta[owner]")

	var decoded struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.Decode(&decoded))
	assert.Equal(t, "wid_123", decoded.ID)
}

func TestExecuteGetSerializesQueryString(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", params.Tree{
		"limit":  10,
		"expand": []any{"owner"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"10"}, gotQuery["limit"])
	assert.Equal(t, []string{"owner"}, gotQuery["expand[0]"])
}

func TestExecuteJSONEncodedBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, func(cfg *Config) {
		cfg.Encoding = EncodingJSON
	})
	_, err := client.Execute(context.Background(), http.MethodPost, "/projects", params.Tree{
		"name": "demo",
		"meta": params.Tree{"owner": nil, "region": "eu"},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "demo", gotBody["name"])
	meta, ok := gotBody["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "eu", meta["region"])
	assert.NotContains(t, meta, "owner")
}

func TestExecuteMissingCredentialFailsBeforeNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, func(cfg *Config) {
		cfg.Credential = ""
		cfg.DashboardURL = "https://dashboard.stripe.com/apikeys"
	})
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Guidance, "export STRIPE_API_KEY=")
	assert.Contains(t, configErr.Guidance, "https://dashboard.stripe.com/apikeys")
	assert.Zero(t, requests)
}

func TestExecuteInvalidCredentialFailsBeforeNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, func(cfg *Config) {
		cfg.Credential = "garbage"
	})
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.NotContains(t, configErr.Message, "garbage", "credentials are never logged in full")
	assert.Zero(t, requests)
}

func TestExecuteCredentialOverride(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	override := "sk_live_abcdefghijklmnopqrst"
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil, WithCredential(override))
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+override, gotAuth)
}

func TestExecuteUnsupportedMethod(t *testing.T) {
	client := newTestClient("http://localhost:1")
	_, err := client.Execute(context.Background(), "TRACE", "/widgets", nil)
	assert.ErrorContains(t, err, "unsupported HTTP method")
}

func TestExecuteNormalizesNestedErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"parameter_missing","message":"Missing required param: name.","param":"name"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), http.MethodPost, "/widgets", params.Tree{"a": 1})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Category)
	assert.Equal(t, "parameter_missing", apiErr.Code)
	assert.Equal(t, "Missing required param: name.", apiErr.Message)
	assert.Equal(t, "name", apiErr.Param)
	assert.False(t, apiErr.Retryable())
}

func TestExecuteNormalizesFlatErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"category":"rate_limit_error","message":"Slow down."}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "rate_limit_error", apiErr.Category)
	assert.Equal(t, "Slow down.", apiErr.Message)
	assert.True(t, apiErr.Retryable())
}

func TestExecuteNonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "api_error", apiErr.Category)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestExecuteNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Execute(context.Background(), http.MethodDelete, "/widgets/wid_123", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)

	var decoded map[string]any
	require.NoError(t, resp.Decode(&decoded))
	assert.Nil(t, decoded)
}

func TestExecuteNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures must not look like server rejections")
}

func TestExecutePerCallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	start := time.Now()
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil, WithTimeout(30*time.Millisecond))

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestIdempotencyKeyAttachedToMutatingCallsOnly(t *testing.T) {
	var gotKeys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeys = append(gotKeys, r.Header.Get("Idempotency-Key"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	key := NewIdempotencyKey()
	require.NotEmpty(t, key)

	_, err := client.Execute(context.Background(), http.MethodPost, "/widgets", params.Tree{"a": 1}, WithIdempotencyKey(key))
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), http.MethodGet, "/widgets", nil, WithIdempotencyKey(key))
	require.NoError(t, err)

	require.Len(t, gotKeys, 2)
	assert.Equal(t, key, gotKeys[0])
	assert.Empty(t, gotKeys[1])
}

func TestVersionHeader(t *testing.T) {
	var gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("Stripe-Version")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, func(cfg *Config) {
		cfg.VersionHeader = "Stripe-Version"
		cfg.APIVersion = "2024-06-20"
	})
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-20", gotVersion)
}

func TestCustomAuthScheme(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, func(cfg *Config) {
		cfg.Scheme = auth.Scheme("Token")
	})
	_, err := client.Execute(context.Background(), http.MethodGet, "/widgets", nil)
	require.NoError(t, err)
	assert.Equal(t, "Token "+testCredential, gotAuth)
}
