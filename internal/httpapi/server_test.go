package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/anthropic-bridge/internal/config"
	"github.com/meridianhq/anthropic-bridge/internal/logging"
	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
)

// newTestServer wires a Server whose upstream client points at a local
// httptest.Server standing in for the OpenAI-compatible backend.
func newTestServer(t *testing.T, upstream *httptest.Server) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIBaseURL = upstream.URL
	cfg.AnthropicAPIKey = ""
	return New(cfg, logging.New("error"))
}

func TestHandler_Health(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be called for %s", r.URL.Path)
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleMessages_NonStreamingChatWire(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	reqBody := `{"model":"claude-3-5-sonnet-latest","max_tokens":100,"messages":[{"role":"user","content":"hello"}]}`
	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out anthropicapi.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Content, 1)
	assert.Equal(t, "hi there", out.Content[0].Text)
	assert.Equal(t, anthropicapi.StopReasonEndTurn, out.StopReason)

	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestHandleMessages_MissingModelIsRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called when validation fails")
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env anthropicapi.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "invalid_request_error", env.Error.Type)
}

func TestHandleMessages_AuthGateRejectsWrongKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called when auth fails")
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIBaseURL = upstream.URL
	cfg.AnthropicAPIKey = "expected-key"
	srv := New(cfg, logging.New("error"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/messages", strings.NewReader(`{"model":"claude-3-5-sonnet-latest","messages":[]}`))
	req.Header.Set("x-api-key", "wrong-key")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleMessages_StreamingChatWireProducesSSE(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	reqBody := `{"model":"claude-3-5-sonnet-latest","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"hello"}]}`
	resp, err := http.Post(ts.URL+"/v1/messages", "application/json", strings.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "message_start")
	assert.Contains(t, string(raw), "content_block_delta")
	assert.Contains(t, string(raw), "message_stop")
}

func TestHandleCountTokens(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("count_tokens never calls upstream")
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	reqBody := `{"model":"claude-3-5-sonnet-latest","messages":[{"role":"user","content":"hello there, how are you today"}]}`
	resp, err := http.Post(ts.URL+"/v1/messages/count_tokens", "application/json", strings.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out anthropicapi.CountTokensResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Greater(t, out.InputTokens, 0)
}

func TestHandleTestConnection_ReportsUpstreamReachability(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test-connection")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ok"])
}

func TestIdentityKey_PrefersDeviceIDHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(nil))
	r.Header.Set("x-device-id", "device-123")
	assert.Equal(t, "device-123", identityKey(r))
}

func TestIdentityKey_FallsBackToCredentialFingerprint(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(nil))
	r1.Header.Set("x-api-key", "key-a")
	r1.RemoteAddr = "10.0.0.1:1234"

	r2 := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(nil))
	r2.Header.Set("x-api-key", "key-a")
	r2.RemoteAddr = "10.0.0.1:9999"

	r3 := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(nil))
	r3.Header.Set("x-api-key", "key-b")
	r3.RemoteAddr = "10.0.0.1:1234"

	assert.Equal(t, identityKey(r1), identityKey(r2), "port differences don't change the fingerprint")
	assert.NotEqual(t, identityKey(r1), identityKey(r3), "different credentials produce different fingerprints")
}

func TestWantsStream_ChecksBodyFieldAndAcceptHeader(t *testing.T) {
	assert.True(t, wantsStream(true, ""))
	assert.True(t, wantsStream(false, "text/event-stream"))
	assert.False(t, wantsStream(false, "application/json"))
}
