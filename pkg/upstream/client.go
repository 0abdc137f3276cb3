// Package upstream implements the bridge's Upstream Client: the single
// place that knows how to address the configured OpenAI-compatible
// backend, whether it speaks chat-completions or responses framing,
// standard OpenAI auth or Azure's, and how fast the bridge is allowed to
// call it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/meridianhq/anthropic-bridge/pkg/bridgeerror"
	"github.com/meridianhq/anthropic-bridge/pkg/openairesponses"
	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	APIKey          string
	AzureAPIVersion string // non-empty switches to Azure's api-key auth convention
	CustomHeaders   map[string]string
	Timeout         time.Duration
	RateLimitRPS    float64 // 0 disables limiting
	RateLimitBurst  int
	HTTPClient      *http.Client
}

// Client addresses the configured upstream.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	azureAPIVersion string
	customHeaders   map[string]string
	limiter         *rate.Limiter
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		// timeout bounds the wait for response headers only, so a streaming
		// body is not cut off; callers bound a whole call through ctx.
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          200,
				MaxIdleConnsPerHost:   50,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		httpClient:      httpClient,
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		azureAPIVersion: cfg.AzureAPIVersion,
		customHeaders:   cfg.CustomHeaders,
		limiter:         limiter,
	}
}

// ChatCompletion sends a non-streaming chat-completions request.
// extraHeaders are set on the outbound request in addition to the
// client's configured CustomHeaders (e.g. a routing-hint session id).
func (c *Client) ChatCompletion(ctx context.Context, req openaiwire.ChatRequest, extraHeaders map[string]string) (*openaiwire.ChatResponse, error) {
	req.Stream = false
	resp, err := c.do(ctx, "/chat/completions", req, extraHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, bridgeerror.Upstream(err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var out openaiwire.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, bridgeerror.Upstream(fmt.Errorf("decoding chat completion response: %w", err))
	}
	return &out, nil
}

// StreamChatCompletion sends a streaming chat-completions request and
// returns the raw SSE body for the caller to parse.
func (c *Client) StreamChatCompletion(ctx context.Context, req openaiwire.ChatRequest, extraHeaders map[string]string) (io.ReadCloser, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &openaiwire.StreamOptions{IncludeUsage: true}
	}
	resp, err := c.do(ctx, "/chat/completions", req, extraHeaders)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, checkStatus(resp.StatusCode, body)
	}

	return resp.Body, nil
}

// Responses sends a non-streaming responses-wire request.
func (c *Client) Responses(ctx context.Context, req openairesponses.Request, extraHeaders map[string]string) (*openairesponses.Response, error) {
	req.Stream = false
	resp, err := c.do(ctx, "/responses", req, extraHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, bridgeerror.Upstream(err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var out openairesponses.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, bridgeerror.Upstream(fmt.Errorf("decoding responses output: %w", err))
	}
	return &out, nil
}

// StreamResponses sends a streaming responses-wire request and returns the
// raw SSE body for the caller to parse.
func (c *Client) StreamResponses(ctx context.Context, req openairesponses.Request, extraHeaders map[string]string) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.do(ctx, "/responses", req, extraHeaders)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, checkStatus(resp.StatusCode, body)
	}

	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, path string, body any, extraHeaders map[string]string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, bridgeerror.Wrap(bridgeerror.TypeAPIError, 499, "request canceled waiting for rate limit", err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, bridgeerror.Internal(fmt.Errorf("marshaling upstream request: %w", err))
	}

	url := c.baseURL + path
	if c.azureAPIVersion != "" {
		sep := "?"
		if bytes.ContainsRune([]byte(url), '?') {
			sep = "&"
		}
		url = url + sep + "api-version=" + c.azureAPIVersion
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, bridgeerror.Internal(fmt.Errorf("building upstream request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.azureAPIVersion != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	} else if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	for k, v := range c.customHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, bridgeerror.Upstream(err)
	}
	return resp, nil
}

// checkStatus maps an upstream non-2xx response to the bridge's error
// taxonomy. Every upstream failure surfaces to the client as api_error:
// a 4xx is forwarded verbatim (it reflects a failure between the bridge
// and the upstream, not the client's own credentials or rate limit), and
// a 5xx is remapped to 502.
func checkStatus(status int, body []byte) error {
	if status < 400 {
		return nil
	}

	if status >= 500 {
		return bridgeerror.Wrap(bridgeerror.TypeAPIError, http.StatusBadGateway, "upstream returned a server error", fmt.Errorf("status %d: %s", status, body))
	}

	return bridgeerror.Wrap(bridgeerror.TypeAPIError, status, "upstream rejected the request", fmt.Errorf("status %d: %s", status, body))
}
