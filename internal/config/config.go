// Package config loads the bridge's configuration once at process start.
// Nothing in the rest of the bridge reads the environment directly; a
// *Config is constructed here and passed explicitly to every component
// that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WireAPI selects the upstream's request/response shape.
type WireAPI string

const (
	WireChatCompletions WireAPI = "chat"
	WireResponses       WireAPI = "responses"
)

// Config holds every externally-tunable setting the bridge uses.
type Config struct {
	// Host/Port the HTTP server listens on.
	Host string
	Port int

	// AnthropicAPIKey is the key clients must present (via x-api-key or
	// Authorization: Bearer) for the bridge to accept their request. Empty
	// disables the Auth Gate.
	AnthropicAPIKey string

	// OpenAIAPIKey / OpenAIBaseURL address the upstream.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// WireAPI selects chat or responses framing upstream.
	WireAPI WireAPI

	// AzureAPIVersion, when set, switches the upstream client to Azure
	// OpenAI's api-key auth header and appends ?api-version=... to every
	// upstream request.
	AzureAPIVersion string

	// BigModel/MiddleModel/SmallModel are the upstream models the Model
	// Router resolves Anthropic aliases to (§4.1). MiddleModel and
	// SmallModel fall back to BigModel when left unset.
	BigModel    string
	MiddleModel string
	SmallModel  string

	// MinThinkingLevel is the floor applied to a derived reasoning effort
	// level (low|medium|high) when thinking is requested.
	MinThinkingLevel string

	// SessionTTLMinSecs / SessionTTLMaxSecs bound the session affinity TTL.
	SessionTTLMinSecs int
	SessionTTLMaxSecs int

	// SessionCleanupInterval controls how often the session table is swept
	// for expired entries.
	SessionCleanupInterval time.Duration

	// SendReasoningBackOnResponsesWire, when true, round-trips assistant
	// thinking blocks as reasoning input items on the responses wire (see
	// DESIGN.md's open-question resolution). Default false.
	SendReasoningBackOnResponsesWire bool

	// DebugToolIDMatching logs tool_use/tool_result id reconciliation
	// decisions at debug level.
	DebugToolIDMatching bool

	// LogLevel is one of debug|info|warn|error.
	LogLevel string

	// CustomHeaders are forwarded verbatim on every upstream request, collected
	// from CUSTOM_HEADER_<NAME> environment variables.
	CustomHeaders map[string]string

	// RequestTimeout bounds a single non-streaming upstream call.
	RequestTimeout time.Duration

	// StreamRequestTimeout bounds a streaming upstream call; zero disables
	// the timeout (the connection is held open for as long as the
	// upstream keeps sending).
	StreamRequestTimeout time.Duration

	// RequestBodyMaxSize caps the size of an incoming client request body.
	RequestBodyMaxSize int64

	// UpstreamRateLimitRPS / UpstreamRateLimitBurst configure the token
	// bucket guarding outbound calls to the upstream. Zero disables limiting.
	UpstreamRateLimitRPS   float64
	UpstreamRateLimitBurst int

	// TelemetryEnabled turns on the OpenTelemetry tracer.
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// fileConfig mirrors the subset of Config that may be supplied via YAML
// file, using pointers so "unset" is distinguishable from "zero value".
type fileConfig struct {
	Host                             *string           `yaml:"host"`
	Port                             *int              `yaml:"port"`
	AnthropicAPIKey                  *string           `yaml:"anthropic_api_key"`
	OpenAIAPIKey                     *string           `yaml:"openai_api_key"`
	OpenAIBaseURL                    *string           `yaml:"openai_base_url"`
	WireAPI                          *string           `yaml:"wire_api"`
	AzureAPIVersion                  *string           `yaml:"azure_api_version"`
	BigModel                         *string           `yaml:"big_model"`
	MiddleModel                      *string           `yaml:"middle_model"`
	SmallModel                       *string           `yaml:"small_model"`
	MinThinkingLevel                 *string           `yaml:"min_thinking_level"`
	SessionTTLMinSecs                *int              `yaml:"session_ttl_min_secs"`
	SessionTTLMaxSecs                *int              `yaml:"session_ttl_max_secs"`
	SessionCleanupIntervalSecs       *int              `yaml:"session_cleanup_interval_secs"`
	SendReasoningBackOnResponsesWire *bool             `yaml:"send_reasoning_back_on_responses_wire"`
	DebugToolIDMatching              *bool             `yaml:"debug_tool_id_matching"`
	LogLevel                         *string           `yaml:"log_level"`
	RequestTimeoutSecs               *int              `yaml:"request_timeout"`
	StreamRequestTimeoutSecs         *int              `yaml:"stream_request_timeout"`
	RequestBodyMaxSize               *int64            `yaml:"request_body_max_size"`
	UpstreamRateLimitRPS             *float64          `yaml:"upstream_rate_limit_rps"`
	UpstreamRateLimitBurst           *int              `yaml:"upstream_rate_limit_burst"`
	CustomHeaders                    map[string]string `yaml:"custom_headers"`
	TelemetryEnabled                 *bool             `yaml:"telemetry_enabled"`
	OTLPEndpoint                     *string           `yaml:"otlp_endpoint"`
}

// Default returns the configuration's hardcoded defaults, before any file
// or environment overrides are applied.
func Default() *Config {
	return &Config{
		Host:                    "0.0.0.0",
		Port:                    8082,
		OpenAIBaseURL:           "https://api.openai.com/v1",
		WireAPI:                 WireChatCompletions,
		BigModel:                "gpt-4o",
		SmallModel:              "gpt-4o-mini",
		MinThinkingLevel:        "low",
		SessionTTLMinSecs:       1800,
		SessionTTLMaxSecs:       86400,
		SessionCleanupInterval:  60 * time.Second,
		LogLevel:                "info",
		CustomHeaders:           map[string]string{},
		RequestTimeout:          90 * time.Second,
		StreamRequestTimeout:    0,
		RequestBodyMaxSize:      16 << 20,
		UpstreamRateLimitRPS:    0,
		UpstreamRateLimitBurst:  1,
	}
}

// Load builds a Config from defaults, an optional YAML file (path given by
// BRIDGE_CONFIG_FILE), and environment variables, in that precedence order
// (environment always wins).
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("BRIDGE_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	applyEnv(cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.AnthropicAPIKey != nil {
		cfg.AnthropicAPIKey = *fc.AnthropicAPIKey
	}
	if fc.OpenAIAPIKey != nil {
		cfg.OpenAIAPIKey = *fc.OpenAIAPIKey
	}
	if fc.OpenAIBaseURL != nil {
		cfg.OpenAIBaseURL = *fc.OpenAIBaseURL
	}
	if fc.WireAPI != nil {
		cfg.WireAPI = WireAPI(*fc.WireAPI)
	}
	if fc.AzureAPIVersion != nil {
		cfg.AzureAPIVersion = *fc.AzureAPIVersion
	}
	if fc.BigModel != nil {
		cfg.BigModel = *fc.BigModel
	}
	if fc.MiddleModel != nil {
		cfg.MiddleModel = *fc.MiddleModel
	}
	if fc.SmallModel != nil {
		cfg.SmallModel = *fc.SmallModel
	}
	if fc.MinThinkingLevel != nil {
		cfg.MinThinkingLevel = *fc.MinThinkingLevel
	}
	if fc.SessionTTLMinSecs != nil {
		cfg.SessionTTLMinSecs = *fc.SessionTTLMinSecs
	}
	if fc.SessionTTLMaxSecs != nil {
		cfg.SessionTTLMaxSecs = *fc.SessionTTLMaxSecs
	}
	if fc.SessionCleanupIntervalSecs != nil {
		cfg.SessionCleanupInterval = time.Duration(*fc.SessionCleanupIntervalSecs) * time.Second
	}
	if fc.SendReasoningBackOnResponsesWire != nil {
		cfg.SendReasoningBackOnResponsesWire = *fc.SendReasoningBackOnResponsesWire
	}
	if fc.DebugToolIDMatching != nil {
		cfg.DebugToolIDMatching = *fc.DebugToolIDMatching
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.RequestTimeoutSecs != nil {
		cfg.RequestTimeout = time.Duration(*fc.RequestTimeoutSecs) * time.Second
	}
	if fc.StreamRequestTimeoutSecs != nil {
		cfg.StreamRequestTimeout = time.Duration(*fc.StreamRequestTimeoutSecs) * time.Second
	}
	if fc.RequestBodyMaxSize != nil {
		cfg.RequestBodyMaxSize = *fc.RequestBodyMaxSize
	}
	if fc.UpstreamRateLimitRPS != nil {
		cfg.UpstreamRateLimitRPS = *fc.UpstreamRateLimitRPS
	}
	if fc.UpstreamRateLimitBurst != nil {
		cfg.UpstreamRateLimitBurst = *fc.UpstreamRateLimitBurst
	}
	if fc.CustomHeaders != nil {
		for k, v := range fc.CustomHeaders {
			cfg.CustomHeaders[k] = v
		}
	}
	if fc.TelemetryEnabled != nil {
		cfg.TelemetryEnabled = *fc.TelemetryEnabled
	}
	if fc.OTLPEndpoint != nil {
		cfg.OTLPEndpoint = *fc.OTLPEndpoint
	}

	return nil
}

const customHeaderPrefix = "CUSTOM_HEADER_"

func applyEnv(cfg *Config, getenv func(string) string) {
	setString(getenv, "BRIDGE_HOST", &cfg.Host)
	setInt(getenv, "BRIDGE_PORT", &cfg.Port)
	setString(getenv, "ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	setString(getenv, "OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	setString(getenv, "OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	setString(getenv, "AZURE_API_VERSION", &cfg.AzureAPIVersion)
	setString(getenv, "BIG_MODEL", &cfg.BigModel)
	setString(getenv, "MIDDLE_MODEL", &cfg.MiddleModel)
	setString(getenv, "SMALL_MODEL", &cfg.SmallModel)
	setString(getenv, "MIN_THINKING_LEVEL", &cfg.MinThinkingLevel)
	setInt(getenv, "SESSION_TTL_MIN_SECS", &cfg.SessionTTLMinSecs)
	setInt(getenv, "SESSION_TTL_MAX_SECS", &cfg.SessionTTLMaxSecs)
	setBool(getenv, "SEND_REASONING_BACK_ON_RESPONSES_WIRE", &cfg.SendReasoningBackOnResponsesWire)
	setBool(getenv, "DEBUG_TOOL_ID_MATCHING", &cfg.DebugToolIDMatching)
	setString(getenv, "LOG_LEVEL", &cfg.LogLevel)
	setFloat(getenv, "UPSTREAM_RATE_LIMIT_RPS", &cfg.UpstreamRateLimitRPS)
	setInt(getenv, "UPSTREAM_RATE_LIMIT_BURST", &cfg.UpstreamRateLimitBurst)
	setBool(getenv, "TELEMETRY_ENABLED", &cfg.TelemetryEnabled)
	setString(getenv, "OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	if v := getenv("WIRE_API"); v != "" {
		cfg.WireAPI = WireAPI(v)
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("STREAM_REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.StreamRequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("SESSION_CLEANUP_INTERVAL_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.SessionCleanupInterval = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("REQUEST_BODY_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RequestBodyMaxSize = n
		}
	}

	// CUSTOM_HEADER_<NAME>=value -> header "<Name-With-Dashes>"
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, customHeaderPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		name := kv[len(customHeaderPrefix):eq]
		value := kv[eq+1:]
		cfg.CustomHeaders[headerCase(name)] = value
	}
}

// headerCase turns "X_REQUEST_ID" into "X-Request-Id".
func headerCase(envName string) string {
	parts := strings.Split(envName, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(getenv func(string) string, key string, dst *float64) {
	if v := getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(getenv func(string) string, key string, dst *bool) {
	if v := getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate reports configuration combinations the bridge cannot start with.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	if c.OpenAIBaseURL == "" {
		return fmt.Errorf("config: OPENAI_BASE_URL is required")
	}
	if c.WireAPI != WireChatCompletions && c.WireAPI != WireResponses {
		return fmt.Errorf("config: wire_api must be %q or %q, got %q", WireChatCompletions, WireResponses, c.WireAPI)
	}
	if c.SessionTTLMinSecs <= 0 || c.SessionTTLMaxSecs < c.SessionTTLMinSecs {
		return fmt.Errorf("config: session_ttl_min_secs/session_ttl_max_secs must satisfy 0 < min <= max")
	}
	return nil
}
