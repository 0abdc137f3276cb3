// Package telemetry provides OpenTelemetry integration for the bridge: the
// OTLP tracer provider, tracer selection and the RecordSpan helper. The
// bridge's HTTP handlers and upstream client do not call the span helpers,
// so requests are not wrapped in spans.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures telemetry for the bridge. Telemetry is disabled by
// default and must be explicitly enabled.
type Settings struct {
	// IsEnabled controls whether telemetry is active. Defaults to false.
	IsEnabled bool

	// RecordInputs controls whether request bodies are recorded in spans.
	// Disable to avoid recording sensitive prompt content.
	RecordInputs bool

	// RecordOutputs controls whether response bodies are recorded in spans.
	RecordOutputs bool

	// FunctionID groups telemetry by call site (e.g. "messages.stream").
	FunctionID string

	// Metadata holds additional key-value pairs attached to every span.
	Metadata map[string]attribute.Value

	// Tracer is a custom tracer. If nil, the global tracer is used.
	Tracer trace.Tracer
}

// DefaultSettings returns Settings with telemetry disabled and recording
// enabled for when it is turned on.
func DefaultSettings() *Settings {
	return &Settings{
		IsEnabled:     false,
		RecordInputs:  true,
		RecordOutputs: true,
		Metadata:      make(map[string]attribute.Value),
	}
}

// WithEnabled returns a copy of Settings with IsEnabled set.
func (s *Settings) WithEnabled(enabled bool) *Settings {
	c := *s
	c.IsEnabled = enabled
	return &c
}

// WithRecordInputs returns a copy of Settings with RecordInputs set.
func (s *Settings) WithRecordInputs(record bool) *Settings {
	c := *s
	c.RecordInputs = record
	return &c
}

// WithRecordOutputs returns a copy of Settings with RecordOutputs set.
func (s *Settings) WithRecordOutputs(record bool) *Settings {
	c := *s
	c.RecordOutputs = record
	return &c
}

// WithFunctionID returns a copy of Settings with FunctionID set.
func (s *Settings) WithFunctionID(id string) *Settings {
	c := *s
	c.FunctionID = id
	return &c
}

// WithTracer returns a copy of Settings with Tracer set.
func (s *Settings) WithTracer(tracer trace.Tracer) *Settings {
	c := *s
	c.Tracer = tracer
	return &c
}
