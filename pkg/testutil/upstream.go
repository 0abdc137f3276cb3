// Package testutil provides a fake upstream HTTP transport for exercising
// the Upstream Client and handlers without a real OpenAI-compatible
// backend, in the teacher's style of hand-rolled test doubles over a
// dedicated mocking library.
package testutil

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// ScriptedResponse is one canned reply a RoundTripper serves.
type ScriptedResponse struct {
	Status      int
	Body        string
	ContentType string
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// FakeUpstream is an http.RoundTripper that serves a queued sequence of
// ScriptedResponses, one per request, and records every request it saw so
// tests can assert on outbound headers and bodies.
type FakeUpstream struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	next      int
	Requests  []*http.Request
	Bodies    []string
}

// NewFakeUpstream builds a FakeUpstream that will serve responses in order,
// repeating the last one once exhausted.
func NewFakeUpstream(responses ...ScriptedResponse) *FakeUpstream {
	return &FakeUpstream{responses: responses}
}

// Client returns an *http.Client backed by this transport.
func (f *FakeUpstream) Client() *http.Client {
	return &http.Client{Transport: f}
}

// RoundTrip implements http.RoundTripper.
func (f *FakeUpstream) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		f.Bodies = append(f.Bodies, string(body))
	} else {
		f.Bodies = append(f.Bodies, "")
	}

	if len(f.responses) == 0 {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("{}")),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}

	idx := f.next
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	} else {
		f.next++
	}
	scripted := f.responses[idx]

	contentType := scripted.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	return &http.Response{
		StatusCode: scripted.Status,
		Body:       io.NopCloser(strings.NewReader(scripted.Body)),
		Header:     http.Header{"Content-Type": []string{contentType}},
	}, nil
}

// LastRequest returns the most recently recorded request, or nil.
func (f *FakeUpstream) LastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return nil
	}
	return f.Requests[len(f.Requests)-1]
}
