package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ReadsEventAndData(t *testing.T) {
	raw := "event: message\ndata: {\"hello\":\"world\"}\n\n"
	p := NewParser(strings.NewReader(raw))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Event)
	assert.Equal(t, `{"hello":"world"}`, ev.Data)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_MultilineDataJoinedWithNewline(t *testing.T) {
	raw := "data: line one\ndata: line two\n\n"
	p := NewParser(strings.NewReader(raw))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", ev.Data)
}

func TestParser_SkipsCommentLines(t *testing.T) {
	raw := ": this is a comment\ndata: real\n\n"
	p := NewParser(strings.NewReader(raw))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "real", ev.Data)
}

func TestParser_MultipleEvents(t *testing.T) {
	raw := "data: one\n\ndata: two\n\n"
	p := NewParser(strings.NewReader(raw))

	ev1, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", ev1.Data)

	ev2, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", ev2.Data)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_TrailingEventWithoutBlankLine(t *testing.T) {
	raw := "data: no trailing newline"
	p := NewParser(strings.NewReader(raw))

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "no trailing newline", ev.Data)
}

func TestIsDone(t *testing.T) {
	assert.True(t, IsDone(&Event{Data: "[DONE]"}))
	assert.True(t, IsDone(&Event{Data: "  [DONE]  "}))
	assert.False(t, IsDone(&Event{Data: "{}"}))
	assert.False(t, IsDone(nil))
}

func TestWriter_WriteEventFormatsWireShape(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteEvent(Event{Event: "message_start", Data: `{"type":"message_start"}`})
	require.NoError(t, err)

	assert.Equal(t, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n", buf.String())
}

func TestWriter_WriteNamedJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteNamedJSON("content_block_delta", []byte(`{"index":0}`))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "event: content_block_delta\n")
	assert.Contains(t, buf.String(), `data: {"index":0}`)
}

func TestWriter_MultilineDataSplitAcrossDataFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteEvent(Event{Data: "line one\nline two"})
	require.NoError(t, err)

	assert.Equal(t, "data: line one\ndata: line two\n\n", buf.String())
}
