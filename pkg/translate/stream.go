package translate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/openairesponses"
	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
	"github.com/meridianhq/anthropic-bridge/pkg/partialjson"
	"github.com/meridianhq/anthropic-bridge/pkg/sse"
)

// StreamOptions configures the Stream Translator.
type StreamOptions struct {
	ClientModel         string
	DebugToolIDMatching bool
	ThinkingRequested   bool
	Logger              *slog.Logger
}

// toolBlock tracks one tool_use content block across the life of a stream:
// its assigned Anthropic index, its encoded id, and the raw-argument
// buffer accumulated from upstream deltas.
type toolBlock struct {
	anthropicIndex int
	encodedID      string
	name           string
	argBuf         strings.Builder
	argsComplete   bool
}

// blockWriter owns emitting the Anthropic SSE event sequence and tracking
// which content-block indices are currently open, so the caller only has
// to describe "what happened" (a text delta, a tool argument fragment, a
// finish) without re-deriving event framing at each call site.
//
// At most one of the text block and the thinking block is open at a time:
// opening one closes the other first, and both close before a tool_use
// block opens, matching the block-lifecycle ordering the client expects
// (every content_block_start{index:i} is fully closed before a
// larger-index block opens). Tool_use blocks, once opened, stay open
// until stream end.
type blockWriter struct {
	w          *sse.Writer
	started    bool
	nextIndex  int
	textIndex  *int
	thinkIndex *int
	tools      map[string]*toolBlock // keyed by toolCallKey (chat wire) or item_id (responses wire)
	toolOrder  []string

	messageID   string
	clientModel string

	thinkingRequested       bool
	thinkingEverOpened      bool
	thinkingFallbackEmitted bool
	finishReasonSoFar       string
	hadToolCallsSoFar       bool
	logger                  *slog.Logger

	inputTokens  int
	outputTokens int
	cacheRead    int
}

func newBlockWriter(w *sse.Writer, opts StreamOptions) *blockWriter {
	return &blockWriter{
		w:                 w,
		tools:             make(map[string]*toolBlock),
		thinkingRequested: opts.ThinkingRequested,
		logger:            opts.Logger,
	}
}

func (bw *blockWriter) ensureStarted(clientModel string) error {
	if bw.started {
		return nil
	}
	bw.started = true
	bw.messageID = newMessageID()
	bw.clientModel = clientModel

	body, _ := json.Marshal(anthropicapi.MessageStartEvent{
		Type: anthropicapi.EventMessageStart,
		Message: anthropicapi.MessageStartBody{
			ID:      bw.messageID,
			Type:    "message",
			Role:    "assistant",
			Model:   clientModel,
			Content: []anthropicapi.ContentBlock{},
			Usage:   anthropicapi.Usage{},
		},
	})
	return bw.w.WriteNamedJSON(anthropicapi.EventMessageStart, body)
}

// emitBlockStop writes content_block_stop for idx. It does not touch any
// blockWriter bookkeeping; callers clear their own index trackers.
func (bw *blockWriter) emitBlockStop(idx int) error {
	body, _ := json.Marshal(anthropicapi.ContentBlockStopEvent{Type: anthropicapi.EventContentBlockStop, Index: idx})
	return bw.w.WriteNamedJSON(anthropicapi.EventContentBlockStop, body)
}

// closeTextBlockIfOpen closes the open text block, if any, per §4.4's rule
// that a block fully closes before any later block opens.
func (bw *blockWriter) closeTextBlockIfOpen() error {
	if bw.textIndex == nil {
		return nil
	}
	idx := *bw.textIndex
	bw.textIndex = nil
	return bw.emitBlockStop(idx)
}

// closeThinkingBlockIfOpen closes the open thinking block, if any.
func (bw *blockWriter) closeThinkingBlockIfOpen() error {
	if bw.thinkIndex == nil {
		return nil
	}
	idx := *bw.thinkIndex
	bw.thinkIndex = nil
	return bw.emitBlockStop(idx)
}

func (bw *blockWriter) ensureTextBlock() (int, error) {
	if bw.textIndex != nil {
		return *bw.textIndex, nil
	}
	if err := bw.closeThinkingBlockIfOpen(); err != nil {
		return 0, err
	}
	if err := bw.maybeEmitThinkingFallback(); err != nil {
		return 0, err
	}

	idx := bw.nextIndex
	bw.nextIndex++
	bw.textIndex = &idx

	body, _ := json.Marshal(anthropicapi.ContentBlockStartEvent{
		Type:         anthropicapi.EventContentBlockStart,
		Index:        idx,
		ContentBlock: anthropicapi.ContentBlock{Type: anthropicapi.BlockTypeText, Text: ""},
	})
	return idx, bw.w.WriteNamedJSON(anthropicapi.EventContentBlockStart, body)
}

func (bw *blockWriter) ensureThinkingBlock() (int, error) {
	if bw.thinkIndex != nil {
		return *bw.thinkIndex, nil
	}
	if err := bw.closeTextBlockIfOpen(); err != nil {
		return 0, err
	}
	bw.thinkingEverOpened = true

	idx := bw.nextIndex
	bw.nextIndex++
	bw.thinkIndex = &idx

	body, _ := json.Marshal(anthropicapi.ContentBlockStartEvent{
		Type:         anthropicapi.EventContentBlockStart,
		Index:        idx,
		ContentBlock: anthropicapi.ContentBlock{Type: anthropicapi.BlockTypeThinking, Thinking: ""},
	})
	return idx, bw.w.WriteNamedJSON(anthropicapi.EventContentBlockStart, body)
}

func (bw *blockWriter) ensureToolBlock(key, upstreamID, name string) (*toolBlock, error) {
	if tb, ok := bw.tools[key]; ok {
		return tb, nil
	}

	// §4.4: on first sighting of a tool call, close any open text/thinking
	// block before opening the tool_use block.
	if err := bw.closeTextBlockIfOpen(); err != nil {
		return nil, err
	}
	if err := bw.closeThinkingBlockIfOpen(); err != nil {
		return nil, err
	}
	if err := bw.maybeEmitThinkingFallback(); err != nil {
		return nil, err
	}

	idx := bw.nextIndex
	bw.nextIndex++
	tb := &toolBlock{anthropicIndex: idx, encodedID: EncodeToolUseID(upstreamID), name: name}
	bw.tools[key] = tb
	bw.toolOrder = append(bw.toolOrder, key)

	body, _ := json.Marshal(anthropicapi.ContentBlockStartEvent{
		Type:  anthropicapi.EventContentBlockStart,
		Index: idx,
		ContentBlock: anthropicapi.ContentBlock{
			Type:  anthropicapi.BlockTypeToolUse,
			ID:    tb.encodedID,
			Name:  name,
			Input: json.RawMessage("{}"),
		},
	})
	return tb, bw.w.WriteNamedJSON(anthropicapi.EventContentBlockStart, body)
}

// maybeEmitThinkingFallback synthesizes an empty thinking block at index 0
// the first time any other block is about to open (or at stream end, if
// nothing ever opened), when the client asked for thinking but the
// upstream never sent a reasoning delta. It is a no-op once thinking has
// genuinely opened, or once the fallback itself has already fired.
func (bw *blockWriter) maybeEmitThinkingFallback() error {
	if !bw.thinkingRequested || bw.thinkingEverOpened || bw.thinkingFallbackEmitted {
		return nil
	}
	bw.thinkingFallbackEmitted = true

	idx := bw.nextIndex
	bw.nextIndex++

	startBody, _ := json.Marshal(anthropicapi.ContentBlockStartEvent{
		Type:         anthropicapi.EventContentBlockStart,
		Index:        idx,
		ContentBlock: anthropicapi.ContentBlock{Type: anthropicapi.BlockTypeThinking, Thinking: ""},
	})
	if err := bw.w.WriteNamedJSON(anthropicapi.EventContentBlockStart, startBody); err != nil {
		return err
	}
	if err := bw.emitBlockStop(idx); err != nil {
		return err
	}

	if bw.logger != nil {
		bw.logger.Info("phase=thinking_fallback_start",
			"model", bw.clientModel,
			"message_id", bw.messageID,
			"index", idx,
			"stop_reason", bw.finishReasonSoFar,
			"any_tool_seen", bw.hadToolCallsSoFar,
		)
	}
	return nil
}

func (bw *blockWriter) writeTextDelta(index int, text string) error {
	body, _ := json.Marshal(anthropicapi.ContentBlockDeltaEvent{
		Type:  anthropicapi.EventContentBlockDelta,
		Index: index,
		Delta: anthropicapi.Delta{Type: anthropicapi.DeltaTypeText, Text: text},
	})
	return bw.w.WriteNamedJSON(anthropicapi.EventContentBlockDelta, body)
}

func (bw *blockWriter) writeThinkingDelta(index int, text string) error {
	body, _ := json.Marshal(anthropicapi.ContentBlockDeltaEvent{
		Type:  anthropicapi.EventContentBlockDelta,
		Index: index,
		Delta: anthropicapi.Delta{Type: anthropicapi.DeltaTypeThinking, Thinking: text},
	})
	return bw.w.WriteNamedJSON(anthropicapi.EventContentBlockDelta, body)
}

func (bw *blockWriter) writeInputJSONDelta(index int, partialJSON string) error {
	body, _ := json.Marshal(anthropicapi.ContentBlockDeltaEvent{
		Type:  anthropicapi.EventContentBlockDelta,
		Index: index,
		Delta: anthropicapi.Delta{Type: anthropicapi.DeltaTypeInputJSON, PartialJSON: partialJSON},
	})
	return bw.w.WriteNamedJSON(anthropicapi.EventContentBlockDelta, body)
}

// feedToolArgs appends a fragment to the tool block's argument buffer and,
// the first time the accumulated buffer parses as a complete JSON value,
// emits it as a single input_json_delta. Fragments that arrive after the
// buffer has already gone complete are still accumulated (some upstreams
// keep streaming trailing whitespace) but never re-emitted.
func (bw *blockWriter) feedToolArgs(tb *toolBlock, fragment string, logger *slog.Logger, debug bool) error {
	if fragment == "" {
		return nil
	}
	tb.argBuf.WriteString(fragment)

	if tb.argsComplete {
		return nil
	}

	if partialjson.IsCompleteObject(tb.argBuf.String()) {
		tb.argsComplete = true
		if debug {
			upstreamID, _ := DecodeToolUseID(tb.encodedID)
			logToolIDDecision(logger, debug, "stream-emit", tb.encodedID, upstreamID)
		}
		return bw.writeInputJSONDelta(tb.anthropicIndex, tb.argBuf.String())
	}

	return nil
}

// closeOpenBlocks repairs any tool call whose arguments never validated on
// their own, then closes every still-open block (text/thinking, if one
// remains, plus every tool_use block) in descending index order, per
// §4.4's termination rule.
func (bw *blockWriter) closeOpenBlocks() error {
	for _, key := range bw.toolOrder {
		tb := bw.tools[key]
		if !tb.argsComplete {
			repaired := partialjson.Repair(tb.argBuf.String())
			if repaired == "" {
				repaired = "{}"
			}
			if err := bw.writeInputJSONDelta(tb.anthropicIndex, repaired); err != nil {
				return err
			}
			tb.argsComplete = true
		}
	}

	var indices []int
	if bw.textIndex != nil {
		indices = append(indices, *bw.textIndex)
	}
	if bw.thinkIndex != nil {
		indices = append(indices, *bw.thinkIndex)
	}
	for _, key := range bw.toolOrder {
		indices = append(indices, bw.tools[key].anthropicIndex)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	for _, idx := range indices {
		if err := bw.emitBlockStop(idx); err != nil {
			return err
		}
	}
	bw.textIndex = nil
	bw.thinkIndex = nil

	return nil
}

func (bw *blockWriter) finish(stopReason string) error {
	body, _ := json.Marshal(anthropicapi.MessageDeltaEvent{
		Type:  anthropicapi.EventMessageDelta,
		Delta: anthropicapi.MessageDeltaBody{StopReason: stopReason},
		Usage: anthropicapi.MessageDeltaUsage{OutputTokens: bw.outputTokens},
	})
	if err := bw.w.WriteNamedJSON(anthropicapi.EventMessageDelta, body); err != nil {
		return err
	}

	stop, _ := json.Marshal(anthropicapi.MessageStopEvent{Type: anthropicapi.EventMessageStop})
	return bw.w.WriteNamedJSON(anthropicapi.EventMessageStop, stop)
}

// StreamChat reads an upstream chat-completions SSE body and writes the
// equivalent Anthropic-shaped SSE event sequence to w.
func StreamChat(ctx context.Context, body io.Reader, w *sse.Writer, opts StreamOptions) error {
	parser := sse.NewParser(body)
	bw := newBlockWriter(w, opts)

	var finishReason *string
	hadToolCalls := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if sse.IsDone(event) {
			break
		}
		if strings.TrimSpace(event.Data) == "" {
			continue
		}

		var chunk openaiwire.ChatStreamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			continue // upstream sent a non-JSON keepalive line; ignore
		}

		if err := bw.ensureStarted(opts.ClientModel); err != nil {
			return err
		}

		if chunk.Usage != nil {
			bw.inputTokens = chunk.Usage.PromptTokens
			bw.outputTokens = chunk.Usage.CompletionTokens
			if chunk.Usage.PromptDetails != nil {
				bw.cacheRead = chunk.Usage.PromptDetails.CachedTokens
			}
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil {
				finishReason = choice.FinishReason
				bw.finishReasonSoFar = *choice.FinishReason
			}

			if choice.Delta.Content != "" {
				idx, err := bw.ensureTextBlock()
				if err != nil {
					return err
				}
				if err := bw.writeTextDelta(idx, choice.Delta.Content); err != nil {
					return err
				}
			}

			if reasoning := extractReasoningDelta(choice.Delta); reasoning != "" {
				idx, err := bw.ensureThinkingBlock()
				if err != nil {
					return err
				}
				if err := bw.writeThinkingDelta(idx, reasoning); err != nil {
					return err
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				hadToolCalls = true
				bw.hadToolCallsSoFar = true
				key := toolCallKey(tc)
				tb, err := bw.ensureToolBlock(key, firstNonEmpty(tc.ID, key), tc.Function.Name)
				if err != nil {
					return err
				}
				if tc.Function.Name != "" && tb.name == "" {
					tb.name = tc.Function.Name
				}
				if err := bw.feedToolArgs(tb, tc.Function.Arguments, opts.Logger, opts.DebugToolIDMatching); err != nil {
					return err
				}
			}
		}
	}

	if !bw.started {
		// Upstream produced nothing at all; still emit a well-formed, empty
		// Anthropic stream rather than leaving the client hanging.
		if err := bw.ensureStarted(opts.ClientModel); err != nil {
			return err
		}
	}

	if err := bw.maybeEmitThinkingFallback(); err != nil {
		return err
	}

	if err := bw.closeOpenBlocks(); err != nil {
		return err
	}

	return bw.finish(chatFinishReasonToAnthropic(finishReason, hadToolCalls))
}

// toolCallKey returns a stable key for correlating a streamed tool-call
// delta with its block: the upstream assigns an id only on the delta that
// introduces the call, so every delta for the same call is identified by
// its positional Index; the id is the key only when no Index is present.
func toolCallKey(tc openaiwire.ToolCall) string {
	if tc.Index != nil {
		return "idx:" + strconv.Itoa(*tc.Index)
	}
	if tc.ID != "" {
		return tc.ID
	}
	return "idx:0"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractReasoningDelta normalizes the several shapes an upstream may use
// to stream reasoning/thinking content: a flat reasoning_content string,
// or a reasoning field that is itself either a bare string or an object
// with content/text/summary.
func extractReasoningDelta(delta openaiwire.ChatDelta) string {
	if delta.ReasoningContent != "" {
		return delta.ReasoningContent
	}
	if len(delta.Reasoning) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(delta.Reasoning, &s); err == nil {
		return s
	}

	var obj openaiwire.ReasoningObject
	if err := json.Unmarshal(delta.Reasoning, &obj); err == nil {
		return firstNonEmpty(obj.Content, obj.Text, obj.Summary)
	}

	return ""
}

// StreamResponses reads an upstream responses-wire SSE body and writes the
// equivalent Anthropic-shaped SSE event sequence to w.
func StreamResponses(ctx context.Context, body io.Reader, w *sse.Writer, opts StreamOptions) error {
	parser := sse.NewParser(body)
	bw := newBlockWriter(w, opts)

	stopReason := anthropicapi.StopReasonEndTurn
	hadToolCalls := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := parser.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(event.Data) == "" {
			continue
		}

		var ev openairesponses.StreamEvent
		if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
			continue
		}

		if err := bw.ensureStarted(opts.ClientModel); err != nil {
			return err
		}

		switch ev.Type {
		case openairesponses.EventOutputTextDelta:
			idx, err := bw.ensureTextBlock()
			if err != nil {
				return err
			}
			if err := bw.writeTextDelta(idx, ev.Delta); err != nil {
				return err
			}

		case openairesponses.EventFunctionCallArgsDelta:
			hadToolCalls = true
			bw.hadToolCallsSoFar = true
			tb, err := bw.ensureToolBlock(ev.ItemID, ev.CallID, "")
			if err != nil {
				return err
			}
			if err := bw.feedToolArgs(tb, ev.Delta, opts.Logger, opts.DebugToolIDMatching); err != nil {
				return err
			}

		case openairesponses.EventOutputItemAdded:
			if ev.Item != nil && ev.Item.Type == openairesponses.OutputTypeFunctionCall {
				hadToolCalls = true
				bw.hadToolCallsSoFar = true
				if _, err := bw.ensureToolBlock(ev.ItemID, ev.Item.CallID, ev.Item.Name); err != nil {
					return err
				}
			}

		case openairesponses.EventOutputItemDone:
			if ev.Item != nil && ev.Item.Type == openairesponses.OutputTypeFunctionCall {
				if tb, ok := bw.tools[ev.ItemID]; ok && tb.name == "" {
					tb.name = ev.Item.Name
				}
			}

		case openairesponses.EventCompleted:
			if ev.Response != nil {
				if ev.Response.Usage != nil {
					bw.inputTokens = ev.Response.Usage.InputTokens
					bw.outputTokens = ev.Response.Usage.OutputTokens
					if ev.Response.Usage.InputTokensDetails != nil {
						bw.cacheRead = ev.Response.Usage.InputTokensDetails.CachedTokens
					}
				}
				if ev.Response.IncompleteDetails != nil && ev.Response.IncompleteDetails.Reason == "max_output_tokens" {
					stopReason = anthropicapi.StopReasonMaxTokens
				}
			}
		}
	}

	if hadToolCalls && stopReason == anthropicapi.StopReasonEndTurn {
		stopReason = anthropicapi.StopReasonToolUse
	}
	bw.finishReasonSoFar = stopReason

	if !bw.started {
		if err := bw.ensureStarted(opts.ClientModel); err != nil {
			return err
		}
	}

	if err := bw.maybeEmitThinkingFallback(); err != nil {
		return err
	}

	if err := bw.closeOpenBlocks(); err != nil {
		return err
	}

	return bw.finish(stopReason)
}
