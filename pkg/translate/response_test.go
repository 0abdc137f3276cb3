package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/openairesponses"
	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
)

func TestFromChatResponse_TextOnly(t *testing.T) {
	finish := openaiwire.FinishReasonStop
	resp := openaiwire.ChatResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o",
		Choices: []openaiwire.ChatChoice{
			{Message: openaiwire.Message{Role: "assistant", Content: rawStr("hello there")}, FinishReason: &finish},
		},
		Usage: &openaiwire.ChatUsage{PromptTokens: 10, CompletionTokens: 5},
	}

	out := FromChatResponse(resp, "claude-3-5-sonnet")

	assert.True(t, strings.HasPrefix(out.ID, "msg_"))
	assert.Equal(t, "claude-3-5-sonnet", out.Model)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "hello there", out.Content[0].Text)
	assert.Equal(t, anthropicapi.StopReasonEndTurn, out.StopReason)
	assert.Equal(t, 10, out.Usage.InputTokens)
	assert.Equal(t, 5, out.Usage.OutputTokens)
}

func TestFromChatResponse_ToolCallsSetsToolUseStopReason(t *testing.T) {
	finish := openaiwire.FinishReasonToolCalls
	resp := openaiwire.ChatResponse{
		Choices: []openaiwire.ChatChoice{
			{
				Message: openaiwire.Message{
					Role: "assistant",
					ToolCalls: []openaiwire.ToolCall{
						{ID: "call_1", Function: openaiwire.FunctionCall{Name: "get_weather", Arguments: `{"city":"SF"}`}},
					},
				},
				FinishReason: &finish,
			},
		},
	}

	out := FromChatResponse(resp, "claude-3-5-sonnet")

	require.Len(t, out.Content, 1)
	assert.Equal(t, anthropicapi.BlockTypeToolUse, out.Content[0].Type)
	assert.Equal(t, EncodeToolUseID("call_1"), out.Content[0].ID)
	assert.Equal(t, anthropicapi.StopReasonToolUse, out.StopReason)
}

func TestFromChatResponse_LengthFinishReasonMapsToMaxTokens(t *testing.T) {
	finish := openaiwire.FinishReasonLength
	resp := openaiwire.ChatResponse{
		Choices: []openaiwire.ChatChoice{
			{Message: openaiwire.Message{Role: "assistant", Content: rawStr("truncated")}, FinishReason: &finish},
		},
	}

	out := FromChatResponse(resp, "claude-3-5-sonnet")
	assert.Equal(t, anthropicapi.StopReasonMaxTokens, out.StopReason)
}

func TestFromChatResponse_NoChoicesStillProducesValidResponse(t *testing.T) {
	out := FromChatResponse(openaiwire.ChatResponse{}, "claude-3-5-sonnet")
	assert.Equal(t, anthropicapi.StopReasonEndTurn, out.StopReason)
	assert.Empty(t, out.Content)
}

func TestFromResponsesResponse_TextAndToolCall(t *testing.T) {
	resp := openairesponses.Response{
		Output: []openairesponses.OutputItem{
			{Type: openairesponses.OutputTypeMessage, Content: []openairesponses.ContentPart{{Type: "output_text", Text: "the answer is 42"}}},
			{Type: openairesponses.OutputTypeFunctionCall, CallID: "call_9", Name: "lookup", Arguments: `{"q":"42"}`},
		},
		Usage: &openairesponses.Usage{InputTokens: 20, OutputTokens: 8},
	}

	out := FromResponsesResponse(resp, "claude-3-5-sonnet")

	require.Len(t, out.Content, 2)
	assert.Equal(t, "the answer is 42", out.Content[0].Text)
	assert.Equal(t, anthropicapi.BlockTypeToolUse, out.Content[1].Type)
	assert.Equal(t, anthropicapi.StopReasonToolUse, out.StopReason)
	assert.Equal(t, 20, out.Usage.InputTokens)
}

func TestFromResponsesResponse_ReasoningBlockBecomesThinking(t *testing.T) {
	resp := openairesponses.Response{
		Output: []openairesponses.OutputItem{
			{Type: openairesponses.OutputTypeReasoning, Summary: []openairesponses.ContentPart{{Text: "step one"}, {Text: "step two"}}},
		},
	}

	out := FromResponsesResponse(resp, "claude-3-5-sonnet")

	require.Len(t, out.Content, 1)
	assert.Equal(t, anthropicapi.BlockTypeThinking, out.Content[0].Type)
	assert.Equal(t, "step onestep two", out.Content[0].Thinking)
}

func TestFromResponsesResponse_IncompleteMaxTokens(t *testing.T) {
	resp := openairesponses.Response{
		IncompleteDetails: &openairesponses.IncompleteDetails{Reason: "max_output_tokens"},
	}

	out := FromResponsesResponse(resp, "claude-3-5-sonnet")
	assert.Equal(t, anthropicapi.StopReasonMaxTokens, out.StopReason)
}
