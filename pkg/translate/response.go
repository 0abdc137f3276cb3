package translate

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/openairesponses"
	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
)

// newMessageID generates the id the bridge reports for a translated
// response, since the upstream's own completion id has no meaning to an
// Anthropic-format client.
func newMessageID() string {
	return "msg_" + uuid.NewString()
}

// FromChatResponse converts a non-streaming chat-completions response
// into an Anthropic response reported as clientModel.
func FromChatResponse(resp openaiwire.ChatResponse, clientModel string) anthropicapi.Response {
	out := anthropicapi.Response{
		ID:    newMessageID(),
		Type:  "message",
		Role:  "assistant",
		Model: clientModel,
	}

	if len(resp.Choices) == 0 {
		out.StopReason = anthropicapi.StopReasonEndTurn
		return out
	}

	choice := resp.Choices[0]

	if text := chatMessageText(choice.Message.Content); text != "" {
		out.Content = append(out.Content, anthropicapi.ContentBlock{
			Type: anthropicapi.BlockTypeText,
			Text: text,
		})
	}

	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, anthropicapi.ContentBlock{
			Type:  anthropicapi.BlockTypeToolUse,
			ID:    EncodeToolUseID(tc.ID),
			Name:  tc.Function.Name,
			Input: rawOrEmptyObject(tc.Function.Arguments),
		})
	}

	out.StopReason = chatFinishReasonToAnthropic(choice.FinishReason, len(choice.Message.ToolCalls) > 0)

	if resp.Usage != nil {
		out.Usage = anthropicapi.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		if resp.Usage.PromptDetails != nil {
			out.Usage.CacheReadInputTokens = resp.Usage.PromptDetails.CachedTokens
		}
	}

	return out
}

// chatMessageText extracts the text of a chat message's content, which an
// upstream may render as either a bare string or an array of content parts
// (text and image parts interleaved); per spec, array parts are concatenated.
func chatMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []openaiwire.ContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var out string
		for _, p := range parts {
			out += p.Text
		}
		return out
	}

	return ""
}

func chatFinishReasonToAnthropic(reason *string, hasToolCalls bool) string {
	if hasToolCalls {
		return anthropicapi.StopReasonToolUse
	}
	if reason == nil {
		return anthropicapi.StopReasonEndTurn
	}
	switch *reason {
	case openaiwire.FinishReasonLength:
		return anthropicapi.StopReasonMaxTokens
	case openaiwire.FinishReasonToolCalls:
		return anthropicapi.StopReasonToolUse
	default:
		return anthropicapi.StopReasonEndTurn
	}
}

func rawOrEmptyObject(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

// FromResponsesResponse converts a non-streaming responses-wire response
// into an Anthropic response reported as clientModel.
func FromResponsesResponse(resp openairesponses.Response, clientModel string) anthropicapi.Response {
	out := anthropicapi.Response{
		ID:    newMessageID(),
		Type:  "message",
		Role:  "assistant",
		Model: clientModel,
	}

	hasToolCall := false

	for _, item := range resp.Output {
		switch item.Type {
		case openairesponses.OutputTypeMessage:
			for _, part := range item.Content {
				if part.Text != "" {
					out.Content = append(out.Content, anthropicapi.ContentBlock{
						Type: anthropicapi.BlockTypeText,
						Text: part.Text,
					})
				}
			}
		case openairesponses.OutputTypeFunctionCall:
			hasToolCall = true
			out.Content = append(out.Content, anthropicapi.ContentBlock{
				Type:  anthropicapi.BlockTypeToolUse,
				ID:    EncodeToolUseID(item.CallID),
				Name:  item.Name,
				Input: rawOrEmptyObject(item.Arguments),
			})
		case openairesponses.OutputTypeReasoning:
			thinking := ""
			for _, s := range item.Summary {
				thinking += s.Text
			}
			if thinking != "" || item.EncryptedContent != "" {
				out.Content = append(out.Content, anthropicapi.ContentBlock{
					Type:      anthropicapi.BlockTypeThinking,
					Thinking:  thinking,
					Signature: item.EncryptedContent,
				})
			}
		}
	}

	switch {
	case hasToolCall:
		out.StopReason = anthropicapi.StopReasonToolUse
	case resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason == "max_output_tokens":
		out.StopReason = anthropicapi.StopReasonMaxTokens
	default:
		out.StopReason = anthropicapi.StopReasonEndTurn
	}

	if resp.Usage != nil {
		out.Usage = anthropicapi.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
		if resp.Usage.InputTokensDetails != nil {
			out.Usage.CacheReadInputTokens = resp.Usage.InputTokensDetails.CachedTokens
		}
	}

	return out
}
