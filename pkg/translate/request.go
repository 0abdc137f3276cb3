// Package translate implements the bridge's core translation engine: the
// Request Translator, Response Translator, and Stream Translator that
// convert between the Anthropic Messages wire shape and an OpenAI-
// compatible upstream's chat-completions or responses wire shape.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/openairesponses"
	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
)

// Options configures request translation behavior that depends on bridge
// configuration rather than on the request itself.
type Options struct {
	SendReasoningBackOnResponsesWire bool

	// MinThinkingLevel floors the derived reasoning effort (low|medium|high)
	// whenever the request enables thinking.
	MinThinkingLevel string
}

// thinkingLevelRank orders effort levels so the derived level and the
// configured floor can be maxed against each other.
var thinkingLevelRank = map[string]int{"low": 0, "medium": 1, "high": 2}

// deriveThinkingLevel maps a thinking budget to an effort level, per
// budget_tokens<2048 -> low, <8192 -> medium, else high, then floors it at
// the configured minimum.
func deriveThinkingLevel(budgetTokens int, minLevel string) string {
	level := "high"
	switch {
	case budgetTokens < 2048:
		level = "low"
	case budgetTokens < 8192:
		level = "medium"
	}

	if thinkingLevelRank[minLevel] > thinkingLevelRank[level] {
		return minLevel
	}
	return level
}

// modelSupportsReasoning reports whether upstreamModel is known to accept a
// reasoning-effort parameter at all; models outside this family silently
// drop or reject it.
func modelSupportsReasoning(upstreamModel string) bool {
	lower := strings.ToLower(upstreamModel)
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5", "deepseek-r1"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// blockList decodes an Anthropic message's polymorphic content field
// (either a bare string or an array of content blocks) into a normalized
// slice of blocks.
func blockList(raw json.RawMessage) ([]anthropicapi.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []anthropicapi.ContentBlock{{Type: anthropicapi.BlockTypeText, Text: s}}, nil
	}

	var blocks []anthropicapi.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("message content is neither a string nor a content block array: %w", err)
	}
	return blocks, nil
}

func systemText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var blocks []anthropicapi.SystemBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("system is neither a string nor an array of blocks: %w", err)
	}
	out := ""
	for i, b := range blocks {
		if i > 0 {
			out += "\n\n"
		}
		out += b.Text
	}
	return out, nil
}

func imageDataURI(src *anthropicapi.ImageSource) string {
	if src == nil {
		return ""
	}
	if src.URL != "" {
		return src.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)
}

func toolChoiceForChat(tc *anthropicapi.ToolChoice) any {
	if tc == nil {
		return nil
	}
	switch tc.Type {
	case "auto":
		return "auto"
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Name},
		}
	default:
		return "auto"
	}
}

// ToChatRequest converts an Anthropic request into an OpenAI
// chat-completions request targeting upstreamModel.
func ToChatRequest(req anthropicapi.Request, upstreamModel string, opts Options) (openaiwire.ChatRequest, error) {
	out := openaiwire.ChatRequest{
		Model:            upstreamModel,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		FrequencyPenalty: nil,
		PresencePenalty:  nil,
		Stop:             req.StopSequences,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}

	sys, err := systemText(req.System)
	if err != nil {
		return out, err
	}
	if sys != "" {
		out.Messages = append(out.Messages, openaiwire.Message{
			Role:    "system",
			Content: mustRawString(sys),
		})
	}

	for _, msg := range req.Messages {
		converted, err := chatMessagesFromTurn(msg)
		if err != nil {
			return out, err
		}
		out.Messages = append(out.Messages, converted...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiwire.Tool{
			Type: "function",
			Function: openaiwire.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	if choice := toolChoiceForChat(req.ToolChoice); choice != nil {
		out.ToolChoice = choice
	}

	if req.Thinking != nil && req.Thinking.Type == "enabled" && modelSupportsReasoning(upstreamModel) {
		out.ReasoningEffort = deriveThinkingLevel(req.Thinking.BudgetTokens, opts.MinThinkingLevel)
	}

	return out, nil
}

// chatMessagesFromTurn converts one Anthropic message into zero or more
// chat-completions messages: a single text/tool_use turn maps 1:1, but a
// user turn carrying tool_result blocks explodes into one "tool" message
// per result, since the chat wire has no block-structured user turn.
func chatMessagesFromTurn(msg anthropicapi.Message) ([]openaiwire.Message, error) {
	blocks, err := blockList(msg.Content)
	if err != nil {
		return nil, err
	}

	if msg.Role == "user" {
		return chatUserMessages(blocks)
	}
	return chatAssistantMessages(blocks)
}

func chatUserMessages(blocks []anthropicapi.ContentBlock) ([]openaiwire.Message, error) {
	var (
		out   []openaiwire.Message
		parts []openaiwire.ContentPart
	)

	flushParts := func() {
		if len(parts) == 0 {
			return
		}
		if len(parts) == 1 && parts[0].Type == "text" {
			out = append(out, openaiwire.Message{Role: "user", Content: mustRawString(parts[0].Text)})
		} else {
			raw, _ := json.Marshal(parts)
			out = append(out, openaiwire.Message{Role: "user", Content: raw})
		}
		parts = nil
	}

	for _, b := range blocks {
		switch b.Type {
		case anthropicapi.BlockTypeText:
			parts = append(parts, openaiwire.ContentPart{Type: "text", Text: b.Text})
		case anthropicapi.BlockTypeImage:
			parts = append(parts, openaiwire.ContentPart{
				Type:     "image_url",
				ImageURL: &openaiwire.ImageURL{URL: imageDataURI(b.Source)},
			})
		case anthropicapi.BlockTypeToolResult:
			flushParts()
			upstreamID, err := DecodeToolUseID(b.ToolUseID)
			if err != nil {
				upstreamID = b.ToolUseID
			}
			out = append(out, openaiwire.Message{
				Role:       "tool",
				ToolCallID: upstreamID,
				Content:    toolResultRaw(b),
			})
		}
	}
	flushParts()

	return out, nil
}

func chatAssistantMessages(blocks []anthropicapi.ContentBlock) ([]openaiwire.Message, error) {
	msg := openaiwire.Message{Role: "assistant"}
	text := ""

	for _, b := range blocks {
		switch b.Type {
		case anthropicapi.BlockTypeText:
			text += b.Text
		case anthropicapi.BlockTypeToolUse:
			upstreamID, err := DecodeToolUseID(b.ID)
			if err != nil {
				upstreamID = b.ID
			}
			msg.ToolCalls = append(msg.ToolCalls, openaiwire.ToolCall{
				ID:   upstreamID,
				Type: "function",
				Function: openaiwire.FunctionCall{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		case anthropicapi.BlockTypeThinking, anthropicapi.BlockTypeRedactedThinking:
			// The chat-completions wire has no input slot for reasoning
			// content; historical thinking blocks are dropped rather than
			// folded into visible text, matching Non-goal framing for
			// cache-affinity round-tripping on this wire.
		}
	}

	if text != "" {
		msg.Content = mustRawString(text)
	}
	return []openaiwire.Message{msg}, nil
}

func toolResultRaw(b anthropicapi.ContentBlock) json.RawMessage {
	if len(b.Content) == 0 {
		return mustRawString("")
	}

	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return mustRawString(s)
	}

	// tool_result content may itself be an array of blocks (e.g. text +
	// image); flatten their text for the chat wire's string-only tool
	// message content.
	var inner []anthropicapi.ContentBlock
	if err := json.Unmarshal(b.Content, &inner); err == nil {
		out := ""
		for _, part := range inner {
			out += part.Text
		}
		return mustRawString(out)
	}

	return b.Content
}

func mustRawString(s string) json.RawMessage {
	raw, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return raw
}

// ToResponsesRequest converts an Anthropic request into an OpenAI
// responses-wire request targeting upstreamModel.
func ToResponsesRequest(req anthropicapi.Request, upstreamModel string, opts Options) (openairesponses.Request, error) {
	out := openairesponses.Request{
		Model:       upstreamModel,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens > 0 {
		out.MaxOutputTokens = &req.MaxTokens
	}

	sys, err := systemText(req.System)
	if err != nil {
		return out, err
	}
	out.Instructions = sys

	if req.Thinking != nil && req.Thinking.Type == "enabled" && modelSupportsReasoning(upstreamModel) {
		out.Reasoning = &openairesponses.ReasoningCfg{
			Effort:  deriveThinkingLevel(req.Thinking.BudgetTokens, opts.MinThinkingLevel),
			Summary: "auto",
		}
	}

	for _, msg := range req.Messages {
		items, err := responsesItemsFromTurn(msg, opts)
		if err != nil {
			return out, err
		}
		out.Input = append(out.Input, items...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openairesponses.Tool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}

	if req.ToolChoice != nil {
		out.ToolChoice = toolChoiceForChat(req.ToolChoice)
	}

	return out, nil
}

func responsesItemsFromTurn(msg anthropicapi.Message, opts Options) ([]openairesponses.InputItem, error) {
	blocks, err := blockList(msg.Content)
	if err != nil {
		return nil, err
	}

	var items []openairesponses.InputItem
	var textParts []openairesponses.InputContentPart

	flush := func() {
		if len(textParts) == 0 {
			return
		}
		raw, _ := json.Marshal(textParts)
		items = append(items, openairesponses.InputItem{
			Type:    "message",
			Role:    msg.Role,
			Content: raw,
		})
		textParts = nil
	}

	for _, b := range blocks {
		switch b.Type {
		case anthropicapi.BlockTypeText:
			partType := "input_text"
			if msg.Role == "assistant" {
				partType = "output_text"
			}
			textParts = append(textParts, openairesponses.InputContentPart{Type: partType, Text: b.Text})
		case anthropicapi.BlockTypeImage:
			textParts = append(textParts, openairesponses.InputContentPart{
				Type:     "input_image",
				ImageURL: imageDataURI(b.Source),
			})
		case anthropicapi.BlockTypeToolUse:
			flush()
			upstreamID, err := DecodeToolUseID(b.ID)
			if err != nil {
				upstreamID = b.ID
			}
			items = append(items, openairesponses.InputItem{
				Type:      openairesponses.InputTypeFunctionCall,
				CallID:    upstreamID,
				Name:      b.Name,
				Arguments: string(b.Input),
			})
		case anthropicapi.BlockTypeToolResult:
			flush()
			upstreamID, err := DecodeToolUseID(b.ToolUseID)
			if err != nil {
				upstreamID = b.ToolUseID
			}
			items = append(items, openairesponses.InputItem{
				Type:   openairesponses.InputTypeFunctionCallOutput,
				CallID: upstreamID,
				Output: toolResultText(b),
			})
		case anthropicapi.BlockTypeThinking:
			if opts.SendReasoningBackOnResponsesWire {
				flush()
				items = append(items, openairesponses.InputItem{
					Type: openairesponses.OutputTypeReasoning,
				})
			}
		}
	}
	flush()

	return items, nil
}

func toolResultText(b anthropicapi.ContentBlock) string {
	raw := toolResultRaw(b)
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}
