// Package tokencount implements the bridge's Token Estimator: a
// chars/4 heuristic used for POST /v1/messages/count_tokens, since the
// bridge has no access to the upstream's actual tokenizer.
package tokencount

import (
	"encoding/json"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
)

const charsPerToken = 4

// EstimateText estimates the token count of a plain string in isolation:
// max(1, ceil(len(s)/4)), or 0 for the empty string.
func EstimateText(s string) int {
	return tokensFromChars(len(s))
}

// tokensFromChars applies the floor/ceil once to a total character count,
// per spec: max(1, ceil(total_chars/4)), with a request carrying no text
// at all costing zero rather than the floor.
func tokensFromChars(chars int) int {
	if chars <= 0 {
		return 0
	}
	n := (chars + charsPerToken - 1) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateRequest sums the character count of every text-bearing part of a
// count_tokens request — system prompt, message content, and the
// JSON-serialized length of every tool schema — and converts the total to
// tokens once, so several short fragments aren't each rounded up
// individually. The result is monotonic — adding any block to the request
// never decreases the estimate.
func EstimateRequest(req anthropicapi.CountTokensRequest) int {
	chars := 0

	if len(req.System) > 0 {
		chars += len(systemText(req.System))
	}

	for _, msg := range req.Messages {
		chars += messageContentChars(msg.Content)
	}

	for _, tool := range req.Tools {
		raw, err := json.Marshal(tool)
		if err == nil {
			chars += len(raw)
		}
	}

	return tokensFromChars(chars)
}

func systemText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []anthropicapi.SystemBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for _, b := range blocks {
			out += b.Text
		}
		return out
	}

	return ""
}

func messageContentChars(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return len(s)
	}

	var blocks []anthropicapi.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return 0
	}

	total := 0
	for _, b := range blocks {
		switch b.Type {
		case anthropicapi.BlockTypeText, anthropicapi.BlockTypeThinking:
			total += len(b.Text)
			total += len(b.Thinking)
		case anthropicapi.BlockTypeToolUse:
			total += len(b.Name)
			total += len(b.Input)
		case anthropicapi.BlockTypeToolResult:
			total += len(b.Content)
		case anthropicapi.BlockTypeImage:
			if b.Source != nil {
				if raw, err := json.Marshal(b.Source); err == nil {
					total += len(raw)
				}
			}
		}
	}
	return total
}
