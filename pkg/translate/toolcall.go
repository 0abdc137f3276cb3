package translate

import (
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Tool-Call Reconciler: the bridge hands clients an Anthropic-shaped
// tool_use.id for every upstream tool call, and must recover the exact
// upstream id again when the client echoes a matching tool_result back in
// a later turn. Rather than keep server-side state (which would not
// survive a restart, and would not work across bridge replicas), the
// upstream id is reversibly encoded into the Anthropic id: decoding never
// needs a lookup table, only the bytes the client already sent back.
const toolUseIDPrefix = "toolu_"

// EncodeToolUseID turns an upstream tool-call id (OpenAI's "call_..." on
// the chat wire, or a call_id on the responses wire) into the id the
// bridge reports to the client as a tool_use block's id.
func EncodeToolUseID(upstreamID string) string {
	return toolUseIDPrefix + hex.EncodeToString([]byte(upstreamID))
}

// DecodeToolUseID recovers the upstream tool-call id from a tool_use id
// the bridge previously handed out. It returns an error if id was not one
// the bridge generated (e.g. the client fabricated or corrupted it).
func DecodeToolUseID(id string) (string, error) {
	if len(id) <= len(toolUseIDPrefix) || id[:len(toolUseIDPrefix)] != toolUseIDPrefix {
		return "", fmt.Errorf("tool_use id %q does not have the expected %q prefix", id, toolUseIDPrefix)
	}

	decoded, err := hex.DecodeString(id[len(toolUseIDPrefix):])
	if err != nil {
		return "", fmt.Errorf("tool_use id %q is not validly encoded: %w", id, err)
	}

	return string(decoded), nil
}

// logToolIDDecision logs an id encode/decode decision when debug tracing
// is enabled, and is a no-op otherwise.
func logToolIDDecision(logger *slog.Logger, debug bool, op, anthropicID, upstreamID string) {
	if !debug || logger == nil {
		return
	}
	logger.Debug("tool id reconciliation", "op", op, "anthropic_id", anthropicID, "upstream_id", upstreamID)
}
