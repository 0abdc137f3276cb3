package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/meridianhq/anthropic-bridge/pkg/openaiwire"
)

// handleTestConnection issues a minimal 1-token chat request to the
// configured small model and reports whether the upstream is reachable.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	maxTokens := 1
	req := openaiwire.ChatRequest{
		Model:     s.cfg.SmallModel,
		Messages:  []openaiwire.Message{{Role: "user", Content: rawJSONString("hi")}},
		MaxTokens: &maxTokens,
	}

	start := time.Now()
	_, err := s.client.ChatCompletion(ctx, req, nil)
	latency := time.Since(start)

	resp := map[string]any{
		"ok":         err == nil,
		"latency_ms": latency.Milliseconds(),
	}
	if err != nil {
		resp["error"] = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}
