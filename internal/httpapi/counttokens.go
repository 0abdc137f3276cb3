package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/bridgeerror"
	"github.com/meridianhq/anthropic-bridge/pkg/tokencount"
)

func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Check(r); err != nil {
		writeBridgeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.RequestBodyMaxSize)

	var req anthropicapi.CountTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBridgeError(w, bridgeerror.InvalidRequest("malformed request body: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, anthropicapi.CountTokensResponse{
		InputTokens: tokencount.EstimateRequest(req),
	})
}
