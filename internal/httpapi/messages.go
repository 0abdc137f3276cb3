package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/meridianhq/anthropic-bridge/internal/config"
	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/bridgeerror"
	"github.com/meridianhq/anthropic-bridge/pkg/sse"
	"github.com/meridianhq/anthropic-bridge/pkg/tokencount"
	"github.com/meridianhq/anthropic-bridge/pkg/translate"
)

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Check(r); err != nil {
		writeBridgeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.RequestBodyMaxSize)

	var req anthropicapi.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBridgeError(w, bridgeerror.InvalidRequest("malformed request body: %v", err))
		return
	}
	if req.Model == "" {
		writeBridgeError(w, bridgeerror.InvalidRequest("model is required"))
		return
	}

	upstreamModel := s.router.Resolve(req.Model)

	estimatedTokens := tokencount.EstimateRequest(anthropicapi.CountTokensRequest{
		Model:    req.Model,
		Messages: req.Messages,
		System:   req.System,
		Tools:    req.Tools,
	})
	sess, _ := s.sessions.Touch(identityKey(r), estimatedTokens)
	extraHeaders := map[string]string{"x-session-id": sess.ID}

	opts := translate.Options{
		SendReasoningBackOnResponsesWire: s.cfg.SendReasoningBackOnResponsesWire,
		MinThinkingLevel:                 s.cfg.MinThinkingLevel,
	}

	streaming := wantsStream(req.Stream, r.Header.Get("Accept"))

	if streaming {
		s.streamMessages(w, r, req, upstreamModel, extraHeaders, opts)
		return
	}

	s.nonStreamMessages(w, r, req, upstreamModel, extraHeaders, opts)
}

func (s *Server) nonStreamMessages(
	w http.ResponseWriter, r *http.Request,
	req anthropicapi.Request, upstreamModel string,
	extraHeaders map[string]string, opts translate.Options,
) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if s.cfg.WireAPI == config.WireResponses {
		upstreamReq, err := translate.ToResponsesRequest(req, upstreamModel, opts)
		if err != nil {
			writeBridgeError(w, bridgeerror.InvalidRequest("translating request: %v", err))
			return
		}
		resp, err := s.client.Responses(ctx, upstreamReq, extraHeaders)
		if err != nil {
			writeBridgeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, translate.FromResponsesResponse(*resp, req.Model))
		return
	}

	upstreamReq, err := translate.ToChatRequest(req, upstreamModel, opts)
	if err != nil {
		writeBridgeError(w, bridgeerror.InvalidRequest("translating request: %v", err))
		return
	}
	resp, err := s.client.ChatCompletion(ctx, upstreamReq, extraHeaders)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translate.FromChatResponse(*resp, req.Model))
}

func (s *Server) streamMessages(
	w http.ResponseWriter, r *http.Request,
	req anthropicapi.Request, upstreamModel string,
	extraHeaders map[string]string, opts translate.Options,
) {
	ctx := r.Context()
	if s.cfg.StreamRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StreamRequestTimeout)
		defer cancel()
	}

	var body io.ReadCloser

	if s.cfg.WireAPI == config.WireResponses {
		upstreamReq, err := translate.ToResponsesRequest(req, upstreamModel, opts)
		if err != nil {
			writeBridgeError(w, bridgeerror.InvalidRequest("translating request: %v", err))
			return
		}
		b, err := s.client.StreamResponses(ctx, upstreamReq, extraHeaders)
		if err != nil {
			writeBridgeError(w, err)
			return
		}
		body = b
	} else {
		upstreamReq, err := translate.ToChatRequest(req, upstreamModel, opts)
		if err != nil {
			writeBridgeError(w, bridgeerror.InvalidRequest("translating request: %v", err))
			return
		}
		b, err := s.client.StreamChatCompletion(ctx, upstreamReq, extraHeaders)
		if err != nil {
			writeBridgeError(w, err)
			return
		}
		body = b
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w)
	streamOpts := translate.StreamOptions{
		ClientModel:         req.Model,
		DebugToolIDMatching: s.cfg.DebugToolIDMatching,
		ThinkingRequested:   req.Thinking != nil && req.Thinking.Type == "enabled",
		Logger:              s.logger,
	}

	var err error
	if s.cfg.WireAPI == config.WireResponses {
		err = translate.StreamResponses(ctx, body, writer, streamOpts)
	} else {
		err = translate.StreamChat(ctx, body, writer, streamOpts)
	}
	if err != nil {
		s.logger.Error("stream translation failed", "error", err)
	}
}
