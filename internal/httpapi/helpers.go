package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/meridianhq/anthropic-bridge/pkg/anthropicapi"
	"github.com/meridianhq/anthropic-bridge/pkg/bridgeerror"
)

func rawJSONString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// identityKey derives the Session Keyer's lookup key for r: the client's
// own device id if it sent one, otherwise a fingerprint of its
// credentials and address so unrelated clients never collide.
func identityKey(r *http.Request) string {
	if device := r.Header.Get("x-device-id"); device != "" {
		return device
	}

	credential := r.Header.Get("x-api-key")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}

	sum := sha256.Sum256([]byte(credential + "|" + clientIP(r)))
	return hex.EncodeToString(sum[:])
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// wantsStream reports whether the client asked for an SSE response, via
// either the request body's stream:true or an Accept: text/event-stream
// header.
func wantsStream(streamField bool, acceptHeader string) bool {
	return streamField || strings.Contains(acceptHeader, "text/event-stream")
}

// writeBridgeError renders err as the Anthropic error envelope at the
// status the error carries, falling back to a generic 500 for anything
// that isn't a *bridgeerror.Error.
func writeBridgeError(w http.ResponseWriter, err error) {
	be, ok := bridgeerror.As(err)
	if !ok {
		be = bridgeerror.Internal(err)
	}

	writeJSON(w, be.HTTPStatus, anthropicapi.ErrorEnvelope{
		Type: "error",
		Error: anthropicapi.ErrorDetail{
			Type:    string(be.Type),
			Message: be.Message,
		},
	})
}
