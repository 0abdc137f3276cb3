// Package auth implements the bridge's Auth Gate: verifying the client
// presented the configured key before any translation work begins.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/meridianhq/anthropic-bridge/pkg/bridgeerror"
)

// Gate holds the key clients must present.
type Gate struct {
	expectedKey string
}

// New builds a Gate that requires expectedKey. An empty expectedKey
// disables the gate (every request is accepted) — useful for local
// development against a bridge that doesn't need its own auth layer.
func New(expectedKey string) *Gate {
	return &Gate{expectedKey: expectedKey}
}

// Check extracts the client's key from the request (x-api-key header, or
// Authorization: Bearer <key>) and compares it to the expected key in
// constant time. It returns a bridgeerror.Error when the key is missing
// or does not match.
func (g *Gate) Check(r *http.Request) error {
	if g.expectedKey == "" {
		return nil
	}

	presented := extractKey(r)
	if presented == "" {
		return bridgeerror.Authentication("missing x-api-key header")
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(g.expectedKey)) != 1 {
		return bridgeerror.Authentication("invalid x-api-key")
	}

	return nil
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return ""
}
