package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_NoKeyConfiguredAllowsEverything(t *testing.T) {
	g := New("")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)

	assert.NoError(t, g.Check(r))
}

func TestGate_AcceptsMatchingXAPIKeyHeader(t *testing.T) {
	g := New("secret-key")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set("x-api-key", "secret-key")

	assert.NoError(t, g.Check(r))
}

func TestGate_AcceptsMatchingBearerToken(t *testing.T) {
	g := New("secret-key")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set("Authorization", "Bearer secret-key")

	assert.NoError(t, g.Check(r))
}

func TestGate_RejectsMissingKey(t *testing.T) {
	g := New("secret-key")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)

	err := g.Check(r)
	assert.Error(t, err)
}

func TestGate_RejectsWrongKey(t *testing.T) {
	g := New("secret-key")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set("x-api-key", "wrong-key")

	err := g.Check(r)
	assert.Error(t, err)
}

func TestGate_XAPIKeyTakesPrecedenceOverAuthorization(t *testing.T) {
	g := New("secret-key")
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set("x-api-key", "secret-key")
	r.Header.Set("Authorization", "Bearer wrong-key")

	assert.NoError(t, g.Check(r))
}
