package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeToolUseID_RoundTrips(t *testing.T) {
	upstreamIDs := []string{
		"call_abc123",
		"fc_0123456789",
		"",
		"id-with-dashes-and_underscores",
	}

	for _, id := range upstreamIDs {
		encoded := EncodeToolUseID(id)
		assert.Equal(t, toolUseIDPrefix, encoded[:len(toolUseIDPrefix)])

		decoded, err := DecodeToolUseID(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeToolUseID_RejectsMissingPrefix(t *testing.T) {
	_, err := DecodeToolUseID("call_abc123")
	assert.Error(t, err)
}

func TestDecodeToolUseID_RejectsInvalidHex(t *testing.T) {
	_, err := DecodeToolUseID(toolUseIDPrefix + "not-hex!!")
	assert.Error(t, err)
}

func TestDecodeToolUseID_RejectsBareprefix(t *testing.T) {
	_, err := DecodeToolUseID(toolUseIDPrefix)
	assert.Error(t, err)
}
