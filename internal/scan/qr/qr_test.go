package qr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-admission/internal/scan/qr"
)

func TestEncryptDecodeRoundtrip(t *testing.T) {
	gen := qr.NewGenerator("test-secret")

	payload := qr.Payload{
		TicketID:   "tkt_1",
		EventID:    "event-1",
		Credential: "cred-1",
	}

	encoded, err := gen.EncryptPayload(payload)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "cred-1")

	decoded, err := gen.DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestDecodeWithWrongSecretFails(t *testing.T) {
	gen := qr.NewGenerator("test-secret")
	other := qr.NewGenerator("other-secret")

	encoded, err := gen.EncryptPayload(qr.Payload{TicketID: "tkt_1", EventID: "event-1", Credential: "cred-1"})
	require.NoError(t, err)

	_, err = other.DecodePayload(encoded)
	assert.Error(t, err)
}

func TestEncodePayloadProducesPNG(t *testing.T) {
	gen := qr.NewGenerator("test-secret")

	png, err := gen.EncodePayload(qr.Payload{TicketID: "tkt_1", EventID: "event-1", Credential: "cred-1"})
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
