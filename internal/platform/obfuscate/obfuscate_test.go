package obfuscate

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []cartLine{{ProductID: "prd_1", Quantity: 2}, {ProductID: "prd_2", Quantity: 1}}
	encoded, err := EncodeForDisplay(in)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "prd_1")

	var out []cartLine
	require.NoError(t, DecodeForDisplay(encoded, &out))
	assert.Equal(t, in, out)
}

func TestDecodeAcceptsPaddedStandardEncoding(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"productId":"a?b>","quantity":3}`))

	var out cartLine
	require.NoError(t, DecodeForDisplay(encoded, &out))
	assert.Equal(t, cartLine{ProductID: "a?b>", Quantity: 3}, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var out cartLine
	assert.ErrorIs(t, DecodeForDisplay("", &out), ErrInvalidPayload)
	assert.ErrorIs(t, DecodeForDisplay("not base64!", &out), ErrInvalidPayload)
	assert.ErrorIs(t, DecodeForDisplay(base64.RawURLEncoding.EncodeToString([]byte("plain")), &out), ErrInvalidPayload)
}
