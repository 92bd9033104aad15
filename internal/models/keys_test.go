package models

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors from RFC 8291 Appendix A.
const (
	rfcUAPublic   = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
	rfcAuthSecret = "BTBZMqHH6r4Tts7J_aSIgg"
)

func TestKeyRoundTripFixedVector(t *testing.T) {
	raw, err := DecodeKey(rfcUAPublic)
	require.NoError(t, err)
	require.Len(t, raw, P256dhKeyLen)
	assert.Equal(t, byte(0x04), raw[0])
	assert.Equal(t, rfcUAPublic, base64.RawURLEncoding.EncodeToString(raw))

	stored := EncodeKey(raw)
	decoded, err := DecodeKey(stored)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestKeyRoundTripEveryByteValue(t *testing.T) {
	raw := make([]byte, P256dhKeyLen)
	raw[0] = 0x04
	for i := 1; i < len(raw); i++ {
		raw[i] = byte(i * 4)
	}
	decoded, err := DecodeKey(EncodeKey(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	// The same bytes arriving in the browser's alphabet decode identically.
	decoded, err = DecodeKey(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDecodeSubscriptionKeys(t *testing.T) {
	pub, secret, err := DecodeSubscriptionKeys(rfcUAPublic, rfcAuthSecret)
	require.NoError(t, err)
	assert.Len(t, pub, P256dhKeyLen)
	assert.Len(t, secret, AuthSecretLen)

	tests := []struct {
		name   string
		p256dh string
		auth   string
	}{
		{"empty p256dh", "", rfcAuthSecret},
		{"garbage p256dh", "not*base64", rfcAuthSecret},
		{"short p256dh", EncodeKey([]byte{0x04, 1, 2, 3}), rfcAuthSecret},
		{"compressed point", EncodeKey(append([]byte{0x02}, make([]byte, 64)...)), rfcAuthSecret},
		{"short auth", rfcUAPublic, EncodeKey([]byte{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeSubscriptionKeys(tt.p256dh, tt.auth)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedKey))
		})
	}
}
