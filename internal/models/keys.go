package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	// P256dhKeyLen is the length of an uncompressed P-256 public point.
	P256dhKeyLen = 65
	// AuthSecretLen is the length of the push auth secret.
	AuthSecretLen = 16
)

var ErrMalformedKey = errors.New("malformed subscription key")

// EncodeKey turns raw key bytes into the text form persisted in push_subscriptions.
func EncodeKey(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeKey reverses EncodeKey. Browsers hand out base64url without padding, so
// both alphabets are accepted with or without padding.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedKey)
	}
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	}
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return raw, nil
}

// DecodeSubscriptionKeys decodes and validates both keys of a subscription.
func DecodeSubscriptionKeys(p256dh, auth string) (pub, secret []byte, err error) {
	pub, err = DecodeKey(p256dh)
	if err != nil {
		return nil, nil, fmt.Errorf("p256dh: %w", err)
	}
	if len(pub) != P256dhKeyLen || pub[0] != 0x04 {
		return nil, nil, fmt.Errorf("p256dh: %w: want %d-byte uncompressed point, got %d bytes", ErrMalformedKey, P256dhKeyLen, len(pub))
	}
	secret, err = DecodeKey(auth)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: %w", err)
	}
	if len(secret) != AuthSecretLen {
		return nil, nil, fmt.Errorf("auth: %w: want %d bytes, got %d", ErrMalformedKey, AuthSecretLen, len(secret))
	}
	return pub, secret, nil
}
