package handlers

import (
	"crypto/subtle"
	"net/http"
)

const webhookSecretHeader = "x-webhook-secret"

// validWebhookSecret compares the shared secret header in constant time. An
// empty configured secret leaves the webhook open.
func (h *Handler) validWebhookSecret(r *http.Request) bool {
	secret := h.Opts.WebhookSecret
	if secret == "" {
		return true
	}
	got := r.Header.Get(webhookSecretHeader)
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
