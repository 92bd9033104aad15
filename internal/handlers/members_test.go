package handlers

import (
	"net/http"
	"testing"

	"akita-notify-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberSyncFeedsEmailLookup(t *testing.T) {
	e := newTestEnv(t)
	e.db.addSub("u1", "https://push.example/a")

	// Before the account event arrives there is no address to mail.
	rec := e.do(t, http.MethodPost, "/webhook/notify", map[string]any{"record": map[string]any{"user_id": "u1", "type": "reply"}}, hookHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, e.mailer.sent)

	rec = e.do(t, http.MethodPost, "/webhook/members", map[string]any{
		"type":   "INSERT",
		"record": map[string]any{"id": "u1", "email": " kuma@example.com ", "full_name": "Kuma Breeder"},
	}, hookHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, models.Member{ID: "u1", Email: "kuma@example.com", DisplayName: "Kuma Breeder"}, e.db.members["u1"])

	rec = e.do(t, http.MethodPost, "/webhook/notify", map[string]any{"record": map[string]any{"user_id": "u1", "type": "reply"}}, hookHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"kuma@example.com"}, e.mailer.sent)
}

func TestMemberSyncUpdateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	e.db.members["u2"] = models.Member{ID: "u2", Email: "old@example.com"}

	rec := e.do(t, http.MethodPost, "/webhook/members", map[string]any{
		"type":   "UPDATE",
		"record": map[string]any{"id": "u2", "email": "new@example.com", "display_name": "Hachi"},
	}, hookHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new@example.com", e.db.members["u2"].Email)

	rec = e.do(t, http.MethodPost, "/webhook/members", map[string]any{
		"type":       "DELETE",
		"record":     nil,
		"old_record": map[string]any{"id": "u2"},
	}, hookHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, e.db.members, "u2")
}

func TestMemberSyncRequiresSecret(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/webhook/members", map[string]any{
		"type":   "INSERT",
		"record": map[string]any{"id": "u3", "email": "x@example.com"},
	}, http.Header{"X-Webhook-Secret": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, e.db.members)
}

func TestMemberSyncIgnoresRecordWithoutID(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []any{
		map[string]any{"type": "INSERT", "record": map[string]any{"email": "x@example.com"}},
		map[string]any{"type": "DELETE", "old_record": map[string]any{}},
		"{broken",
	} {
		rec := e.do(t, http.MethodPost, "/webhook/members", body, hookHeader())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decodeBody(t, rec)["message"])
	}
	assert.Empty(t, e.db.members)
}
