package handlers

import (
	"net/http"
	"strings"

	"akita-notify-go/internal/models"
	"akita-notify-go/internal/obs"

	"go.uber.org/zap"
)

// MemberSyncWebhookHandler keeps the member directory in step with the
// community's account table. It receives the database webhook for account
// inserts, updates and deletes: {type, record, old_record}.
func (h *Handler) MemberSyncWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := h.logger().With(zap.String("component", "member_sync"))

	if !h.validWebhookSecret(r) {
		obs.MemberSyncEvents.WithLabelValues("unauthorized").Inc()
		log.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		Type      string         `json:"type"`
		Record    map[string]any `json:"record"`
		OldRecord map[string]any `json:"old_record"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		obs.MemberSyncEvents.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Invalid payload, nothing to do"})
		return
	}

	if strings.EqualFold(payload.Type, "DELETE") {
		id := firstString(payload.OldRecord, "id", "user_id")
		if id == "" {
			id = firstString(payload.Record, "id", "user_id")
		}
		if id == "" {
			obs.MemberSyncEvents.WithLabelValues("ignored").Inc()
			writeJSON(w, http.StatusOK, map[string]string{"message": "No id in record"})
			return
		}
		if err := h.Members.DeleteMember(r.Context(), id); err != nil {
			obs.MemberSyncEvents.WithLabelValues("error").Inc()
			log.Error("delete member", zap.String("user_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to delete member")
			return
		}
		obs.MemberSyncEvents.WithLabelValues("deleted").Inc()
		log.Info("member removed", zap.String("user_id", id))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	m := models.Member{
		ID:          firstString(payload.Record, "id", "user_id"),
		Email:       strings.TrimSpace(getString(payload.Record["email"])),
		DisplayName: firstString(payload.Record, "display_name", "full_name", "username"),
	}
	if m.ID == "" {
		obs.MemberSyncEvents.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "No id in record"})
		return
	}
	// Retried by the sender on 5xx.
	if err := h.Members.UpsertMember(r.Context(), m); err != nil {
		obs.MemberSyncEvents.WithLabelValues("error").Inc()
		log.Error("upsert member", zap.String("user_id", m.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save member")
		return
	}
	obs.MemberSyncEvents.WithLabelValues("upserted").Inc()
	log.Info("member synced", zap.String("user_id", m.ID), zap.Bool("has_email", m.Email != ""))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
