package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// PreferencesHandler reads (GET) or updates (PUT) the member's email settings.
// A member without a row sees the defaults and exists=false.
func (h *Handler) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := MemberID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pref, exists, err := h.Preferences.GetNotificationPreference(r.Context(), userID)
	if err != nil {
		h.logger().Error("load preferences", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{"preferences": pref, "exists": exists})
		return
	}

	// Omitted flags keep their current value.
	var req struct {
		EmailAnnouncements  *bool `json:"email_announcements"`
		EmailReplies        *bool `json:"email_replies"`
		EmailMentions       *bool `json:"email_mentions"`
		EmailDirectMessages *bool `json:"email_direct_messages"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	pref.UserID = userID
	if req.EmailAnnouncements != nil {
		pref.EmailAnnouncements = *req.EmailAnnouncements
	}
	if req.EmailReplies != nil {
		pref.EmailReplies = *req.EmailReplies
	}
	if req.EmailMentions != nil {
		pref.EmailMentions = *req.EmailMentions
	}
	if req.EmailDirectMessages != nil {
		pref.EmailDirectMessages = *req.EmailDirectMessages
	}

	saved, err := h.Preferences.SaveNotificationPreference(r.Context(), pref)
	if err != nil {
		h.logger().Error("save preferences", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": saved, "exists": true})
}
