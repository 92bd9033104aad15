package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"akita-notify-go/internal/models"
	"akita-notify-go/internal/store"

	"go.uber.org/zap"
)

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.Opts.VAPIDPublicKey})
}

// TestPushHandler sends a fixed test message to every device of a member.
func (h *Handler) TestPushHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	out, err := h.Dispatcher.SendTest(r.Context(), req.UserID)
	if err != nil {
		h.logger().Error("test push failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load subscriptions")
		return
	}
	if out.NoSubscriptions {
		writeError(w, http.StatusNotFound, "No subscriptions found for user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out.PushResults})
}

// PushSubscriptionsHandler registers (POST) or removes (DELETE) the calling
// member's browser subscription.
func (h *Handler) PushSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := MemberID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.subscribePush(w, r, userID)
	case http.MethodDelete:
		h.unsubscribePush(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) subscribePush(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if u, err := url.Parse(req.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}
	pub, secret, err := models.DecodeSubscriptionKeys(req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.Subscriptions.SavePushSubscription(r.Context(), models.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   models.EncodeKey(pub),
		Auth:     models.EncodeKey(secret),
	})
	if err != nil {
		h.logger().Error("save push subscription", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}
	h.logger().Info("push subscription saved", zap.String("user_id", userID), zap.Int64("subscription_id", sub.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": sub.ID})
}

func (h *Handler) unsubscribePush(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	err := h.Subscriptions.DeletePushSubscriptionByEndpoint(r.Context(), userID, req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	if err != nil {
		h.logger().Error("delete push subscription", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
