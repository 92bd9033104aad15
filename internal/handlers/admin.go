package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"akita-notify-go/internal/models"

	"go.uber.org/zap"
)

const minPasswordLen = 8

// CreateOperatorHandler adds a console account (admin only).
func (h *Handler) CreateOperatorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Role == "" {
		req.Role = models.RoleOperator
	}
	if !models.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if req.Username == "" || len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}

	op, err := h.Operators.CreateOperator(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.logger().Error("create operator", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create operator")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "operator": op})
}

type subscriptionView struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
}

// ListSubscriptionsHandler shows a member's devices without their keys.
func (h *Handler) ListSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	subs, err := h.Subscriptions.GetPushSubscriptions(r.Context(), userID)
	if err != nil {
		h.logger().Error("list subscriptions", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get subscriptions")
		return
	}
	views := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, subscriptionView{ID: s.ID, UserID: s.UserID, Endpoint: s.Endpoint, CreatedAt: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": views, "count": len(views)})
}

// DeleteSubscriptionHandler removes one subscription by id.
func (h *Handler) DeleteSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/console/subscriptions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	if err := h.Subscriptions.DeletePushSubscription(r.Context(), id); err != nil {
		h.logger().Error("delete subscription", zap.Int64("subscription_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete subscription")
		return
	}
	u, _ := h.currentOperator(r)
	h.logger().Info("subscription removed by operator", zap.Int64("subscription_id", id), zap.String("operator", u.Username))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
