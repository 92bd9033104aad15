package handlers

import (
	"context"
	"net/http"

	"akita-notify-go/internal/models"
	"akita-notify-go/internal/obs"

	"go.uber.org/zap"
)

// NotifyWebhookHandler receives database insert events and fans them out.
// Only a secret mismatch produces a non-2xx status.
func (h *Handler) NotifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := h.logger().With(zap.String("component", "webhook"))

	if !h.validWebhookSecret(r) {
		obs.WebhookRequests.WithLabelValues("unauthorized").Inc()
		log.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		Record map[string]any `json:"record"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		obs.WebhookRequests.WithLabelValues("no_user").Inc()
		log.Warn("unparseable webhook payload", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Invalid payload, nothing to do"})
		return
	}

	ev := eventFromRecord(payload.Record)
	if ev.UserID == "" {
		obs.WebhookRequests.WithLabelValues("no_user").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "No user_id in record"})
		return
	}
	log = log.With(zap.String("user_id", ev.UserID), zap.String("type", ev.RawType))

	claim, dup := h.claimEvent(r.Context(), ev, log)
	if dup {
		obs.WebhookRequests.WithLabelValues("duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Duplicate event ignored"})
		return
	}

	out, err := h.Dispatcher.Dispatch(r.Context(), ev)
	if err != nil {
		obs.WebhookRequests.WithLabelValues("error").Inc()
		log.Error("dispatch failed", zap.Error(err))
		h.releaseEvent(r.Context(), claim, log)
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	if out.NoSubscriptions {
		obs.WebhookRequests.WithLabelValues("no_subscriptions").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"message": "No push subscriptions for user"})
		return
	}

	obs.WebhookRequests.WithLabelValues("dispatched").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"pushResults": out.PushResults,
	})
}

func eventFromRecord(rec map[string]any) models.NotificationEvent {
	rawType := getString(rec["type"])
	return models.NotificationEvent{
		UserID:   getString(rec["user_id"]),
		Category: models.ParseCategory(rawType),
		RawType:  rawType,
		Title:    getString(rec["title"]),
		Message:  firstString(rec, "message", "content"),
		Link:     firstString(rec, "link", "url"),
		RecordID: getString(rec["id"]),
	}
}

// claimEvent reports whether the source row was already dispatched and, when
// this call took the claim, the key to release if dispatch fails. Records
// without an id are never deduplicated and Redis errors fail open.
func (h *Handler) claimEvent(ctx context.Context, ev models.NotificationEvent, log *zap.Logger) (key string, dup bool) {
	if h.Dedup == nil || ev.RecordID == "" || h.Opts.DedupTTL <= 0 {
		return "", false
	}
	key = ev.RawType + ":" + ev.RecordID
	claimed, err := h.Dedup.Claim(ctx, key, h.Opts.DedupTTL)
	if err != nil {
		log.Warn("dedup claim failed, delivering anyway", zap.Error(err))
		return "", false
	}
	if !claimed {
		log.Info("duplicate webhook delivery", zap.String("record_id", ev.RecordID))
		return "", true
	}
	return key, false
}

// releaseEvent drops a claim so a redelivery of a failed event is processed.
func (h *Handler) releaseEvent(ctx context.Context, key string, log *zap.Logger) {
	if key == "" {
		return
	}
	if err := h.Dedup.Release(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("dedup release failed, redelivery will be ignored until the claim expires", zap.String("key", key), zap.Error(err))
	}
}
