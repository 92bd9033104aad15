package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"akita-notify-go/internal/models"
	"akita-notify-go/internal/notify"
	"akita-notify-go/internal/store"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.NotificationEvent) (notify.Outcome, error)
	SendTest(ctx context.Context, userID string) (notify.Outcome, error)
}

// Deduper claims an event key once per TTL.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Options struct {
	WebhookSecret  string
	DedupTTL       time.Duration
	VAPIDPublicKey string
	JWTSecret      string
}

type Handler struct {
	Dispatcher    Dispatcher
	Subscriptions store.SubscriptionStore
	Preferences   store.PreferenceStore
	Members       store.MemberStore
	Operators     store.OperatorStore
	Deliveries    store.DeliveryLog
	Dedup         Deduper
	Sessions      sessions.Store
	Opts          Options
	Log           *zap.Logger
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func getString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		// json numbers
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// firstString returns the first non-empty value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := getString(m[k]); s != "" {
			return s
		}
	}
	return ""
}
