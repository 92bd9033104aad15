package obs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akita_webhook_requests_total",
		Help: "Webhook calls by result (unauthorized, no_user, duplicate, no_subscriptions, dispatched, error).",
	}, []string{"result"})
	MemberSyncEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akita_member_sync_events_total",
		Help: "Member directory webhook calls by result (unauthorized, ignored, upserted, deleted, error).",
	}, []string{"result"})
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akita_push_deliveries_total",
		Help: "Push attempts by outcome (ok, gone, invalid_key, error).",
	}, []string{"outcome"})
	SubscriptionsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "akita_push_subscriptions_pruned_total",
		Help: "Subscriptions deleted after the push service reported them gone.",
	})
	EmailNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "akita_email_notifications_total",
		Help: "Email channel outcomes per dispatch.",
	}, []string{"outcome"})
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "akita_dispatch_duration_seconds",
		Help:    "Time spent fanning out one notification event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)

func BootstrapMetricsServer(addr string, health func(context.Context) error, l *zap.Logger) *http.Server {
	ms := createMetricsServer(addr, health)

	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", zap.Error(err))
		}
	}()

	return ms
}

func createMetricsServer(addr string, health func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(health))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func healthHandler(health func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
