package handlers

import "net/http"

// Register mounts every route on mux. Member routes need a JWT secret and are
// skipped without one.
func (h *Handler) Register(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("/webhook/notify", h.NotifyWebhookHandler)
	mux.HandleFunc("/webhook/members", h.MemberSyncWebhookHandler)
	mux.HandleFunc("/api/push/test", h.TestPushHandler)
	mux.HandleFunc("/api/push/vapid-public-key", h.GetVAPIDKeyHandler)

	// Member routes
	if h.Opts.JWTSecret != "" {
		mux.HandleFunc("/api/push/subscriptions", h.RequireMember(h.PushSubscriptionsHandler))
		mux.HandleFunc("/api/preferences", h.RequireMember(h.PreferencesHandler))
	} else {
		h.logger().Warn("AUTH_JWT_SECRET not set, member subscription and preference routes disabled")
	}

	// Console routes
	mux.HandleFunc("/console/login", h.LoginHandler)
	mux.HandleFunc("/console/logout", h.LogoutHandler)
	mux.HandleFunc("/api/console/deliveries", h.RequireOperator(h.DeliveriesHandler))
	mux.HandleFunc("/api/console/events", h.RequireOperator(h.EventsHandler))
	mux.HandleFunc("/api/console/purge", h.RequireAdmin(h.PurgeDeliveriesHandler))
	mux.HandleFunc("/api/console/subscriptions", h.RequireOperator(h.ListSubscriptionsHandler))
	mux.HandleFunc("/api/console/subscriptions/", h.RequireOperator(h.DeleteSubscriptionHandler))
	mux.HandleFunc("/api/console/operators", h.RequireAdmin(h.CreateOperatorHandler))
	mux.HandleFunc("/api/console/2fa/setup", h.RequireOperator(h.Setup2FAHandler))
	mux.HandleFunc("/api/console/2fa/enable", h.RequireOperator(h.Enable2FAHandler))
	mux.HandleFunc("/api/console/2fa/disable", h.RequireOperator(h.Disable2FAHandler))
}
