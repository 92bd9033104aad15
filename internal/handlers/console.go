package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"akita-notify-go/internal/models"

	"go.uber.org/zap"
)

const defaultDeliveryLimit = 100

// DeliveriesHandler lists recent dispatches, optionally filtered by member
// and category.
func (h *Handler) DeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	userID := q.Get("user_id")
	category := q.Get("category")

	var (
		deliveries []models.Delivery
		err        error
	)
	if userID != "" || category != "" {
		deliveries, err = h.Deliveries.SearchDeliveries(r.Context(), userID, category)
	} else {
		limit := defaultDeliveryLimit
		if n, convErr := strconv.Atoi(q.Get("limit")); convErr == nil && n > 0 {
			limit = n
		}
		deliveries, err = h.Deliveries.GetDeliveries(r.Context(), limit)
	}
	if err != nil {
		h.logger().Error("load deliveries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries, "count": len(deliveries)})
}

// EventsHandler streams new deliveries as server-sent events.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Deliveries.Subscribe(r.Context())
	defer pubsub.Close()
	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
