package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

func (h *Handler) PurgeDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.Deliveries.PurgeDeliveries(r.Context()); err != nil {
		h.logger().Error("purge deliveries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to purge deliveries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
