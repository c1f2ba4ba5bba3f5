package api

import (
	"net/http"

	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/id"
)

type statsResponse struct {
	delivery.Stats
	DLQSize int64 `json:"dlq_size"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.fanout.Store().DeliveryStats(ctx, id.Nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dlqCount, err := h.fanout.DLQ().Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Stats:   *stats,
		DLQSize: dlqCount,
	})
}
