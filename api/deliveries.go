package api

import (
	"net/http"

	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/id"
)

// listAllDeliveries returns delivery history across every webhook.
func (h *Handler) listAllDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	if stateStr := queryParam(r, "state"); stateStr != "" {
		state := delivery.State(stateStr)
		opts.State = &state
	}

	deliveries, err := h.fanout.Store().ListByWebhook(r.Context(), id.Nil, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}
