package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/dlq"
	"github.com/fanouthq/fanout/id"
)

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 50),
		OwnerID: queryParam(r, "owner_id"),
	}

	if v := queryParam(r, "webhook_id"); v != "" {
		whID, err := id.ParseWebhookID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid webhook_id")
			return
		}
		opts.WebhookID = &whID
	}

	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
		return
	}
	opts.From, opts.To = from, to

	entries, listErr := h.fanout.DLQ().List(r.Context(), opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
		return
	}

	entry, getErr := h.fanout.DLQ().Get(r.Context(), dlqID)
	if getErr != nil {
		if errors.Is(getErr, fanout.ErrDLQNotFound) {
			writeError(w, http.StatusNotFound, "DLQ entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) replayDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
		return
	}

	if replayErr := h.fanout.DLQ().Replay(r.Context(), dlqID); replayErr != nil {
		if errors.Is(replayErr, fanout.ErrDLQNotFound) {
			writeError(w, http.StatusNotFound, "DLQ entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, replayErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type replayBulkRequest struct {
	From string `json:"from"` // RFC3339
	To   string `json:"to"`   // RFC3339
}

func (h *Handler) replayBulkDLQ(w http.ResponseWriter, r *http.Request) {
	var req replayBulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
		return
	}

	count, replayErr := h.fanout.DLQ().ReplayBulk(r.Context(), from, to)
	if replayErr != nil {
		writeError(w, http.StatusInternalServerError, replayErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"replayed": count})
}
