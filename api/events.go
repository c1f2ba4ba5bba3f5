package api

import (
	"errors"
	"net/http"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/event"
	"github.com/fanouthq/fanout/id"
)

type triggerEventRequest struct {
	Type           string         `json:"type"`
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

func (h *Handler) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	evt := &event.Event{
		Type:           req.Type,
		Data:           req.Data,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	}

	err := h.fanout.TriggerEvent(r.Context(), evt)
	switch {
	case errors.Is(err, fanout.ErrEventTypeDeprecated):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fanout.ErrPayloadValidationFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, evt)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Type:   queryParam(r, "type"),
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

	events, listErr := h.fanout.Store().ListEvents(r.Context(), opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, getErr := h.fanout.Store().GetEvent(r.Context(), evtID)
	if getErr != nil {
		if errors.Is(getErr, fanout.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

func (h *Handler) listEventDeliveries(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	deliveries, listErr := h.fanout.Store().ListByEvent(r.Context(), evtID)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}
