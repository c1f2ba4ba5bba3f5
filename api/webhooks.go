package api

import (
	"errors"
	"net/http"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/delivery"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/webhook"
)

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wh, err := h.fanout.Webhooks().Create(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Secret is returned once, on creation only.
	writeJSON(w, http.StatusCreated, struct {
		*webhook.Webhook
		Secret string `json:"secret"`
	}{wh, wh.Secret})
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	ownerID := queryParam(r, "owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required")
		return
	}

	opts := webhook.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if v := queryParam(r, "active"); v != "" {
		active := v == "true"
		opts.Active = &active
	}

	whs, err := h.fanout.Webhooks().List(r.Context(), ownerID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, whs)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	wh, getErr := h.fanout.Webhooks().Get(r.Context(), whID)
	if getErr != nil {
		if errors.Is(getErr, fanout.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wh, updateErr := h.fanout.Webhooks().Update(r.Context(), whID, in)
	if updateErr != nil {
		if errors.Is(updateErr, fanout.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, updateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if deleteErr := h.fanout.Webhooks().Delete(r.Context(), whID); deleteErr != nil {
		if errors.Is(deleteErr, fanout.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setWebhookActive(w, r, true)
}

func (h *Handler) disableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setWebhookActive(w, r, false)
}

func (h *Handler) setWebhookActive(w http.ResponseWriter, r *http.Request, active bool) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if setErr := h.fanout.Webhooks().SetActive(r.Context(), whID, active); setErr != nil {
		if errors.Is(setErr, fanout.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	newSecret, rotateErr := h.fanout.Webhooks().RotateSecret(r.Context(), whID)
	if rotateErr != nil {
		if errors.Is(rotateErr, fanout.ErrWebhookNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, rotateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": newSecret})
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	if stateStr := queryParam(r, "state"); stateStr != "" {
		state := delivery.State(stateStr)
		opts.State = &state
	}

	deliveries, listErr := h.fanout.Store().ListByWebhook(r.Context(), whID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}

func (h *Handler) webhookStats(w http.ResponseWriter, r *http.Request) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	stats, statsErr := h.fanout.Store().DeliveryStats(r.Context(), whID)
	if statsErr != nil {
		writeError(w, http.StatusInternalServerError, statsErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
