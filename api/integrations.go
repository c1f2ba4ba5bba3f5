package api

import (
	"errors"
	"net/http"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
)

func (h *Handler) createIntegration(w http.ResponseWriter, r *http.Request) {
	var in integration.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intg, err := h.fanout.Integrations().Create(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, intg)
}

func (h *Handler) listIntegrations(w http.ResponseWriter, r *http.Request) {
	ownerID := queryParam(r, "owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required")
		return
	}

	opts := integration.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		Kind:   integration.Kind(queryParam(r, "kind")),
	}
	if v := queryParam(r, "active"); v != "" {
		active := v == "true"
		opts.Active = &active
	}

	intgs, err := h.fanout.Integrations().List(r.Context(), ownerID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, intgs)
}

func (h *Handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	intgID, err := id.ParseIntegrationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid integration ID")
		return
	}

	intg, getErr := h.fanout.Integrations().Get(r.Context(), intgID)
	if getErr != nil {
		if errors.Is(getErr, fanout.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "integration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, intg)
}

func (h *Handler) updateIntegration(w http.ResponseWriter, r *http.Request) {
	intgID, err := id.ParseIntegrationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid integration ID")
		return
	}

	var in integration.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intg, updateErr := h.fanout.Integrations().Update(r.Context(), intgID, in)
	if updateErr != nil {
		if errors.Is(updateErr, fanout.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "integration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, updateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, intg)
}

func (h *Handler) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	intgID, err := id.ParseIntegrationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid integration ID")
		return
	}

	if deleteErr := h.fanout.Integrations().Delete(r.Context(), intgID); deleteErr != nil {
		if errors.Is(deleteErr, fanout.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "integration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableIntegration(w http.ResponseWriter, r *http.Request) {
	h.setIntegrationActive(w, r, true)
}

func (h *Handler) disableIntegration(w http.ResponseWriter, r *http.Request) {
	h.setIntegrationActive(w, r, false)
}

func (h *Handler) setIntegrationActive(w http.ResponseWriter, r *http.Request, active bool) {
	intgID, err := id.ParseIntegrationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid integration ID")
		return
	}

	if setErr := h.fanout.Integrations().SetActive(r.Context(), intgID, active); setErr != nil {
		if errors.Is(setErr, fanout.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "integration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, setErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
