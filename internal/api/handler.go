// Package api exposes the sync core to the dashboard UI: a sync trigger,
// aggregate queries and manual-reservation management. All reads are
// synchronous views over the cache store.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-eventsync/internal/classify"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/manual"
	"ms-eventsync/internal/models"
	"ms-eventsync/internal/revenue"
	"ms-eventsync/internal/store"
	"ms-eventsync/internal/syncer"
	"ms-eventsync/internal/utils"
)

type Handler struct {
	Store           *store.Store
	Orchestrator    *syncer.Orchestrator
	Manual          *manual.Service
	Classify        *classify.Service
	DefaultCapacity int
	Logger          *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/sync", h.runSync)
	r.Get("/api/events", h.listEvents)
	r.Get("/api/events/{eventID}/totals", h.eventTotals)
	r.Get("/api/events/{eventID}/attendees", h.listAttendees)
	r.Get("/api/events/{eventID}/payments", h.listPayments)
	r.Get("/api/events/{eventID}/snapshots", h.listSnapshots)
	r.Get("/api/events/{eventID}/classification", h.classification)
	r.Get("/api/events/{eventID}/manual", h.listManual)
	r.Post("/api/events/{eventID}/manual", h.createManual)
	r.Put("/api/manual/{id}", h.updateManual)
	r.Delete("/api/manual/{id}", h.deleteManual)
	r.Get("/api/manual/{id}/qr", h.manualQR)
	r.Get("/api/settings/{key}", h.getSetting)
	r.Put("/api/settings/{key}", h.putSetting)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	result := h.Orchestrator.RunSync(r.Context())
	switch {
	case result.Success:
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(result.Message, result))
	case result.Message == "sync already in progress":
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("sync rejected", result.Message))
	default:
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("sync failed", result.Message))
	}
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list events", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("events", events))
}

func (h *Handler) eventTotals(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	event, err := h.Store.GetEventByExternalID(ctx, eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("event not found", err.Error()))
		return
	}
	attendees, err := h.Store.ListAttendees(ctx, eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load attendees", err.Error()))
		return
	}
	manualList, err := h.Store.ListManualAttendees(ctx, eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load reservations", err.Error()))
		return
	}
	payments, err := h.Store.ListPayments(ctx, eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load payments", err.Error()))
		return
	}

	totals := revenue.ComputeEventTotals(*event, attendees, manualList, payments, h.DefaultCapacity)
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("totals", totals))
}

func (h *Handler) listAttendees(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	records, err := h.Store.ListAttendees(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list attendees", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("attendees", records))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list payments", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payments", payments))
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	snaps, err := h.Store.ListSnapshots(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list snapshots", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("snapshots", snaps))
}

func (h *Handler) classification(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	event, err := h.Store.GetEventByExternalID(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("event not found", err.Error()))
		return
	}
	force := r.URL.Query().Get("force") == "1"
	c, err := h.Classify.Classify(r.Context(), *event, force)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("classification failed", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("classification", c))
}

func (h *Handler) listManual(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	list, err := h.Manual.List(r.Context(), eventID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to list reservations", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("reservations", list))
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventParam(w, r)
	if !ok {
		return
	}
	var m models.ManualAttendee
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	m.EventID = eventID
	if err := h.Manual.Create(r.Context(), &m); err != nil {
		status := http.StatusInternalServerError
		if manual.IsValidation(err) {
			status = http.StatusBadRequest
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("failed to create reservation", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("reservation created", m))
}

func (h *Handler) updateManual(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var m models.ManualAttendee
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if err := h.Manual.Update(r.Context(), id, &m); err != nil {
		status := http.StatusInternalServerError
		if manual.IsValidation(err) {
			status = http.StatusBadRequest
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("failed to update reservation", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("reservation updated", m))
}

func (h *Handler) deleteManual(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manual.Delete(r.Context(), id); err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("failed to delete reservation", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("reservation deleted", nil))
}

func (h *Handler) manualQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	png, err := h.Manual.CheckInQR(r.Context(), id)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("failed to render QR", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.Store.GetSetting(r.Context(), key)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to read setting", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("setting", map[string]string{"key": key, "value": value}))
}

func (h *Handler) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if err := h.Store.SetSetting(r.Context(), key, body.Value); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to write setting", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("setting saved", nil))
}

func (h *Handler) eventParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid event id", chi.URLParam(r, "eventID")))
		return 0, false
	}
	return id, true
}
