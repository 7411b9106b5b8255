package scan_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/scan/session"
	"ms-admission/internal/scan/store"
	"ms-admission/internal/utils"
)

type StatsLayer interface {
	Snapshot(ctx context.Context, eventID, gateID string) (models.SessionStats, error)
	Reset(ctx context.Context, eventID, gateID string) error
}

type LedgerLayer interface {
	FirstAdmittedFor(ctx context.Context, ticketID string) (*models.ScanRecord, error)
	RecordsFor(ctx context.Context, ticketID string) ([]models.ScanRecord, error)
}

type TicketLayer interface {
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
}

type Handler struct {
	Registry     *session.Registry
	Stats        StatsLayer
	Ledger       LedgerLayer
	Tickets      TicketLayer
	Logger       *logger.Logger
	StoreTimeout time.Duration
}

func NewHandler(registry *session.Registry, stats StatsLayer, ledger LedgerLayer, tickets TicketLayer, log *logger.Logger, storeTimeout time.Duration) *Handler {
	return &Handler{
		Registry:     registry,
		Stats:        stats,
		Ledger:       ledger,
		Tickets:      tickets,
		Logger:       log,
		StoreTimeout: storeTimeout,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/scan/{eventID}/{gateID}", func(r chi.Router) {
		r.Post("/", h.Scan)
		r.Get("/stats", h.SessionStats)
		r.Post("/end", h.EndSession)
	})
	r.Get("/arbitration/{ticketID}", h.Arbitration)
}

// Scan runs one raw credential read through the gate session for the
// event/gate in the URL.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	gateID := chi.URLParam(r, "gateID")

	var requestBody struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	gate := h.Registry.Get(eventID, gateID)

	ctx, cancel := context.WithTimeout(r.Context(), h.StoreTimeout)
	defer cancel()

	outcome, err := gate.Submit(ctx, requestBody.Credential)
	switch {
	case errors.Is(err, session.ErrOffline):
		writeJSON(w, http.StatusServiceUnavailable, utils.RetryableResponse("Gate offline, cannot validate", err.Error()))
		return
	case errors.Is(err, session.ErrDebounced):
		writeJSON(w, http.StatusOK, utils.SuccessResponse("Duplicate read ignored", map[string]bool{"debounced": true}))
		return
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusTooManyRequests, utils.ErrorResponse("Validation already in flight", err.Error()))
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Scan failed", err.Error()))
		return
	}

	if outcome.Retryable() {
		h.logScan(gateID, string(outcome.Reason), "store unreachable, operator may re-scan")
		writeJSON(w, http.StatusServiceUnavailable, utils.RetryableResponse("Ticket store unreachable", string(outcome.Reason)))
		return
	}

	h.logScan(gateID, outcome.LedgerOutcome(), fmt.Sprintf("ticket %s", outcome.TicketID))

	if outcome.Admitted {
		writeJSON(w, http.StatusOK, utils.SuccessResponse("Admitted", outcome))
		return
	}
	resp := utils.ErrorResponse("Rejected", string(outcome.Reason))
	resp.Data = outcome
	writeJSON(w, http.StatusOK, resp)
}

// SessionStats returns the persisted counters for one gate session.
func (h *Handler) SessionStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	gateID := chi.URLParam(r, "gateID")

	snapshot, err := h.Stats.Snapshot(r.Context(), eventID, gateID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Failed to load session stats", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Session stats", snapshot))
}

// EndSession resets the counters and drops the gate session. This is the only
// path that ever resets stats.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	gateID := chi.URLParam(r, "gateID")

	if err := h.Stats.Reset(r.Context(), eventID, gateID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Failed to reset session stats", err.Error()))
		return
	}
	h.Registry.Remove(eventID, gateID)

	h.logGate(gateID, "session ended by operator")
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Session ended", nil))
}

// Arbitration exposes the evidence for a duplicate-scan dispute: holder
// identity, the first admitted record, and the full scan history. Every
// access is logged.
func (h *Handler) Arbitration(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	ticket, err := h.Tickets.GetTicketByID(r.Context(), ticketID)
	if errors.Is(err, store.ErrTicketNotFound) {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Ticket not found", err.Error()))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Failed to load ticket", err.Error()))
		return
	}

	first, err := h.Ledger.FirstAdmittedFor(r.Context(), ticketID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Failed to load first admission", err.Error()))
		return
	}
	history, err := h.Ledger.RecordsFor(r.Context(), ticketID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Failed to load scan history", err.Error()))
		return
	}

	h.logArbitration(ticketID, "holder identity exposed for dispute review")

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Arbitration evidence", map[string]interface{}{
		"ticket_id":      ticket.TicketID,
		"holder_name":    ticket.HolderName,
		"holder_phone":   ticket.HolderPhone,
		"zone":           ticket.Zone,
		"first_admitted": first,
		"history":        history,
	}))
}

func (h *Handler) logScan(gateID, outcome, message string) {
	if h.Logger != nil {
		h.Logger.LogScan(gateID, outcome, message)
	}
}

func (h *Handler) logGate(gateID, message string) {
	if h.Logger != nil {
		h.Logger.LogGate(gateID, message)
	}
}

func (h *Handler) logArbitration(ticketID, message string) {
	if h.Logger != nil {
		h.Logger.LogArbitration(ticketID, message)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
