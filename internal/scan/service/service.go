package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/scan/stats"
	"ms-admission/internal/scan/store"
)

type TicketStoreLayer interface {
	Lookup(ctx context.Context, credential, eventID string) (*models.Ticket, error)
	TryClaim(ctx context.Context, ticketID, eventID, gateID string, at time.Time) (bool, *models.ScanRecord, error)
}

type LedgerLayer interface {
	Append(ctx context.Context, rec *models.ScanRecord) error
	FirstAdmittedFor(ctx context.Context, ticketID string) (*models.ScanRecord, error)
}

type StatsLayer interface {
	Increment(ctx context.Context, eventID, gateID string, class stats.Class) error
}

// OutcomePublisher streams decided scans to downstream consumers. Publishing
// is best effort and never changes the outcome of a scan.
type OutcomePublisher interface {
	PublishScanOutcome(rec models.ScanRecord, outcome models.Outcome) error
}

// ScanRequest frames one credential presentation at a gate.
type ScanRequest struct {
	Credential string
	EventID    string
	GateID     string
	ScannedAt  time.Time
}

// Validator decides whether a presented credential may pass. Admission is an
// atomic conditional claim against the ticket store: among any number of
// concurrent calls for one ticket, exactly one returns Admitted and every
// other returns AlreadyRedeemed with the winner's scan record as evidence.
// On any store failure the validator fails closed.
type Validator struct {
	Store  TicketStoreLayer
	Ledger LedgerLayer
	Stats  StatsLayer
	Events OutcomePublisher
	Logger *logger.Logger
}

func NewValidator(st TicketStoreLayer, lg LedgerLayer, sa StatsLayer, ev OutcomePublisher, log *logger.Logger) *Validator {
	return &Validator{Store: st, Ledger: lg, Stats: sa, Events: ev, Logger: log}
}

func (v *Validator) Validate(ctx context.Context, req ScanRequest) models.Outcome {
	if req.ScannedAt.IsZero() {
		req.ScannedAt = time.Now().UTC()
	}

	if strings.TrimSpace(req.Credential) == "" {
		out := models.Outcome{Reason: models.RejectMalformedCredential}
		v.record(ctx, req, "", out)
		return out
	}

	ticket, err := v.Store.Lookup(ctx, req.Credential, req.EventID)
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		out := models.Outcome{Reason: models.RejectNotFound}
		v.record(ctx, req, "", out)
		return out
	case errors.Is(err, store.ErrWrongEvent):
		out := models.Outcome{Reason: models.RejectWrongEvent}
		// The store returns the ticket with the error; link the rejected
		// record to it for fraud review.
		var ticketID string
		if ticket != nil {
			ticketID = ticket.TicketID
		}
		v.record(ctx, req, ticketID, out)
		return out
	case err != nil:
		v.logError("SCAN", fmt.Sprintf("lookup failed at gate %s: %v", req.GateID, err))
		return models.Outcome{Reason: models.RejectStoreUnavailable}
	}

	claimed, first, err := v.Store.TryClaim(ctx, ticket.TicketID, req.EventID, req.GateID, req.ScannedAt)
	if err != nil {
		v.logError("SCAN", fmt.Sprintf("claim failed for ticket %s at gate %s: %v", ticket.TicketID, req.GateID, err))
		return models.Outcome{Reason: models.RejectStoreUnavailable}
	}

	if claimed {
		out := models.Outcome{
			Admitted:   true,
			TicketID:   ticket.TicketID,
			HolderName: ticket.HolderName,
			Zone:       ticket.Zone,
		}
		// The admitted scan record was written inside the claim transaction;
		// only stats and the event stream remain.
		v.increment(ctx, req, out)
		v.publish(*first, out)
		return out
	}

	if first == nil {
		// Redeemed flag set with no admitted record; fall back to the ledger
		// in case the record landed through an older path.
		first, err = v.Ledger.FirstAdmittedFor(ctx, ticket.TicketID)
		if err != nil {
			v.logError("SCAN", fmt.Sprintf("evidence lookup failed for ticket %s: %v", ticket.TicketID, err))
		}
	}

	out := models.Outcome{
		Reason:     models.RejectAlreadyRedeemed,
		TicketID:   ticket.TicketID,
		HolderName: ticket.HolderName,
		Zone:       ticket.Zone,
	}
	if first != nil {
		out.FirstGateID = first.GateID
		out.FirstScannedAt = first.ScannedAt
	}
	v.record(ctx, req, ticket.TicketID, out)
	return out
}

// record appends the ledger entry and bumps the session counters for a
// decided scan. Ledger and stats writes are not allowed to change the
// outcome the operator sees; failures are logged and the decision stands.
func (v *Validator) record(ctx context.Context, req ScanRequest, ticketID string, out models.Outcome) {
	rec := models.ScanRecord{
		TicketID:   ticketID,
		Credential: req.Credential,
		EventID:    req.EventID,
		GateID:     req.GateID,
		ScannedAt:  req.ScannedAt,
		Outcome:    out.LedgerOutcome(),
	}
	if err := v.Ledger.Append(ctx, &rec); err != nil {
		v.logError("LEDGER", fmt.Sprintf("append failed at gate %s: %v", req.GateID, err))
	}
	v.increment(ctx, req, out)
	v.publish(rec, out)
}

func (v *Validator) increment(ctx context.Context, req ScanRequest, out models.Outcome) {
	class := stats.ClassInvalid
	if out.Admitted {
		class = stats.ClassValid
	}
	if err := v.Stats.Increment(ctx, req.EventID, req.GateID, class); err != nil {
		v.logError("STATS", fmt.Sprintf("increment failed at gate %s: %v", req.GateID, err))
	}
}

func (v *Validator) publish(rec models.ScanRecord, out models.Outcome) {
	if v.Events == nil {
		return
	}
	if err := v.Events.PublishScanOutcome(rec, out); err != nil {
		v.logError("KAFKA", fmt.Sprintf("scan event publish failed for gate %s: %v", rec.GateID, err))
	}
}

func (v *Validator) logError(category, message string) {
	if v.Logger != nil {
		v.Logger.Error(category, message)
	}
}
