package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-admission/internal/models"
)

var (
	// ErrTicketNotFound means no ticket carries the presented credential.
	ErrTicketNotFound = errors.New("no ticket matches credential")
	// ErrWrongEvent means the credential is real but belongs to another event.
	ErrWrongEvent = errors.New("ticket belongs to a different event")
)

type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Lookup resolves a credential within an event. The credential is unique
// across all tickets, so a hit for a different event is distinguishable from
// a miss and reported as ErrWrongEvent. The ticket is returned alongside
// that error so the rejection can still be linked to it for review.
func (d *DB) Lookup(ctx context.Context, credential, eventID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("credential = ?", credential).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if ticket.EventID != eventID {
		return &ticket, ErrWrongEvent
	}
	return &ticket, nil
}

// GetTicketByID fetches a ticket directly, used by the arbitration view.
func (d *DB) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// TryClaim performs the atomic single-use claim. The redemption flip and the
// admitted scan record are committed in one transaction: exactly one caller
// for a ticket ever sees claimed=true, and the record written by that caller
// is the evidence every loser receives. The winner is decided by the store's
// own sequencing, never by device clocks.
func (d *DB) TryClaim(ctx context.Context, ticketID, eventID, gateID string, at time.Time) (bool, *models.ScanRecord, error) {
	var claimed bool
	var first *models.ScanRecord

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("redeemed = ?", true).
			Set("redeemed_at = ?", at).
			Where("ticket_id = ?", ticketID).
			Where("redeemed = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 1 {
			rec := models.ScanRecord{
				TicketID:  ticketID,
				EventID:   eventID,
				GateID:    gateID,
				ScannedAt: at,
				Outcome:   models.OutcomeAdmitted,
			}
			if _, err := tx.NewInsert().Model(&rec).Exec(ctx); err != nil {
				return err
			}
			claimed = true
			first = &rec
			return nil
		}

		// Lost the claim. The winner's admitted record is already committed;
		// return it verbatim so every duplicate scan carries identical evidence.
		var existing models.ScanRecord
		err = tx.NewSelect().
			Model(&existing).
			Where("ticket_id = ?", ticketID).
			Where("outcome = ?", models.OutcomeAdmitted).
			Order("seq ASC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// Ticket marked redeemed without an admitted record. Evidence is
			// unavailable but the claim still fails.
			return nil
		}
		if err != nil {
			return err
		}
		first = &existing
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return claimed, first, nil
}
