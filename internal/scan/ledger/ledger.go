package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-admission/internal/models"
)

// DB is the append-only scan ledger. Records are never updated or deleted;
// the only reads are the first-admitted lookup used for arbitration evidence
// and the per-ticket history behind the arbitration view.
type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Append writes one scan record. Timestamps are clamped so they never run
// backwards within a ticket's history, which keeps the ledger ordered even
// when scanning devices disagree about the time. The clamp and the insert
// share one transaction: a record committed between them could otherwise
// leave a later seq with an earlier timestamp.
func (d *DB) Append(ctx context.Context, rec *models.ScanRecord) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if rec.TicketID != "" {
			var last models.ScanRecord
			err := tx.NewSelect().
				Model(&last).
				Where("ticket_id = ?", rec.TicketID).
				Order("seq DESC").
				Limit(1).
				Scan(ctx)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if err == nil && rec.ScannedAt.Before(last.ScannedAt) {
				rec.ScannedAt = last.ScannedAt
			}
		}

		_, err := tx.NewInsert().Model(rec).Exec(ctx)
		return err
	})
}

// FirstAdmittedFor returns the admitted record with the lowest store-assigned
// sequence for a ticket, or nil when the ticket was never admitted.
func (d *DB) FirstAdmittedFor(ctx context.Context, ticketID string) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	err := d.Bun.NewSelect().
		Model(&rec).
		Where("ticket_id = ?", ticketID).
		Where("outcome = ?", models.OutcomeAdmitted).
		Order("seq ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordsFor returns the full scan history of a ticket in sequence order.
func (d *DB) RecordsFor(ctx context.Context, ticketID string) ([]models.ScanRecord, error) {
	var recs []models.ScanRecord
	err := d.Bun.NewSelect().
		Model(&recs).
		Where("ticket_id = ?", ticketID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
