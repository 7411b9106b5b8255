package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanRecord is one row of the append-only scan ledger. Seq is assigned by
// the store and orders records independently of device clocks; the lowest
// Seq with an admitted outcome is the arbitration evidence for a ticket.
type ScanRecord struct {
	bun.BaseModel `bun:"table:scan_records"`

	Seq        int64     `bun:"seq,pk,autoincrement" json:"seq"`
	TicketID   string    `bun:"ticket_id" json:"ticket_id,omitempty"`
	Credential string    `bun:"credential" json:"credential,omitempty"`
	EventID    string    `bun:"event_id,notnull" json:"event_id"`
	GateID     string    `bun:"gate_id,notnull" json:"gate_id"`
	ScannedAt  time.Time `bun:"scanned_at,notnull" json:"scanned_at"`
	Outcome    string    `bun:"outcome,notnull" json:"outcome"`
}
