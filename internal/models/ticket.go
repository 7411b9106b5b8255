package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID    string    `bun:"ticket_id,pk" json:"ticket_id"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	Credential  string    `bun:"credential,notnull,unique" json:"credential"`
	HolderName  string    `bun:"holder_name" json:"holder_name"`
	HolderPhone string    `bun:"holder_phone" json:"holder_phone,omitempty"`
	Zone        string    `bun:"zone" json:"zone,omitempty"`
	Redeemed    bool      `bun:"redeemed" json:"redeemed"`
	RedeemedAt  time.Time `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
	IssuedAt    time.Time `bun:"issued_at" json:"issued_at"`
}
