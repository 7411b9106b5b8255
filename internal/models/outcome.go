package models

import "time"

// RejectReason enumerates every way a scan can be refused. Consumers switch
// over these values; there is no free-form rejection.
type RejectReason string

const (
	RejectNotFound            RejectReason = "not_found"
	RejectWrongEvent          RejectReason = "wrong_event"
	RejectAlreadyRedeemed     RejectReason = "already_redeemed"
	RejectStoreUnavailable    RejectReason = "store_unavailable"
	RejectMalformedCredential RejectReason = "malformed_credential"
)

// OutcomeAdmitted is the ledger outcome value for a successful claim.
// Rejected ledger rows carry the RejectReason string instead.
const OutcomeAdmitted = "admitted"

// Outcome is the decision for one scan attempt. Exactly one of the two arms
// is populated: Admitted=true with the ticket fields, or Admitted=false with
// a Reason. AlreadyRedeemed additionally carries the first admitted scan as
// arbitration evidence.
type Outcome struct {
	Admitted bool         `json:"admitted"`
	Reason   RejectReason `json:"reason,omitempty"`

	TicketID   string `json:"ticket_id,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
	Zone       string `json:"zone,omitempty"`

	FirstGateID    string    `json:"first_gate_id,omitempty"`
	FirstScannedAt time.Time `json:"first_scanned_at,omitempty"`
}

// Retryable reports whether the operator may simply re-scan: only transient
// store failures qualify, genuine rejections are terminal.
func (o Outcome) Retryable() bool {
	return !o.Admitted && o.Reason == RejectStoreUnavailable
}

// LedgerOutcome is the value recorded in the scan ledger for this outcome.
func (o Outcome) LedgerOutcome() string {
	if o.Admitted {
		return OutcomeAdmitted
	}
	return string(o.Reason)
}
