package models

// SessionStats are the per-gate counters for one scanning session. They are
// written through on every scan so a device restart loses at most the single
// in-flight increment. TotalCount always equals ValidCount + InvalidCount.
type SessionStats struct {
	EventID      string `json:"event_id"`
	GateID       string `json:"gate_id"`
	ValidCount   int64  `json:"valid_count"`
	InvalidCount int64  `json:"invalid_count"`
	TotalCount   int64  `json:"total_count"`
}
