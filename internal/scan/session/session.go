package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ms-admission/internal/models"
	scan "ms-admission/internal/scan/service"
)

// State is the gate display state machine:
// Idle -> Debouncing -> Validating -> (Admitted | Rejected) -> Idle.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateValidating State = "validating"
	StateAdmitted   State = "admitted"
	StateRejected   State = "rejected"
)

var (
	// ErrOffline blocks validation while the gate has no connectivity. Scans
	// are never queued for replay: admitting them after reconnect could
	// double-admit a ticket claimed elsewhere in the meantime.
	ErrOffline = errors.New("gate offline, cannot validate")
	// ErrDebounced discards a repeat read of the same credential held in
	// front of the camera.
	ErrDebounced = errors.New("duplicate read within debounce window")
	// ErrBusy drops input arriving while a validation is already in flight.
	ErrBusy = errors.New("validation already in flight")
)

type ValidatorLayer interface {
	Validate(ctx context.Context, req scan.ScanRequest) models.Outcome
}

// Config carries the per-gate tuning knobs.
type Config struct {
	DebounceWindow time.Duration
	DisplayTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DebounceWindow: 2 * time.Second,
		DisplayTimeout: 3 * time.Second,
	}
}

// GateSession frames every scan from one device. It guarantees a single
// in-flight validation per gate, filters repeat reads inside the debounce
// window, and refuses to validate while offline. The ledger and stats are
// owned by the validator; this type only gates what reaches it.
type GateSession struct {
	EventID string
	GateID  string

	validator ValidatorLayer
	cfg       Config

	mu              sync.Mutex
	state           State
	online          bool
	inFlight        bool
	lastCredential  string
	lastProcessedAt time.Time
	displayTimer    *time.Timer
}

func New(eventID, gateID string, validator ValidatorLayer, cfg Config) *GateSession {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	if cfg.DisplayTimeout <= 0 {
		cfg.DisplayTimeout = DefaultConfig().DisplayTimeout
	}
	return &GateSession{
		EventID:   eventID,
		GateID:    gateID,
		validator: validator,
		cfg:       cfg,
		state:     StateIdle,
		online:    true,
	}
}

// Submit runs one raw credential read through the session. It returns the
// validator's outcome, or one of ErrOffline, ErrDebounced, ErrBusy when the
// read never reached the validator (in which case nothing was recorded).
func (g *GateSession) Submit(ctx context.Context, credential string) (models.Outcome, error) {
	g.mu.Lock()
	if !g.online {
		g.mu.Unlock()
		return models.Outcome{}, ErrOffline
	}
	if g.inFlight {
		g.mu.Unlock()
		return models.Outcome{}, ErrBusy
	}

	now := time.Now()
	g.state = StateDebouncing
	if credential == g.lastCredential && now.Sub(g.lastProcessedAt) < g.cfg.DebounceWindow {
		g.state = StateIdle
		g.mu.Unlock()
		return models.Outcome{}, ErrDebounced
	}

	g.inFlight = true
	g.state = StateValidating
	g.mu.Unlock()

	out := g.validator.Validate(ctx, scan.ScanRequest{
		Credential: credential,
		EventID:    g.EventID,
		GateID:     g.GateID,
		ScannedAt:  now.UTC(),
	})

	g.mu.Lock()
	g.inFlight = false
	// A transient store failure leaves the debounce marker untouched so the
	// operator can re-scan the same credential immediately.
	if !out.Retryable() {
		g.lastCredential = credential
		g.lastProcessedAt = now
	}
	if out.Admitted {
		g.state = StateAdmitted
	} else {
		g.state = StateRejected
	}
	g.scheduleIdleReturn()
	g.mu.Unlock()

	return out, nil
}

// scheduleIdleReturn arms the display timeout. Callers hold g.mu.
func (g *GateSession) scheduleIdleReturn() {
	if g.displayTimer != nil {
		g.displayTimer.Stop()
	}
	g.displayTimer = time.AfterFunc(g.cfg.DisplayTimeout, func() {
		g.mu.Lock()
		if g.state == StateAdmitted || g.state == StateRejected {
			g.state = StateIdle
		}
		g.mu.Unlock()
	})
}

// SetOnline flips the connectivity state. Transitions do not interrupt an
// in-flight validation; they only gate the next Submit.
func (g *GateSession) SetOnline(online bool) {
	g.mu.Lock()
	g.online = online
	g.mu.Unlock()
}

func (g *GateSession) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

func (g *GateSession) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// End releases the session's display timer. Counter reset is a separate,
// explicit operator action handled by the stats layer.
func (g *GateSession) End() {
	g.mu.Lock()
	if g.displayTimer != nil {
		g.displayTimer.Stop()
		g.displayTimer = nil
	}
	g.state = StateIdle
	g.mu.Unlock()
}
