package store_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-admission/internal/models"
	"ms-admission/internal/scan/store"
)

func setupTestDB(t *testing.T) (*store.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Ticket)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create tickets table: %v", err)
	}
	_, err = bunDB.NewCreateTable().Model((*models.ScanRecord)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create scan_records table: %v", err)
	}
	// Same backstop the production schema carries.
	_, err = bunDB.ExecContext(context.Background(),
		`CREATE UNIQUE INDEX uq_scan_records_admitted ON scan_records (ticket_id) WHERE outcome = 'admitted'`)
	if err != nil {
		t.Fatalf("Failed to create admitted index: %v", err)
	}

	return store.NewDB(bunDB), bunDB
}

func insertTicket(t *testing.T, bunDB *bun.DB, eventID string) models.Ticket {
	ticket := models.Ticket{
		TicketID:   uuid.New().String(),
		EventID:    eventID,
		Credential: uuid.New().String(),
		HolderName: "Amara Perera",
		Zone:       "VIP",
		IssuedAt:   time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&ticket).Exec(context.Background())
	require.NoError(t, err)
	return ticket
}

func TestLookup(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ticket := insertTicket(t, bunDB, "event-1")

	// Found
	got, err := db.Lookup(context.Background(), ticket.Credential, "event-1")
	assert.NoError(t, err)
	assert.Equal(t, ticket.TicketID, got.TicketID)
	assert.Equal(t, "Amara Perera", got.HolderName)

	// Unknown credential
	_, err = db.Lookup(context.Background(), "no-such-credential", "event-1")
	assert.ErrorIs(t, err, store.ErrTicketNotFound)

	// Credential from another event is WrongEvent, never NotFound. The
	// ticket still comes back so the rejection can be linked to it.
	wrong, err := db.Lookup(context.Background(), ticket.Credential, "event-2")
	assert.ErrorIs(t, err, store.ErrWrongEvent)
	require.NotNil(t, wrong)
	assert.Equal(t, ticket.TicketID, wrong.TicketID)
}

func TestGetTicketByID(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ticket := insertTicket(t, bunDB, "event-1")

	got, err := db.GetTicketByID(context.Background(), ticket.TicketID)
	assert.NoError(t, err)
	assert.Equal(t, ticket.Credential, got.Credential)

	_, err = db.GetTicketByID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrTicketNotFound)
}

func TestTryClaimSingleUse(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ticket := insertTicket(t, bunDB, "event-1")
	at := time.Now().UTC().Truncate(time.Millisecond)

	claimed, first, err := db.TryClaim(context.Background(), ticket.TicketID, "event-1", "gate-A", at)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NotNil(t, first)
	assert.Equal(t, "gate-A", first.GateID)
	assert.Equal(t, models.OutcomeAdmitted, first.Outcome)

	// Second claim loses and receives the winner's record as evidence.
	claimed, second, err := db.TryClaim(context.Background(), ticket.TicketID, "event-1", "gate-B", at.Add(50*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, second)
	assert.Equal(t, "gate-A", second.GateID)
	assert.Equal(t, first.Seq, second.Seq)

	// Evidence is stable across repeated losing claims.
	claimed, third, err := db.TryClaim(context.Background(), ticket.TicketID, "event-1", "gate-C", at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, third)
	assert.Equal(t, second.GateID, third.GateID)
	assert.Equal(t, second.ScannedAt.Unix(), third.ScannedAt.Unix())
}

func TestAdmittedIndexRejectsSecondAdmission(t *testing.T) {
	_, bunDB := setupTestDB(t)
	defer bunDB.Close()

	// The schema itself refuses a second admitted row per ticket, even if a
	// write path sidesteps the claim transaction.
	admitted := func(gateID string) *models.ScanRecord {
		return &models.ScanRecord{
			TicketID: "tk-1", EventID: "event-1", GateID: gateID,
			ScannedAt: time.Now(), Outcome: models.OutcomeAdmitted,
		}
	}
	_, err := bunDB.NewInsert().Model(admitted("gate-A")).Exec(context.Background())
	require.NoError(t, err)

	_, err = bunDB.NewInsert().Model(admitted("gate-B")).Exec(context.Background())
	assert.Error(t, err)

	// Rejected rows are unconstrained: a ticket may be refused any number
	// of times.
	for _, gate := range []string{"gate-B", "gate-C"} {
		rejected := &models.ScanRecord{
			TicketID: "tk-1", EventID: "event-1", GateID: gate,
			ScannedAt: time.Now(), Outcome: string(models.RejectAlreadyRedeemed),
		}
		_, err = bunDB.NewInsert().Model(rejected).Exec(context.Background())
		assert.NoError(t, err)
	}
}

func TestTryClaimConcurrent(t *testing.T) {
	db, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ticket := insertTicket(t, bunDB, "event-1")

	const gates = 16
	var wg sync.WaitGroup
	results := make([]bool, gates)

	for i := 0; i < gates; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, _, err := db.TryClaim(context.Background(), ticket.TicketID, "event-1", "gate", time.Now())
			assert.NoError(t, err)
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, claimed := range results {
		if claimed {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one concurrent claim must win")
}
