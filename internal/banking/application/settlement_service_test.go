package application

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	"gridledger/internal/audit"
	banking "gridledger/internal/banking/domain"
	"gridledger/internal/banking/infrastructure/memory"
	"gridledger/internal/eventbus"
)

type stubPoolReader struct {
	pools []banking.PoolInput
	err   error
}

func (s *stubPoolReader) PoolsForMonth(ctx context.Context, client string, month time.Time) ([]banking.PoolInput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pools, nil
}

type stubRepo struct {
	saved   []banking.SettlementRecord
	plantID string
	listed  []banking.SettlementRecord
	saveErr error
}

func (s *stubRepo) SaveAll(ctx context.Context, plantID string, records []banking.SettlementRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.plantID = plantID
	s.saved = append([]banking.SettlementRecord(nil), records...)
	return nil
}

func (s *stubRepo) ListByClientMonth(ctx context.Context, client string, month time.Time) ([]banking.SettlementRecord, error) {
	return s.listed, nil
}

func (s *stubRepo) ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error) {
	return s.listed, nil
}

type stubRunLog struct {
	entries []audit.RunEntry
	err     error
}

func (s *stubRunLog) Log(ctx context.Context, entry audit.RunEntry) error {
	s.entries = append(s.entries, entry)
	return s.err
}

type serviceClock struct {
	now time.Time
}

func (c *serviceClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func settlementPools() []banking.PoolInput {
	date := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	return []banking.PoolInput{
		{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day", Date: date, SurplusGenerationSum: 120},
		{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Evening Peak", Date: date, SurplusDemandSum: 90},
	}
}

func newTestSettlementService(t *testing.T, pools *stubPoolReader, repo *stubRepo, runs *stubRunLog, bus eventbus.EventBus) *SettlementService {
	t.Helper()
	clock := &serviceClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	service, err := NewSettlementService(pools, repo, banking.NewLedger(), runs, bus,
		log.New(io.Discard, "", 0), WithClock(clock))
	if err != nil {
		t.Fatalf("NewSettlementService: %v", err)
	}
	return service
}

func TestSettleMonthPersistsAndPublishes(t *testing.T) {
	pools := &stubPoolReader{pools: settlementPools()}
	repo := &stubRepo{}
	runs := &stubRunLog{}
	bus := eventbus.NewInMemoryBus()

	var events []eventbus.MonthSettled
	bus.Subscribe(eventbus.EventTypeOf[eventbus.MonthSettled](), func(ctx context.Context, event any) error {
		events = append(events, event.(eventbus.MonthSettled))
		return nil
	})

	service := newTestSettlementService(t, pools, repo, runs, bus)
	result, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "10.1.2.3")
	if err != nil {
		t.Fatalf("SettleMonth: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if len(repo.saved) != 2 || repo.plantID != "PLANT-01" {
		t.Fatalf("repo saved %d records for plant %q, want 2 for PLANT-01", len(repo.saved), repo.plantID)
	}

	// Intra stage matches the unit's own surplus against its demand.
	var intra float64
	for _, rec := range repo.saved {
		intra += rec.IntraSettlement
	}
	if math.Abs(intra-90) > 1e-9 {
		t.Fatalf("intra settled = %v, want 90", intra)
	}

	if len(runs.entries) != 1 {
		t.Fatalf("run log entries = %d, want 1", len(runs.entries))
	}
	entry := runs.entries[0]
	if entry.Status != audit.StatusCompleted {
		t.Fatalf("run status = %q, want completed", entry.Status)
	}
	if entry.RecordCount != 2 || entry.RequestedBy != "10.1.2.3" {
		t.Fatalf("run entry = %+v, want 2 records requested by 10.1.2.3", entry)
	}
	if entry.SnapshotDigest == "" {
		t.Fatal("run entry carries no snapshot digest")
	}

	if len(events) != 1 {
		t.Fatalf("month settled events = %d, want 1", len(events))
	}
	if events[0].RecordCount != 2 || !events[0].Month.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("event = %+v, want 2 records for 2024-05", events[0])
	}
}

func TestSettleMonthEmptyPoolsFails(t *testing.T) {
	pools := &stubPoolReader{}
	repo := &stubRepo{}
	runs := &stubRunLog{}
	service := newTestSettlementService(t, pools, repo, runs, nil)

	_, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "")
	if !errors.Is(err, banking.ErrNoPools) {
		t.Fatalf("SettleMonth error = %v, want ErrNoPools", err)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("repo saved %d records on failure, want 0", len(repo.saved))
	}
	if len(runs.entries) != 1 || runs.entries[0].Status != audit.StatusFailed {
		t.Fatalf("run log = %+v, want one failed entry", runs.entries)
	}
}

func TestSettleMonthSaveFailure(t *testing.T) {
	saveErr := errors.New("deadlock detected")
	pools := &stubPoolReader{pools: settlementPools()}
	repo := &stubRepo{saveErr: saveErr}
	runs := &stubRunLog{}
	service := newTestSettlementService(t, pools, repo, runs, nil)

	_, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "")
	if !errors.Is(err, saveErr) {
		t.Fatalf("SettleMonth error = %v, want save error", err)
	}
	if len(runs.entries) != 1 || runs.entries[0].Status != audit.StatusFailed {
		t.Fatalf("run log = %+v, want one failed entry", runs.entries)
	}
	if runs.entries[0].Error == "" {
		t.Fatal("failed run entry carries no error text")
	}
}

func TestSettleMonthValidatesInput(t *testing.T) {
	service := newTestSettlementService(t, &stubPoolReader{}, &stubRepo{}, &stubRunLog{}, nil)

	if _, err := service.SettleMonth(context.Background(), "", "PLANT-01", time.Now(), ""); err == nil {
		t.Fatal("SettleMonth accepted empty client")
	}
	if _, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01", time.Time{}, ""); err == nil {
		t.Fatal("SettleMonth accepted zero month")
	}
}

func TestRecordsDelegatesToRepository(t *testing.T) {
	repo := &stubRepo{listed: []banking.SettlementRecord{{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day"}}}
	service := newTestSettlementService(t, &stubPoolReader{}, repo, &stubRunLog{}, nil)

	records, err := service.Records(context.Background(), "ACME Industries", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].Unit != "UNIT-A" {
		t.Fatalf("records = %+v, want the stored row", records)
	}
}

func TestSettleMonthClosedLoopWithMemoryStore(t *testing.T) {
	date := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	store := memory.NewRepository()
	store.AddPools(
		banking.PoolInput{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day", Date: date, SurplusGenerationSum: 100},
		banking.PoolInput{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Evening Peak", Date: date, SurplusDemandSum: 60},
		banking.PoolInput{Client: "ACME Industries", Unit: "UNIT-B", Slot: "Day", Date: date, SurplusDemandSum: 50},
		banking.PoolInput{Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day", Date: date.AddDate(0, 1, 0), SurplusGenerationSum: 70},
	)

	clock := &serviceClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	service, err := NewSettlementService(store, store, banking.NewLedger(), &stubRunLog{}, nil,
		log.New(io.Discard, "", 0), WithClock(clock))
	if err != nil {
		t.Fatalf("NewSettlementService: %v", err)
	}

	month := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	result, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01", month, "loop-test")
	if err != nil {
		t.Fatalf("SettleMonth: %v", err)
	}
	// The June pool stays out of the May snapshot.
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}

	// Re-run upserts the same keys instead of growing the store.
	if _, err := service.SettleMonth(context.Background(), "ACME Industries", "PLANT-01", month, "loop-test"); err != nil {
		t.Fatalf("SettleMonth rerun: %v", err)
	}
	stored, err := service.Records(context.Background(), "ACME Industries", month)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored rows = %d, want 3", len(stored))
	}
	if err := banking.Verify(stored, 0); err != nil {
		t.Fatalf("stored rows break conservation: %v", err)
	}

	var drawn banking.SettlementRecord
	for _, rec := range stored {
		if rec.Unit == "UNIT-B" {
			drawn = rec
		}
	}
	if math.Abs(drawn.InterSettlement-40) > 1e-9 {
		t.Fatalf("UNIT-B inter settlement = %v, want 40", drawn.InterSettlement)
	}
	if math.Abs(drawn.SurplusDemandAfterInter-10) > 1e-9 {
		t.Fatalf("UNIT-B demand after inter = %v, want 10", drawn.SurplusDemandAfterInter)
	}
}
