package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gridledger/internal/audit"
	banking "gridledger/internal/banking/domain"
	"gridledger/internal/eventbus"
	"gridledger/internal/observability/metrics"
)

const defaultVerifyEpsilon = 1e-6

// Clock provides time for run stamping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SettlementService runs banking passes: load the month's pools, walk
// the three settlement stages, verify conservation, persist the
// snapshot, and fan the result out to the audit log and event bus.
type SettlementService struct {
	pools   banking.PoolReader
	repo    banking.Repository
	ledger  *banking.Ledger
	runs    audit.Logger
	bus     eventbus.EventBus
	logger  *log.Logger
	clock   Clock
	epsilon float64
}

// Option configures the service.
type Option func(*SettlementService)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *SettlementService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithVerifyEpsilon overrides the post-settlement verification
// tolerance.
func WithVerifyEpsilon(epsilon float64) Option {
	return func(s *SettlementService) {
		if epsilon > 0 {
			s.epsilon = epsilon
		}
	}
}

// NewSettlementService constructs a service.
func NewSettlementService(pools banking.PoolReader, repo banking.Repository, ledger *banking.Ledger, runs audit.Logger, bus eventbus.EventBus, logger *log.Logger, opts ...Option) (*SettlementService, error) {
	if pools == nil {
		return nil, errors.New("settlement service: nil pool reader")
	}
	if repo == nil {
		return nil, errors.New("settlement service: nil repository")
	}
	if ledger == nil {
		return nil, errors.New("settlement service: nil ledger")
	}
	if runs == nil {
		return nil, errors.New("settlement service: nil run log")
	}
	if logger == nil {
		return nil, errors.New("settlement service: nil logger")
	}
	service := &SettlementService{
		pools:   pools,
		repo:    repo,
		ledger:  ledger,
		runs:    runs,
		bus:     bus,
		logger:  logger,
		clock:   systemClock{},
		epsilon: defaultVerifyEpsilon,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SettleMonth recomputes the ledger for a client month and replaces the
// stored snapshot. The pass is atomic from the caller's view: nothing
// is persisted unless settlement and verification both succeed.
func (s *SettlementService) SettleMonth(ctx context.Context, client, plantID string, month time.Time, requestedBy string) (*banking.LedgerResult, error) {
	start := s.clock.Now()
	metricResult := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementRun(metricResult, s.clock.Now().Sub(start))
	}()

	if client == "" {
		metricResult = metrics.ResultError
		return nil, errors.New("settlement service: client required")
	}
	if month.IsZero() {
		metricResult = metrics.ResultError
		return nil, errors.New("settlement service: month required")
	}
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)

	fail := func(err error) (*banking.LedgerResult, error) {
		metricResult = metrics.ResultError
		s.logRun(ctx, audit.RunEntry{
			Client:      client,
			PlantID:     plantID,
			Month:       monthStart,
			Status:      audit.StatusFailed,
			Error:       err.Error(),
			RequestedBy: requestedBy,
			Duration:    s.clock.Now().Sub(start),
		})
		return nil, err
	}

	pools, err := s.pools.PoolsForMonth(ctx, client, monthStart)
	if err != nil {
		return fail(err)
	}
	result, err := s.ledger.Settle(pools)
	if err != nil {
		return fail(err)
	}
	if err := banking.Verify(result.Records, s.epsilon); err != nil {
		return fail(err)
	}
	if err := s.repo.SaveAll(ctx, plantID, result.Records); err != nil {
		return fail(err)
	}

	snapshot, err := json.Marshal(result.Records)
	if err != nil {
		snapshot = nil
	}
	s.logRun(ctx, audit.RunEntry{
		Client:            client,
		PlantID:           plantID,
		Month:             monthStart,
		Status:            audit.StatusCompleted,
		RecordCount:       len(result.Records),
		RoundingShortfall: result.RoundingShortfall,
		SnapshotDigest:    audit.DigestJSON(snapshot),
		RequestedBy:       requestedBy,
		Duration:          s.clock.Now().Sub(start),
	})
	metrics.AddSettlementRecords(len(result.Records))

	if s.bus != nil {
		event := eventbus.MonthSettled{
			Client:      client,
			PlantID:     plantID,
			Month:       monthStart,
			RecordCount: len(result.Records),
			SettledAt:   s.clock.Now(),
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Printf("settlement: publish month settled for %s %s: %v",
				client, monthStart.Format("2006-01"), err)
		}
	}

	s.logger.Printf("settlement: client %s month %s settled, %d records, shortfall %.6f",
		client, monthStart.Format("2006-01"), len(result.Records), result.RoundingShortfall)
	return result, nil
}

// Records returns the stored snapshot for a client month.
func (s *SettlementService) Records(ctx context.Context, client string, month time.Time) ([]banking.SettlementRecord, error) {
	if client == "" {
		return nil, errors.New("settlement service: client required")
	}
	if month.IsZero() {
		return nil, errors.New("settlement service: month required")
	}
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.ListByClientMonth(ctx, client, monthStart)
}

// logRun appends to the run log; a failure there must not mask the
// settlement outcome.
func (s *SettlementService) logRun(ctx context.Context, entry audit.RunEntry) {
	if err := s.runs.Log(ctx, entry); err != nil {
		s.logger.Printf("settlement: run log append failed: %v", err)
	}
}
