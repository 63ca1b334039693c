package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	accounting "gridledger/internal/accounting/domain"
	"gridledger/internal/eventbus"
	"gridledger/internal/observability/metrics"
)

var (
	// ErrNoTariffRate is returned by Cost when no rate is configured
	// and none was supplied with the request.
	ErrNoTariffRate = errors.New("query service: no tariff rate configured")
	// ErrNoRateProvider is returned by SlotCosts when the service was
	// wired without a rate provider.
	ErrNoRateProvider = errors.New("query service: no rate provider configured")
)

// IntervalReader loads merged generation and consumption samples for a
// window. Implementations return records in any order; aggregation
// does not depend on it.
type IntervalReader interface {
	Read(ctx context.Context, window accounting.Window) ([]accounting.IntervalRecord, error)
}

// RateProvider resolves the tariff rate per kWh for a slot.
type RateProvider interface {
	Rate(ctx context.Context, slot string) (float64, error)
}

// QueryService answers dashboard queries over stored interval data:
// slot aggregation, headline summaries, cost comparison, and the
// generation-versus-consumption series.
type QueryService struct {
	reader     IntervalReader
	aggregator *accounting.Aggregator
	rates      RateProvider
	bus        eventbus.EventBus
	logger     *log.Logger
	loss       float64
	rate       float64
}

// ServiceOption configures a QueryService.
type ServiceOption func(*QueryService)

// WithEventBus publishes an observation event after each aggregation
// pass so monitoring can react to its findings.
func WithEventBus(bus eventbus.EventBus) ServiceOption {
	return func(s *QueryService) {
		s.bus = bus
	}
}

// WithLossPercent overrides the default transmission loss percentage.
func WithLossPercent(pct float64) ServiceOption {
	return func(s *QueryService) {
		if pct >= 0 && pct < 100 {
			s.loss = pct
		}
	}
}

// WithTariffRate sets the default grid tariff in currency per kWh.
func WithTariffRate(rate float64) ServiceOption {
	return func(s *QueryService) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithRateProvider enables per-slot tariff rates for the slot cost
// breakdown.
func WithRateProvider(rates RateProvider) ServiceOption {
	return func(s *QueryService) {
		s.rates = rates
	}
}

// NewQueryService constructs a service.
func NewQueryService(reader IntervalReader, aggregator *accounting.Aggregator, logger *log.Logger, opts ...ServiceOption) (*QueryService, error) {
	if reader == nil {
		return nil, errors.New("query service: nil interval reader")
	}
	if aggregator == nil {
		return nil, errors.New("query service: nil aggregator")
	}
	if logger == nil {
		return nil, errors.New("query service: nil logger")
	}
	service := &QueryService{
		reader:     reader,
		aggregator: aggregator,
		logger:     logger,
		loss:       accounting.DefaultLossPercent,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SlotAggregate runs one aggregation pass for the window and surfaces
// any data-quality warnings through the log and the warning counter.
func (s *QueryService) SlotAggregate(ctx context.Context, window accounting.Window) (*accounting.Result, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveAggregateQuery(result, time.Since(start))
	}()

	records, err := s.reader.Read(ctx, window)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	res, err := s.aggregator.Aggregate(records, window)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	s.reportWarnings(window, res.Warnings)
	s.publishObservation(ctx, window, len(records), res.Warnings)
	return res, nil
}

// Summary computes the headline energy view over the window totals.
func (s *QueryService) Summary(ctx context.Context, window accounting.Window) (*accounting.EnergySummary, error) {
	gen, cons, err := s.windowTotals(ctx, window)
	if err != nil {
		return nil, err
	}
	summary := accounting.Summarize(gen, cons, s.loss)
	return &summary, nil
}

// Cost compares grid-only cost against cost net of generation. A
// non-positive rate falls back to the configured tariff.
func (s *QueryService) Cost(ctx context.Context, window accounting.Window, rate float64) (*accounting.PowerCost, error) {
	if rate <= 0 {
		rate = s.rate
	}
	if rate <= 0 {
		return nil, ErrNoTariffRate
	}
	gen, cons, err := s.windowTotals(ctx, window)
	if err != nil {
		return nil, err
	}
	cost := accounting.CostMetrics(gen, cons, rate)
	return &cost, nil
}

// SlotCosts prices per-slot consumption over the whole window at the
// provider's rates, which is where time-of-day tariffs actually
// differ. Requires a rate provider.
func (s *QueryService) SlotCosts(ctx context.Context, window accounting.Window) ([]accounting.SlotCost, error) {
	if s.rates == nil {
		return nil, ErrNoRateProvider
	}
	res, err := s.SlotAggregate(ctx, window)
	if err != nil {
		return nil, err
	}
	totals := res.RangeTotals()
	if len(totals) == 0 {
		// Single-day windows carry the whole window in the daily pools.
		totals = res.Daily()
	}
	costs := make([]accounting.SlotCost, 0, len(totals))
	for _, pool := range totals {
		rate, err := s.rates.Rate(ctx, pool.Slot)
		if err != nil {
			return nil, fmt.Errorf("rate for slot %q: %w", pool.Slot, err)
		}
		costs = append(costs, accounting.SlotCost{
			Slot:           pool.Slot,
			ConsumptionKWh: pool.Total.Consumption,
			RatePerKWh:     rate,
			Cost:           pool.Total.Consumption * rate,
		})
	}
	return costs, nil
}

// Compare returns the per-interval generation-versus-consumption
// series in timestamp order.
func (s *QueryService) Compare(ctx context.Context, window accounting.Window) ([]accounting.ComparisonPoint, error) {
	records, err := s.reader.Read(ctx, window)
	if err != nil {
		return nil, err
	}
	return accounting.CompareSeries(records), nil
}

func (s *QueryService) windowTotals(ctx context.Context, window accounting.Window) (gen, cons float64, err error) {
	records, err := s.reader.Read(ctx, window)
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range records {
		gen += rec.Generation
		cons += rec.Consumption
	}
	return gen, cons, nil
}

func (s *QueryService) reportWarnings(window accounting.Window, warnings []accounting.Warning) {
	for _, w := range warnings {
		metrics.IncDataQualityWarning(string(w.Code), w.Count)
		s.logger.Printf("aggregate: entity %s %s to %s: %s x%d (%s)",
			window.EntityID,
			window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"),
			w.Code, w.Count, w.Detail)
	}
}

func (s *QueryService) publishObservation(ctx context.Context, window accounting.Window, intervals int, warnings []accounting.Warning) {
	if s.bus == nil {
		return
	}
	event := eventbus.AggregationObserved{
		EntityID:   window.EntityID,
		From:       window.Start,
		To:         window.End,
		Intervals:  intervals,
		ObservedAt: time.Now().UTC(),
	}
	for _, w := range warnings {
		event.Warnings = append(event.Warnings, eventbus.AggregationWarning{
			Code:   string(w.Code),
			Detail: w.Detail,
			Count:  w.Count,
		})
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("aggregate: publish observation for %s: %v", window.EntityID, err)
	}
}
