package banking

import (
	"fmt"
	"math"
	"sort"
)

// defaultEpsilon bounds the rounding drift a stage may clamp away
// before a deduction counts as an invariant violation.
const defaultEpsilon = 1e-6

// Ledger runs the three-stage banking settlement over a snapshot of
// surplus pools. It is a pure function of its input: no state survives
// between calls and re-running the same snapshot yields identical
// records. The stage order is fixed:
//
//	stage 0  direct match inside each (unit, date, slot) pool
//	stage 1  intra-settlement across slots of one unit and date
//	stage 2  inter-settlement across all units of a client
//
// Stages 1 and 2 deduct pro-rata by each row's share of its side's
// leftover total, so no single pool is driven negative.
type Ledger struct {
	epsilon float64
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithEpsilon overrides the rounding tolerance.
func WithEpsilon(epsilon float64) LedgerOption {
	return func(l *Ledger) {
		if epsilon > 0 {
			l.epsilon = epsilon
		}
	}
}

// NewLedger constructs a ledger with the default tolerance.
func NewLedger(opts ...LedgerOption) *Ledger {
	ledger := &Ledger{epsilon: defaultEpsilon}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// LedgerResult is one full settlement pass. RoundingShortfall is the
// total deduction clamped away within tolerance; anything beyond the
// tolerance aborts the pass instead.
type LedgerResult struct {
	Records           []SettlementRecord `json:"records"`
	RoundingShortfall float64            `json:"rounding_shortfall"`
}

// Settle runs all three stages over the snapshot. Output order follows
// input order; grouping order is sorted so reruns are byte-identical.
func (l *Ledger) Settle(pools []PoolInput) (*LedgerResult, error) {
	if l == nil {
		return nil, ErrNoPools
	}
	if len(pools) == 0 {
		return nil, ErrNoPools
	}

	records := make([]SettlementRecord, 0, len(pools))
	for _, pool := range pools {
		if pool.Unit == "" {
			return nil, ErrEmptyUnit
		}
		if pool.Slot == "" {
			return nil, ErrEmptySlot
		}
		if pool.Date.IsZero() {
			return nil, ErrZeroDate
		}
		if pool.SurplusGenerationSum < 0 || pool.SurplusDemandSum < 0 {
			return nil, fmt.Errorf("%w: %s/%s %s", ErrNegativeInput, pool.Unit, pool.Slot, DayKey(pool.Date))
		}
		matched := math.Min(pool.SurplusGenerationSum, pool.SurplusDemandSum)
		records = append(records, SettlementRecord{
			Client:               pool.Client,
			Unit:                 pool.Unit,
			Slot:                 pool.Slot,
			SlotWindow:           pool.SlotWindow,
			Date:                 DayOf(pool.Date),
			SurplusDemandSum:     pool.SurplusDemandSum,
			SurplusGenerationSum: pool.SurplusGenerationSum,
			MatchedSettledSum:    matched,
		})
	}

	result := &LedgerResult{}

	intraShortfall, err := l.runStage(records, intraGroupKey, intraStage)
	if err != nil {
		return nil, err
	}
	interShortfall, err := l.runStage(records, interGroupKey, interStage)
	if err != nil {
		return nil, err
	}
	result.RoundingShortfall = intraShortfall + interShortfall
	result.Records = records
	return result, nil
}

// stageAccess adapts one stage's leftover inputs and audit outputs.
type stageAccess struct {
	leftGen    func(*SettlementRecord) float64
	leftDem    func(*SettlementRecord) float64
	afterGen   func(*SettlementRecord) float64
	afterDem   func(*SettlementRecord) float64
	setOutcome func(rec *SettlementRecord, afterGen, afterDem, settledDem float64)
}

var intraStage = stageAccess{
	leftGen:  func(r *SettlementRecord) float64 { return r.SurplusGenerationSum - r.MatchedSettledSum },
	leftDem:  func(r *SettlementRecord) float64 { return r.SurplusDemandSum - r.MatchedSettledSum },
	afterGen: func(r *SettlementRecord) float64 { return r.SurplusGenerationAfterIntra },
	afterDem: func(r *SettlementRecord) float64 { return r.SurplusDemandAfterIntra },
	setOutcome: func(r *SettlementRecord, afterGen, afterDem, settledDem float64) {
		r.SurplusGenerationAfterIntra = afterGen
		r.SurplusDemandAfterIntra = afterDem
		r.IntraSettlement = settledDem
	},
}

var interStage = stageAccess{
	leftGen:  func(r *SettlementRecord) float64 { return r.SurplusGenerationAfterIntra },
	leftDem:  func(r *SettlementRecord) float64 { return r.SurplusDemandAfterIntra },
	afterGen: func(r *SettlementRecord) float64 { return r.SurplusGenerationAfterInter },
	afterDem: func(r *SettlementRecord) float64 { return r.SurplusDemandAfterInter },
	setOutcome: func(r *SettlementRecord, afterGen, afterDem, settledDem float64) {
		r.SurplusGenerationAfterInter = afterGen
		r.SurplusDemandAfterInter = afterDem
		r.InterSettlement = settledDem
	},
}

// intraGroupKey scopes stage 1 to one billing unit and settlement date.
func intraGroupKey(r *SettlementRecord) string {
	return r.Unit + "|" + DayKey(r.Date)
}

// interGroupKey scopes stage 2 to everything a client owns in the
// snapshot, across units and dates.
func interGroupKey(r *SettlementRecord) string {
	return r.Client
}

func (l *Ledger) runStage(records []SettlementRecord, groupKey func(*SettlementRecord) string, access stageAccess) (float64, error) {
	groups := make(map[string][]int)
	for i := range records {
		key := groupKey(&records[i])
		groups[key] = append(groups[key], i)
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var shortfall float64
	for _, key := range keys {
		groupShortfall, err := l.settleGroup(records, groups[key], access)
		if err != nil {
			return 0, fmt.Errorf("group %s: %w", key, err)
		}
		shortfall += groupShortfall
	}
	return shortfall, nil
}

// settleGroup matches the group's leftover generation against its
// leftover demand and deducts each row's pro-rata share.
func (l *Ledger) settleGroup(records []SettlementRecord, indexes []int, access stageAccess) (float64, error) {
	var totalGen, totalDem float64
	for _, i := range indexes {
		totalGen += access.leftGen(&records[i])
		totalDem += access.leftDem(&records[i])
	}

	stage := math.Min(totalGen, totalDem)
	if stage <= 0 {
		for _, i := range indexes {
			rec := &records[i]
			access.setOutcome(rec, access.leftGen(rec), access.leftDem(rec), 0)
		}
		return 0, nil
	}

	var shortfall float64
	for _, i := range indexes {
		rec := &records[i]
		leftGen := access.leftGen(rec)
		leftDem := access.leftDem(rec)

		afterGen, genShort, err := l.deduct(leftGen, stage*leftGen/totalGen)
		if err != nil {
			return 0, fmt.Errorf("%s generation side: %w", rec.Key(), err)
		}
		afterDem, demShort, err := l.deduct(leftDem, stage*leftDem/totalDem)
		if err != nil {
			return 0, fmt.Errorf("%s demand side: %w", rec.Key(), err)
		}

		access.setOutcome(rec, afterGen, afterDem, leftDem-afterDem)
		shortfall += genShort + demShort
	}
	return shortfall, nil
}

// deduct removes amount from pool. Overdraw within the tolerance is
// clamped and reported as shortfall; beyond it the stage is invalid.
func (l *Ledger) deduct(pool, amount float64) (after, shortfall float64, err error) {
	if amount <= pool {
		return pool - amount, 0, nil
	}
	if amount-pool > l.epsilon {
		return 0, 0, fmt.Errorf("%w: pool=%v deduction=%v", ErrPoolOverdraw, pool, amount)
	}
	return 0, amount - pool, nil
}
