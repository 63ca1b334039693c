package banking

import "time"

// SettlementRecord is one banking-ledger row per (billing unit,
// settlement date, slot), carrying the audit columns of every stage in
// settlement order. IntraSettlement and InterSettlement record the
// demand-side units settled for this row at that stage; the generation
// side of each match is audited through the after-stage pool columns.
// Records are immutable once produced; a new request recomputes them
// from scratch.
type SettlementRecord struct {
	Client     string    `json:"client"`
	Unit       string    `json:"unit"`
	Slot       string    `json:"slot"`
	SlotWindow string    `json:"slot_window,omitempty"`
	Date       time.Time `json:"date"`

	SurplusDemandSum     float64 `json:"surplus_demand_sum"`
	SurplusGenerationSum float64 `json:"surplus_generation_sum"`
	MatchedSettledSum    float64 `json:"matched_settled_sum"`

	SurplusGenerationAfterIntra float64 `json:"surplus_generation_sum_after_intra"`
	SurplusDemandAfterIntra     float64 `json:"surplus_demand_sum_after_intra"`
	IntraSettlement             float64 `json:"intra_settlement"`

	SurplusGenerationAfterInter float64 `json:"surplus_generation_sum_after_inter"`
	SurplusDemandAfterInter     float64 `json:"surplus_demand_sum_after_inter"`
	InterSettlement             float64 `json:"inter_settlement"`
}

// Key identifies the record within one settlement snapshot.
func (r SettlementRecord) Key() string {
	return r.Unit + "|" + r.Slot + "|" + DayKey(r.Date)
}

// SettledTotal is the demand met for this row across all stages.
func (r SettlementRecord) SettledTotal() float64 {
	return r.MatchedSettledSum + r.IntraSettlement + r.InterSettlement
}
