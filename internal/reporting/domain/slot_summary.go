package reporting

import (
	"sort"

	banking "gridledger/internal/banking/domain"
)

// MonthlySlotSummary sums every ledger audit column per (month, slot)
// for the before/after banking table.
type MonthlySlotSummary struct {
	Month      string `json:"month"`
	Slot       string `json:"slot"`
	SlotWindow string `json:"slot_window,omitempty"`

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

// MonthlySlotSummaries groups settlement records by month and slot.
// Rows come back ordered by month then slot name.
func MonthlySlotSummaries(records []banking.SettlementRecord) []MonthlySlotSummary {
	type key struct {
		month string
		slot  string
	}
	byKey := make(map[key]*MonthlySlotSummary)
	for _, rec := range records {
		k := key{month: rec.Date.UTC().Format(monthLabelLayout), slot: rec.Slot}
		row := byKey[k]
		if row == nil {
			row = &MonthlySlotSummary{Month: k.month, Slot: k.slot, SlotWindow: rec.SlotWindow}
			byKey[k] = row
		}
		row.SurplusDemandSum += rec.SurplusDemandSum
		row.SurplusGenerationSum += rec.SurplusGenerationSum
		row.MatchedSettledSum += rec.MatchedSettledSum
		row.SurplusGenerationAfterIntra += rec.SurplusGenerationAfterIntra
		row.SurplusDemandAfterIntra += rec.SurplusDemandAfterIntra
		row.IntraSettlement += rec.IntraSettlement
		row.SurplusGenerationAfterInter += rec.SurplusGenerationAfterInter
		row.SurplusDemandAfterInter += rec.SurplusDemandAfterInter
		row.InterSettlement += rec.InterSettlement
	}

	rows := make([]MonthlySlotSummary, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Slot < rows[j].Slot
	})
	return rows
}
