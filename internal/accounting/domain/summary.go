package accounting

import (
	"sort"
	"time"
)

// DefaultLossPercent is the transmission-and-wheeling loss applied to
// generation before it reaches the consumption point.
const DefaultLossPercent = 2.8

// EnergySummary is the headline view for one entity and window.
type EnergySummary struct {
	GenerationKWh          float64 `json:"generation_kwh"`
	GenerationMWh          float64 `json:"generation_mwh"`
	GenerationAfterLossKWh float64 `json:"generation_after_loss_kwh"`
	ConsumptionKWh         float64 `json:"consumption_kwh"`
	ConsumptionMWh         float64 `json:"consumption_mwh"`
	LossPercent            float64 `json:"loss_percent"`
	ReplacementPercent     float64 `json:"replacement_percent"`
	LapsedKWh              float64 `json:"lapsed_kwh"`
	LapsedMWh              float64 `json:"lapsed_mwh"`
	SurplusKWh             float64 `json:"surplus_kwh"`
	DeficitKWh             float64 `json:"deficit_kwh"`
}

// Summarize derives the summary metrics from window totals.
// Replacement is the share of consumption met by raw generation,
// capped at 100. Lapsed units are generation left over after losses
// once all consumption is met.
func Summarize(generationKWh, consumptionKWh, lossPercent float64) EnergySummary {
	afterLoss := generationKWh * (1 - lossPercent/100)
	summary := EnergySummary{
		GenerationKWh:          generationKWh,
		GenerationMWh:          ToMWh(generationKWh),
		GenerationAfterLossKWh: afterLoss,
		ConsumptionKWh:         consumptionKWh,
		ConsumptionMWh:         ToMWh(consumptionKWh),
		LossPercent:            lossPercent,
		LapsedKWh:              max0(afterLoss - consumptionKWh),
	}
	summary.LapsedMWh = ToMWh(summary.LapsedKWh)
	if consumptionKWh > 0 {
		met := generationKWh
		if consumptionKWh < met {
			met = consumptionKWh
		}
		summary.ReplacementPercent = met / consumptionKWh * 100
	}
	summary.SurplusKWh = max0(generationKWh - consumptionKWh)
	summary.DeficitKWh = max0(consumptionKWh - generationKWh)
	return summary
}

// PowerCost compares grid-only cost against the actual bill with
// on-site generation offsetting consumption.
type PowerCost struct {
	RatePerKWh     float64 `json:"rate_per_kwh"`
	GridCost       float64 `json:"grid_cost"`
	ActualCost     float64 `json:"actual_cost"`
	Savings        float64 `json:"savings"`
	SavingsPercent float64 `json:"savings_percent"`
}

// CostMetrics derives cost figures from window totals at a flat rate.
func CostMetrics(generationKWh, consumptionKWh, ratePerKWh float64) PowerCost {
	cost := PowerCost{
		RatePerKWh: ratePerKWh,
		GridCost:   consumptionKWh * ratePerKWh,
		ActualCost: max0(consumptionKWh-generationKWh) * ratePerKWh,
	}
	cost.Savings = cost.GridCost - cost.ActualCost
	if cost.GridCost > 0 {
		cost.SavingsPercent = cost.Savings / cost.GridCost * 100
	}
	return cost
}

// SlotCost prices one slot's consumption at its tariff rate.
type SlotCost struct {
	Slot           string  `json:"slot"`
	ConsumptionKWh float64 `json:"consumption_kwh"`
	RatePerKWh     float64 `json:"rate_per_kwh"`
	Cost           float64 `json:"cost"`
}

// ComparisonPoint is one time-aligned generation vs consumption sample
// for the compare view.
type ComparisonPoint struct {
	Timestamp         time.Time `json:"timestamp"`
	Hour              int       `json:"hour"`
	GenerationKWh     float64   `json:"generation_kwh"`
	ConsumptionKWh    float64   `json:"consumption_kwh"`
	Surplus           float64   `json:"surplus"`
	SurplusGeneration float64   `json:"surplus_generation"`
	SurplusDemand     float64   `json:"surplus_demand"`
}

// CompareSeries derives the per-interval comparison series in
// timestamp order.
func CompareSeries(records []IntervalRecord) []ComparisonPoint {
	points := make([]ComparisonPoint, 0, len(records))
	for _, rec := range records {
		ts := rec.Timestamp.UTC()
		point := ComparisonPoint{
			Timestamp:      ts,
			Hour:           ts.Hour(),
			GenerationKWh:  rec.Generation,
			ConsumptionKWh: rec.Consumption,
			Surplus:        rec.Generation - rec.Consumption,
		}
		point.SurplusGeneration = max0(point.Surplus)
		point.SurplusDemand = max0(-point.Surplus)
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// ToMWh converts kilowatt-hours to megawatt-hours.
func ToMWh(kwh float64) float64 {
	return kwh / 1000
}

// ToKWh converts megawatt-hours to kilowatt-hours.
func ToKWh(mwh float64) float64 {
	return mwh * 1000
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
