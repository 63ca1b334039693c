package reporting

import (
	"math"
	"testing"
	"time"

	banking "gridledger/internal/banking/domain"
)

const epsilon = 1e-6

func closeTo(t *testing.T, got, want float64, label string) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Fatalf("%s got=%v want=%v", label, got, want)
	}
}

func marchRecords(t *testing.T) []banking.SettlementRecord {
	t.Helper()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	result, err := banking.NewLedger().Settle([]banking.PoolInput{
		{Client: "acme", Unit: "unit-1", Slot: "Slot A", Date: day, SurplusGenerationSum: 100},
		{Client: "acme", Unit: "unit-1", Slot: "Slot B", Date: day, SurplusDemandSum: 60},
		{Client: "acme", Unit: "unit-2", Slot: "Slot B", Date: day.AddDate(0, 0, 1), SurplusDemandSum: 25},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	return result.Records
}

func TestMonthlyMetricsFromLedger(t *testing.T) {
	rows, issues := MonthlyMetrics(marchRecords(t))
	if len(issues) != 0 {
		t.Fatalf("issues got=%v want none", issues)
	}
	if len(rows) != 1 {
		t.Fatalf("rows got=%d want=1", len(rows))
	}

	row := rows[0]
	if row.Month != "2024-03" {
		t.Fatalf("month got=%q want=%q", row.Month, "2024-03")
	}
	if row.Client != "acme" {
		t.Fatalf("client got=%q want=%q", row.Client, "acme")
	}
	// Stage 0 matches nothing; intra settles 60, inter settles 25.
	closeTo(t, row.SettledWithoutBanking, 0, "settled without banking")
	closeTo(t, row.SettledWithBanking, 85, "settled with banking")
	closeTo(t, row.GridConsumptionWithoutBanking, 85, "grid without banking")
	closeTo(t, row.GridConsumptionWithBanking, 0, "grid with banking")
	closeTo(t, row.BankingSavings, 85, "banking savings")
	closeTo(t, row.GridReduction, 85, "grid reduction")
	closeTo(t, row.TotalBenefit, 170, "total benefit")
}

func TestMonthlyMetricsSplitsMonths(t *testing.T) {
	march := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	result, err := banking.NewLedger().Settle([]banking.PoolInput{
		{Client: "acme", Unit: "u", Slot: "S", Date: march, SurplusGenerationSum: 40, SurplusDemandSum: 10},
		{Client: "acme", Unit: "u", Slot: "S", Date: april, SurplusDemandSum: 30},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	rows, issues := MonthlyMetrics(result.Records)
	if len(issues) != 0 {
		t.Fatalf("issues got=%v want none", issues)
	}
	if len(rows) != 2 {
		t.Fatalf("rows got=%d want=2", len(rows))
	}
	if rows[0].Month != "2024-03" || rows[1].Month != "2024-04" {
		t.Fatalf("months got=%q,%q", rows[0].Month, rows[1].Month)
	}
	closeTo(t, rows[0].SettledWithoutBanking, 10, "march settled without banking")
	// Inter-settlement crosses the month boundary inside one snapshot:
	// March's leftover 30 of generation meets April's demand of 30.
	closeTo(t, rows[1].SettledWithBanking, 30, "april settled with banking")
	closeTo(t, rows[1].GridConsumptionWithBanking, 0, "april grid with banking")
}

func TestMonthlyMetricsSurfacesNegativeDerived(t *testing.T) {
	// A corrupt stored row claims more demand after banking than
	// before. The metric is reported as computed and flagged.
	records := []banking.SettlementRecord{{
		Client: "acme", Unit: "u", Slot: "S",
		Date:                    time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		SurplusDemandSum:        10,
		SurplusDemandAfterIntra: 10,
		SurplusDemandAfterInter: 25,
	}}
	rows, issues := MonthlyMetrics(records)
	if len(rows) != 1 {
		t.Fatalf("rows got=%d want=1", len(rows))
	}
	closeTo(t, rows[0].GridReduction, -15, "grid reduction")
	if len(issues) != 1 {
		t.Fatalf("issues got=%v want one", issues)
	}
	if issues[0].Metric != "grid_reduction" || issues[0].Month != "2024-05" {
		t.Fatalf("issue got=%+v", issues[0])
	}
	closeTo(t, issues[0].Value, -15, "issue value")
}

func TestMonthlySlotSummaries(t *testing.T) {
	rows := MonthlySlotSummaries(marchRecords(t))
	if len(rows) != 2 {
		t.Fatalf("rows got=%d want=2", len(rows))
	}
	if rows[0].Slot != "Slot A" || rows[1].Slot != "Slot B" {
		t.Fatalf("slots got=%q,%q", rows[0].Slot, rows[1].Slot)
	}

	slotA, slotB := rows[0], rows[1]
	closeTo(t, slotA.SurplusGenerationSum, 100, "slot A surplus generation")
	closeTo(t, slotA.SurplusGenerationAfterIntra, 40, "slot A after intra")
	closeTo(t, slotA.SurplusGenerationAfterInter, 15, "slot A after inter")
	// Slot B aggregates both units' demand: 60 settled intra, 25 inter.
	closeTo(t, slotB.SurplusDemandSum, 85, "slot B surplus demand")
	closeTo(t, slotB.IntraSettlement, 60, "slot B intra")
	closeTo(t, slotB.InterSettlement, 25, "slot B inter")
	closeTo(t, slotB.SurplusDemandAfterInter, 0, "slot B demand after inter")
}
