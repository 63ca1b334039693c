package banking

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

const testEpsilon = 1e-6

var testDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func closeTo(t *testing.T, got, want float64, label string) {
	t.Helper()
	if math.Abs(got-want) > testEpsilon {
		t.Fatalf("%s got=%v want=%v", label, got, want)
	}
}

func settle(t *testing.T, pools []PoolInput) *LedgerResult {
	t.Helper()
	result, err := NewLedger().Settle(pools)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	return result
}

func recordFor(t *testing.T, result *LedgerResult, unit, slot string) SettlementRecord {
	t.Helper()
	for _, rec := range result.Records {
		if rec.Unit == unit && rec.Slot == slot {
			return rec
		}
	}
	t.Fatalf("no record for %s/%s", unit, slot)
	return SettlementRecord{}
}

func TestSettleDirectMatch(t *testing.T) {
	result := settle(t, []PoolInput{{
		Client: "client-a", Unit: "unit-1", Slot: "Normal", Date: testDay,
		SurplusGenerationSum: 80, SurplusDemandSum: 50,
	}})

	rec := result.Records[0]
	closeTo(t, rec.MatchedSettledSum, 50, "matched")
	closeTo(t, rec.SurplusGenerationAfterIntra, 30, "generation after intra")
	closeTo(t, rec.SurplusDemandAfterIntra, 0, "demand after intra")
	closeTo(t, rec.IntraSettlement, 0, "intra")
	closeTo(t, rec.SurplusGenerationAfterInter, 30, "generation after inter")
	closeTo(t, rec.InterSettlement, 0, "inter")
}

func TestSettleIntraAcrossSlots(t *testing.T) {
	// Slot A banks 100 of surplus generation, slot B needs 60. Stage 0
	// matches nothing inside either slot; stage 1 offsets 60 across
	// them, leaving A with 40 banked and B fully met.
	result := settle(t, []PoolInput{
		{Client: "client-a", Unit: "unit-1", Slot: "Slot A", Date: testDay, SurplusGenerationSum: 100, SurplusDemandSum: 0},
		{Client: "client-a", Unit: "unit-1", Slot: "Slot B", Date: testDay, SurplusGenerationSum: 0, SurplusDemandSum: 60},
	})

	slotA := recordFor(t, result, "unit-1", "Slot A")
	slotB := recordFor(t, result, "unit-1", "Slot B")

	closeTo(t, slotA.MatchedSettledSum, 0, "slot A matched")
	closeTo(t, slotB.MatchedSettledSum, 0, "slot B matched")
	closeTo(t, slotA.SurplusGenerationAfterIntra, 40, "slot A generation after intra")
	closeTo(t, slotB.SurplusDemandAfterIntra, 0, "slot B demand after intra")
	closeTo(t, slotA.IntraSettlement+slotB.IntraSettlement, 60, "stage intra total")
	closeTo(t, slotB.IntraSettlement, 60, "slot B intra")
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSettleIntraProRata(t *testing.T) {
	// Two generation slots contribute 30 and 70 of leftover; demand of
	// 50 is funded 15/35 pro-rata so neither pool goes negative.
	result := settle(t, []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 30},
		{Client: "c", Unit: "unit-1", Slot: "S2", Date: testDay, SurplusGenerationSum: 70},
		{Client: "c", Unit: "unit-1", Slot: "S3", Date: testDay, SurplusDemandSum: 50},
	})

	s1 := recordFor(t, result, "unit-1", "S1")
	s2 := recordFor(t, result, "unit-1", "S2")
	s3 := recordFor(t, result, "unit-1", "S3")

	closeTo(t, s1.SurplusGenerationAfterIntra, 15, "S1 generation after intra")
	closeTo(t, s2.SurplusGenerationAfterIntra, 35, "S2 generation after intra")
	closeTo(t, s3.SurplusDemandAfterIntra, 0, "S3 demand after intra")
	closeTo(t, s3.IntraSettlement, 50, "S3 intra")
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSettleIntraScopedToUnitAndDate(t *testing.T) {
	otherDay := testDay.AddDate(0, 0, 1)
	result := settle(t, []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 100},
		{Client: "c", Unit: "unit-2", Slot: "S2", Date: testDay, SurplusDemandSum: 40},
		{Client: "c", Unit: "unit-1", Slot: "S2", Date: otherDay, SurplusDemandSum: 25},
	})

	// Different unit and different date are out of intra scope.
	for _, rec := range result.Records {
		closeTo(t, rec.IntraSettlement, 0, rec.Key()+" intra")
	}

	// Inter settles across both: demand 40+25 against generation 100.
	gen := recordFor(t, result, "unit-1", "S1")
	closeTo(t, gen.SurplusGenerationAfterInter, 35, "generation after inter")
	closeTo(t, recordFor(t, result, "unit-2", "S2").SurplusDemandAfterInter, 0, "unit-2 demand after inter")
	closeTo(t, recordFor(t, result, "unit-2", "S2").InterSettlement, 40, "unit-2 inter")
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSettleInterScopedToClient(t *testing.T) {
	result := settle(t, []PoolInput{
		{Client: "client-a", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 90},
		{Client: "client-b", Unit: "unit-2", Slot: "S2", Date: testDay, SurplusDemandSum: 70},
	})

	closeTo(t, recordFor(t, result, "unit-1", "S1").SurplusGenerationAfterInter, 90, "client-a keeps its surplus")
	closeTo(t, recordFor(t, result, "unit-2", "S2").SurplusDemandAfterInter, 70, "client-b keeps its demand")
	closeTo(t, recordFor(t, result, "unit-2", "S2").InterSettlement, 0, "no cross-client settlement")
}

func TestSettleInterProRataAcrossUnits(t *testing.T) {
	result := settle(t, []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusDemandSum: 20},
		{Client: "c", Unit: "unit-2", Slot: "S1", Date: testDay, SurplusDemandSum: 60},
		{Client: "c", Unit: "unit-3", Slot: "S2", Date: testDay, SurplusGenerationSum: 40},
	})

	u1 := recordFor(t, result, "unit-1", "S1")
	u2 := recordFor(t, result, "unit-2", "S1")
	u3 := recordFor(t, result, "unit-3", "S2")

	// Demand 80 against generation 40: each demand pool settles half.
	closeTo(t, u1.InterSettlement, 10, "unit-1 inter")
	closeTo(t, u2.InterSettlement, 30, "unit-2 inter")
	closeTo(t, u1.SurplusDemandAfterInter, 10, "unit-1 demand after inter")
	closeTo(t, u2.SurplusDemandAfterInter, 30, "unit-2 demand after inter")
	closeTo(t, u3.SurplusGenerationAfterInter, 0, "unit-3 generation after inter")
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSettleIdempotent(t *testing.T) {
	pools := []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 123.45, SurplusDemandSum: 10},
		{Client: "c", Unit: "unit-1", Slot: "S2", Date: testDay, SurplusDemandSum: 77.7},
		{Client: "c", Unit: "unit-2", Slot: "S1", Date: testDay.AddDate(0, 0, 3), SurplusDemandSum: 50.5},
	}
	first := settle(t, pools)
	second := settle(t, pools)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("settle not idempotent:\nfirst=%+v\nsecond=%+v", first, second)
	}
}

func TestSettleStageConservation(t *testing.T) {
	pools := []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 310.25},
		{Client: "c", Unit: "unit-1", Slot: "S2", Date: testDay, SurplusDemandSum: 120.5},
		{Client: "c", Unit: "unit-1", Slot: "S3", Date: testDay, SurplusDemandSum: 64.75},
		{Client: "c", Unit: "unit-2", Slot: "S1", Date: testDay, SurplusGenerationSum: 12},
		{Client: "c", Unit: "unit-2", Slot: "S2", Date: testDay, SurplusDemandSum: 333.33},
	}
	result := settle(t, pools)

	for _, rec := range result.Records {
		genIntra := (rec.SurplusGenerationSum - rec.MatchedSettledSum) - rec.SurplusGenerationAfterIntra
		demIntra := (rec.SurplusDemandSum - rec.MatchedSettledSum) - rec.SurplusDemandAfterIntra
		if genIntra < -testEpsilon || demIntra < -testEpsilon {
			t.Fatalf("%s pool grew at intra: gen=%v dem=%v", rec.Key(), genIntra, demIntra)
		}
		closeTo(t, demIntra, rec.IntraSettlement, rec.Key()+" intra demand conservation")
		closeTo(t, rec.SurplusDemandAfterIntra-rec.SurplusDemandAfterInter, rec.InterSettlement, rec.Key()+" inter demand conservation")
	}
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify: %v", err)
	}
	closeTo(t, result.RoundingShortfall, 0, "rounding shortfall")
}

func TestSettleInputValidation(t *testing.T) {
	ledger := NewLedger()
	if _, err := ledger.Settle(nil); !errors.Is(err, ErrNoPools) {
		t.Fatalf("err=%v want ErrNoPools", err)
	}
	if _, err := ledger.Settle([]PoolInput{{Slot: "S", Date: testDay}}); !errors.Is(err, ErrEmptyUnit) {
		t.Fatalf("err=%v want ErrEmptyUnit", err)
	}
	if _, err := ledger.Settle([]PoolInput{{Unit: "u", Date: testDay}}); !errors.Is(err, ErrEmptySlot) {
		t.Fatalf("err=%v want ErrEmptySlot", err)
	}
	if _, err := ledger.Settle([]PoolInput{{Unit: "u", Slot: "S"}}); !errors.Is(err, ErrZeroDate) {
		t.Fatalf("err=%v want ErrZeroDate", err)
	}
	if _, err := ledger.Settle([]PoolInput{{Unit: "u", Slot: "S", Date: testDay, SurplusGenerationSum: -1}}); !errors.Is(err, ErrNegativeInput) {
		t.Fatalf("err=%v want ErrNegativeInput", err)
	}
}

func TestDeductClampsWithinTolerance(t *testing.T) {
	ledger := NewLedger(WithEpsilon(0.5))

	after, shortfall, err := ledger.deduct(1.0, 1.3)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	closeTo(t, after, 0, "after")
	closeTo(t, shortfall, 0.3, "shortfall")

	if _, _, err := ledger.deduct(1.0, 2.0); !errors.Is(err, ErrPoolOverdraw) {
		t.Fatalf("err=%v want ErrPoolOverdraw", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	result := settle(t, []PoolInput{
		{Client: "c", Unit: "unit-1", Slot: "S1", Date: testDay, SurplusGenerationSum: 100},
		{Client: "c", Unit: "unit-1", Slot: "S2", Date: testDay, SurplusDemandSum: 60},
	})
	if err := Verify(result.Records, testEpsilon); err != nil {
		t.Fatalf("verify clean records: %v", err)
	}

	tampered := make([]SettlementRecord, len(result.Records))
	copy(tampered, result.Records)
	tampered[0].SurplusGenerationAfterIntra += 5
	if err := Verify(tampered, testEpsilon); !errors.Is(err, ErrConservation) {
		t.Fatalf("err=%v want ErrConservation", err)
	}

	copy(tampered, result.Records)
	tampered[1].IntraSettlement += 1
	if err := Verify(tampered, testEpsilon); !errors.Is(err, ErrConservation) {
		t.Fatalf("err=%v want ErrConservation", err)
	}
}
