package postgres

import (
	"testing"
	"time"
)

func TestMergeStreamsPairsByTimestamp(t *testing.T) {
	t0 := time.Date(2024, 5, 20, 7, 0, 0, 0, time.UTC)
	t1 := t0.Add(15 * time.Minute)

	records := mergeStreams("PLANT-01",
		[]intervalRow{{ts: t0, kwh: 120}, {ts: t1, kwh: 130}},
		[]intervalRow{{ts: t0, kwh: 80}})

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Generation != 120 || records[0].Consumption != 80 {
		t.Fatalf("first record = %+v, want gen 120 cons 80", records[0])
	}
	if records[1].Generation != 130 || records[1].Consumption != 0 {
		t.Fatalf("second record = %+v, want gen 130 cons 0", records[1])
	}
	if records[0].EntityID != "PLANT-01" {
		t.Fatalf("entity id = %q, want PLANT-01", records[0].EntityID)
	}
}

func TestMergeStreamsKeepsDuplicateRowsVisible(t *testing.T) {
	t0 := time.Date(2024, 5, 20, 7, 0, 0, 0, time.UTC)

	records := mergeStreams("PLANT-01",
		[]intervalRow{{ts: t0, kwh: 120}, {ts: t0, kwh: 125}},
		[]intervalRow{{ts: t0, kwh: 80}, {ts: t0, kwh: 85}})

	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	var gen, cons float64
	for _, rec := range records {
		gen += rec.Generation
		cons += rec.Consumption
	}
	if gen != 245 || cons != 165 {
		t.Fatalf("totals = gen %v cons %v, want 245 and 165", gen, cons)
	}
}

func TestMergeStreamsConsumptionOnly(t *testing.T) {
	t0 := time.Date(2024, 5, 20, 19, 0, 0, 0, time.UTC)

	records := mergeStreams("PLANT-01", nil, []intervalRow{{ts: t0, kwh: 42}})
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Generation != 0 || records[0].Consumption != 42 {
		t.Fatalf("record = %+v, want gen 0 cons 42", records[0])
	}
}
