package application

import (
	"context"
	"errors"
	"testing"
	"time"

	catalog "gridledger/internal/catalog/domain"
)

type stubAvailabilityReader struct {
	types     catalog.TypeAvailability
	err       error
	gotClient string
}

func (s *stubAvailabilityReader) RangeAvailability(ctx context.Context, plantID, client string, from, to time.Time) (catalog.TypeAvailability, error) {
	s.gotClient = client
	if s.err != nil {
		return catalog.TypeAvailability{}, s.err
	}
	return s.types, nil
}

type stubRangeReader struct {
	min, max time.Time
	err      error
}

func (s *stubRangeReader) AvailableRange(ctx context.Context, plantID string) (time.Time, time.Time, error) {
	if s.err != nil {
		return time.Time{}, time.Time{}, s.err
	}
	return s.min, s.max, nil
}

func newTestChecker(t *testing.T, repo *stubPlantRepo, types *stubAvailabilityReader, ranges *stubRangeReader, clock Clock, opts ...CheckerOption) *Checker {
	t.Helper()
	directory := newTestDirectory(t, repo, clock)
	checker, err := NewChecker(directory, types, ranges, clock, testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	return checker
}

func TestCheckRangeValidation(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	checker := newTestChecker(t, &stubPlantRepo{plants: testPlants()}, &stubAvailabilityReader{}, &stubRangeReader{}, clock)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		name    string
		plantID string
		from    time.Time
		to      time.Time
		wantErr error
	}{
		{"empty plant", "", day(2024, 6, 1), day(2024, 6, 2), catalog.ErrEmptyPlantID},
		{"inverted range", "PLANT-01", day(2024, 6, 10), day(2024, 6, 1), catalog.ErrInvalidRange},
		{"future start", "PLANT-01", day(2024, 6, 16), day(2024, 6, 20), catalog.ErrFutureRange},
		{"future end", "PLANT-01", day(2024, 6, 10), day(2024, 6, 16), catalog.ErrFutureRange},
		{"too wide", "PLANT-01", day(2023, 1, 1), day(2024, 6, 1), catalog.ErrRangeTooWide},
		{"unknown plant", "PLANT-99", day(2024, 6, 1), day(2024, 6, 2), catalog.ErrPlantNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := checker.CheckRange(context.Background(), tc.plantID, tc.from, tc.to)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("CheckRange error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCheckRangeAllowsToday(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 6, 15, 0, 30, 0, 0, time.UTC)}
	types := &stubAvailabilityReader{types: catalog.TypeAvailability{Generation: true}}
	checker := newTestChecker(t, &stubPlantRepo{plants: testPlants()}, types, &stubRangeReader{}, clock)

	from := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC)
	if _, err := checker.CheckRange(context.Background(), "PLANT-01", from, to); err != nil {
		t.Fatalf("CheckRange for today: %v", err)
	}
}

func TestCheckRangeReportsTypes(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	types := &stubAvailabilityReader{types: catalog.TypeAvailability{Generation: true, Consumption: true}}
	ranges := &stubRangeReader{
		min: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		max: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	}
	checker := newTestChecker(t, &stubPlantRepo{plants: testPlants()}, types, ranges, clock)

	got, err := checker.CheckRange(context.Background(), "PLANT-01",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckRange: %v", err)
	}
	if !got.Generation || !got.Consumption || got.Settlement {
		t.Fatalf("availability = gen %v cons %v settle %v, want true true false",
			got.Generation, got.Consumption, got.Settlement)
	}
	if got.AvailableFrom != "2024-01-01" || got.AvailableTo != "2024-06-14" {
		t.Fatalf("available span = %s to %s, want 2024-01-01 to 2024-06-14", got.AvailableFrom, got.AvailableTo)
	}
	if got.SuggestedFrom != "" {
		t.Fatalf("suggested range set to %s with data present, want empty", got.SuggestedFrom)
	}
	if types.gotClient != "ACME Industries" {
		t.Fatalf("consumption checked for client %q, want %q", types.gotClient, "ACME Industries")
	}
}

func TestCheckRangeSuggestsStoredSpan(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	types := &stubAvailabilityReader{}
	ranges := &stubRangeReader{
		min: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		max: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	checker := newTestChecker(t, &stubPlantRepo{plants: testPlants()}, types, ranges, clock)

	got, err := checker.CheckRange(context.Background(), "PLANT-01",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckRange: %v", err)
	}
	if got.SuggestedFrom != "2024-03-01" || got.SuggestedTo != "2024-03-31" {
		t.Fatalf("suggested range = %s to %s, want 2024-03-01 to 2024-03-31", got.SuggestedFrom, got.SuggestedTo)
	}
}

func TestCheckRangeSurvivesRangeLookupFailure(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	types := &stubAvailabilityReader{types: catalog.TypeAvailability{Settlement: true}}
	ranges := &stubRangeReader{err: errors.New("connection reset")}
	checker := newTestChecker(t, &stubPlantRepo{plants: testPlants()}, types, ranges, clock)

	got, err := checker.CheckRange(context.Background(), "PLANT-01",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckRange: %v", err)
	}
	if !got.Settlement {
		t.Fatalf("settlement availability lost on range lookup failure")
	}
	if got.AvailableFrom != "" || got.AvailableTo != "" {
		t.Fatalf("available span = %s to %s on lookup failure, want empty", got.AvailableFrom, got.AvailableTo)
	}
}
