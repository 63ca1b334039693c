package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	catalog "gridledger/internal/catalog/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type stubPlantRepo struct {
	plants    []catalog.Plant
	listCalls int
	getCalls  int
	err       error
}

func (s *stubPlantRepo) List(ctx context.Context) ([]catalog.Plant, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.plants, nil
}

func (s *stubPlantRepo) Get(ctx context.Context, id string) (*catalog.Plant, error) {
	s.getCalls++
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.plants {
		if s.plants[i].ID == id {
			plant := s.plants[i]
			return &plant, nil
		}
	}
	return nil, catalog.ErrPlantNotFound
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testPlants() []catalog.Plant {
	return []catalog.Plant{
		{ID: "PLANT-01", Name: "Kurnool Solar", Client: "ACME Industries", CapacityKW: 5000},
		{ID: "PLANT-02", Name: "Gadag Wind", Client: "ACME Industries", CapacityKW: 8200},
	}
}

func newTestDirectory(t *testing.T, repo *stubPlantRepo, clock Clock, opts ...DirectoryOption) *Directory {
	t.Helper()
	directory, err := NewDirectory(repo, clock, testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return directory
}

func TestDirectoryCachesPlantList(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock)

	for i := 0; i < 3; i++ {
		plants, err := directory.Plants(context.Background())
		if err != nil {
			t.Fatalf("Plants call %d: %v", i, err)
		}
		if len(plants) != 2 {
			t.Fatalf("Plants call %d returned %d plants, want 2", i, len(plants))
		}
	}
	if repo.listCalls != 1 {
		t.Fatalf("repo listed %d times, want 1", repo.listCalls)
	}
}

func TestDirectoryRefetchesAfterTTL(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock, WithCacheTTL(10*time.Minute))

	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("first Plants: %v", err)
	}
	clock.advance(9 * time.Minute)
	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("Plants inside TTL: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("repo listed %d times inside TTL, want 1", repo.listCalls)
	}

	clock.advance(2 * time.Minute)
	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("Plants after TTL: %v", err)
	}
	if repo.listCalls != 2 {
		t.Fatalf("repo listed %d times after TTL, want 2", repo.listCalls)
	}
}

func TestDirectoryInvalidateForcesRefetch(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock)

	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("first Plants: %v", err)
	}
	directory.Invalidate()
	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("Plants after invalidate: %v", err)
	}
	if repo.listCalls != 2 {
		t.Fatalf("repo listed %d times after invalidate, want 2", repo.listCalls)
	}
}

func TestDirectoryPlantServedFromCachedList(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock)

	if _, err := directory.Plants(context.Background()); err != nil {
		t.Fatalf("Plants: %v", err)
	}
	plant, err := directory.Plant(context.Background(), "PLANT-02")
	if err != nil {
		t.Fatalf("Plant: %v", err)
	}
	if plant.Name != "Gadag Wind" {
		t.Fatalf("Plant name = %q, want %q", plant.Name, "Gadag Wind")
	}
	if repo.getCalls != 0 {
		t.Fatalf("repo Get called %d times with warm cache, want 0", repo.getCalls)
	}
}

func TestDirectoryPlantUnknown(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock)

	if _, err := directory.Plant(context.Background(), "PLANT-99"); !errors.Is(err, catalog.ErrPlantNotFound) {
		t.Fatalf("Plant unknown id error = %v, want ErrPlantNotFound", err)
	}
	if _, err := directory.Plant(context.Background(), ""); !errors.Is(err, catalog.ErrEmptyPlantID) {
		t.Fatalf("Plant empty id error = %v, want ErrEmptyPlantID", err)
	}
}

func TestDirectoryCacheReturnsCopy(t *testing.T) {
	repo := &stubPlantRepo{plants: testPlants()}
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	directory := newTestDirectory(t, repo, clock)

	first, err := directory.Plants(context.Background())
	if err != nil {
		t.Fatalf("Plants: %v", err)
	}
	first[0].Name = "mutated"

	second, err := directory.Plants(context.Background())
	if err != nil {
		t.Fatalf("Plants again: %v", err)
	}
	if second[0].Name != "Kurnool Solar" {
		t.Fatalf("cached plant name = %q after caller mutation, want %q", second[0].Name, "Kurnool Solar")
	}
}
