package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gridledger/internal/config"
	"gridledger/internal/tod"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type seedConfig struct {
	dsn            string
	clientPrefix   string
	clientCount    int
	unitsPerClient int
	startDate      string
	days           int
	seedCatalog    bool
	seedIntervals  bool
	seedPools      bool
}

type demoClient struct {
	name       string
	plantID    string
	plantName  string
	capacityKW float64
	units      []string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.clientCount <= 0 {
		log.Fatal("client-count must be > 0")
	}
	if cfg.unitsPerClient <= 0 {
		log.Fatal("units-per-client must be > 0")
	}
	if cfg.days <= 0 {
		log.Fatal("days must be > 0")
	}

	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	table, err := defaultTable()
	if err != nil {
		log.Fatalf("slot table: %v", err)
	}

	clients := buildClients(cfg.clientPrefix, cfg.clientCount, cfg.unitsPerClient)

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if cfg.seedCatalog {
		log.Printf("seeding catalog: clients=%d slots=%d", len(clients), len(table.Slots()))
		if err := seedCatalog(ctx, db, clients, table); err != nil {
			log.Fatalf("seed catalog: %v", err)
		}
	}

	if cfg.seedIntervals {
		log.Printf("seeding intervals: clients=%d days=%d", len(clients), cfg.days)
		if err := seedIntervals(ctx, db, clients, start, cfg.days); err != nil {
			log.Fatalf("seed intervals: %v", err)
		}
	}

	if cfg.seedPools {
		log.Printf("seeding banking pools: clients=%d days=%d", len(clients), cfg.days)
		if err := seedPools(ctx, db, clients, table, start, cfg.days); err != nil {
			log.Fatalf("seed pools: %v", err)
		}
	}

	log.Printf("demo seed completed")
}

func parseConfig() seedConfig {
	cfg := seedConfig{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.clientPrefix, "client-prefix", envOrDefault("CLIENT_PREFIX", "client-demo-"), "client name prefix")
	flag.IntVar(&cfg.clientCount, "client-count", envOrInt("CLIENT_COUNT", 2), "number of clients to seed")
	flag.IntVar(&cfg.unitsPerClient, "units-per-client", envOrInt("UNITS_PER_CLIENT", 2), "consumption units per client")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "start date (YYYY-MM-DD)")
	flag.IntVar(&cfg.days, "days", envOrInt("DAYS", 30), "number of days to seed")
	flag.BoolVar(&cfg.seedCatalog, "seed-catalog", envOrBool("SEED_CATALOG", true), "seed plants, tod_slots and tariff_rates")
	flag.BoolVar(&cfg.seedIntervals, "seed-intervals", envOrBool("SEED_INTERVALS", true), "seed generation and consumption intervals")
	flag.BoolVar(&cfg.seedPools, "seed-pools", envOrBool("SEED_POOLS", true), "seed banking settlement pools")
	flag.Parse()
	return cfg
}

func parseStartDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		now := time.Now().UTC()
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first.AddDate(0, -1, 0), nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func defaultTable() (*tod.Table, error) {
	defs := config.DefaultSlots()
	slots := make([]tod.Slot, 0, len(defs))
	for _, s := range defs {
		slots = append(slots, tod.Slot{Name: s.Name, StartHour: s.StartHour, EndHour: s.EndHour})
	}
	return tod.NewTable(slots)
}

func buildClients(prefix string, count, units int) []demoClient {
	clients := make([]demoClient, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%s%02d", prefix, i)
		client := demoClient{
			name:       name,
			plantID:    fmt.Sprintf("plant-demo-%02d", i),
			plantName:  fmt.Sprintf("Demo Plant %02d", i),
			capacityKW: float64(250 + 50*(i-1)),
		}
		for u := 1; u <= units; u++ {
			client.units = append(client.units, fmt.Sprintf("%s-unit-%02d", name, u))
		}
		clients = append(clients, client)
	}
	return clients
}

func seedCatalog(ctx context.Context, db *sql.DB, clients []demoClient, table *tod.Table) error {
	const plantSQL = `
INSERT INTO plants (plant_id, plant_name, client_name, capacity_kw, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (plant_id)
DO UPDATE SET
	plant_name = EXCLUDED.plant_name,
	client_name = EXCLUDED.client_name,
	capacity_kw = EXCLUDED.capacity_kw`

	const slotSQL = `
INSERT INTO tod_slots (slot_name, start_hour, end_hour, rank)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slot_name)
DO UPDATE SET
	start_hour = EXCLUDED.start_hour,
	end_hour = EXCLUDED.end_hour,
	rank = EXCLUDED.rank`

	const rateSQL = `
INSERT INTO tariff_rates (slot_name, rate_per_kwh)
VALUES ($1, $2)
ON CONFLICT (slot_name)
DO UPDATE SET rate_per_kwh = EXCLUDED.rate_per_kwh`

	now := time.Now().UTC()
	for _, client := range clients {
		if _, err := db.ExecContext(ctx, plantSQL,
			client.plantID, client.plantName, client.name, client.capacityKW, now); err != nil {
			return err
		}
	}

	for rank, slot := range table.Slots() {
		if _, err := db.ExecContext(ctx, slotSQL, slot.Name, slot.StartHour, slot.EndHour, rank); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, rateSQL, slot.Name, demoRate(slot.Name)); err != nil {
			return err
		}
	}
	return nil
}

// demoRate assigns plausible time-of-day tariffs: peak windows priced
// above the flat day rate, the overnight window below it.
func demoRate(slotName string) float64 {
	switch {
	case strings.HasPrefix(slotName, "Off-"):
		return 4.5
	case strings.Contains(slotName, "Peak"):
		return 9.5
	default:
		return 6.5
	}
}

func seedIntervals(ctx context.Context, db *sql.DB, clients []demoClient, start time.Time, days int) error {
	const genSQL = `
INSERT INTO generation_intervals (plant_id, interval_start, energy_kwh)
VALUES ($1, $2, $3)
ON CONFLICT (plant_id, interval_start)
DO UPDATE SET energy_kwh = EXCLUDED.energy_kwh`

	const consSQL = `
INSERT INTO consumption_intervals (client_name, interval_start, energy_kwh)
VALUES ($1, $2, $3)
ON CONFLICT (client_name, interval_start)
DO UPDATE SET energy_kwh = EXCLUDED.energy_kwh`

	for idx, client := range clients {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		genStmt, err := tx.PrepareContext(ctx, genSQL)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		consStmt, err := tx.PrepareContext(ctx, consSQL)
		if err != nil {
			_ = genStmt.Close()
			_ = tx.Rollback()
			return err
		}

		for day := 0; day < days; day++ {
			dayStart := start.AddDate(0, 0, day)
			for hour := 0; hour < 24; hour++ {
				ts := dayStart.Add(time.Duration(hour) * time.Hour)
				gen := generationKWh(client.capacityKW, day, hour)
				cons := consumptionKWh(idx, day, hour)
				if _, err := genStmt.ExecContext(ctx, client.plantID, ts, gen); err != nil {
					_ = genStmt.Close()
					_ = consStmt.Close()
					_ = tx.Rollback()
					return err
				}
				if _, err := consStmt.ExecContext(ctx, client.name, ts, cons); err != nil {
					_ = genStmt.Close()
					_ = consStmt.Close()
					_ = tx.Rollback()
					return err
				}
			}
		}

		if err := genStmt.Close(); err != nil {
			_ = consStmt.Close()
			_ = tx.Rollback()
			return err
		}
		if err := consStmt.Close(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("seeded intervals for %s (%d/%d)", client.name, idx+1, len(clients))
	}
	return nil
}

func seedPools(ctx context.Context, db *sql.DB, clients []demoClient, table *tod.Table, start time.Time, days int) error {
	const poolSQL = `
INSERT INTO banking_settlements (
	client_name, plant_id, cons_unit, slot_name, slot_window,
	settlement_date, surplus_demand_sum, surplus_generation_sum
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (client_name, plant_id, cons_unit, slot_name, settlement_date)
DO UPDATE SET
	slot_window = EXCLUDED.slot_window,
	surplus_demand_sum = EXCLUDED.surplus_demand_sum,
	surplus_generation_sum = EXCLUDED.surplus_generation_sum`

	type poolKey struct {
		unit string
		slot string
		day  int
	}
	type poolSum struct {
		generation float64
		demand     float64
	}

	for idx, client := range clients {
		pools := make(map[poolKey]*poolSum)
		unitCount := float64(len(client.units))
		for day := 0; day < days; day++ {
			for hour := 0; hour < 24; hour++ {
				slot := table.Classify(hour)
				if slot == tod.UnknownSlot {
					continue
				}
				gen := generationKWh(client.capacityKW, day, hour)
				cons := consumptionKWh(idx, day, hour)
				for u, unit := range client.units {
					unitGen := gen / unitCount
					unitCons := cons * unitWeight(u, len(client.units))
					key := poolKey{unit: unit, slot: slot, day: day}
					sum, ok := pools[key]
					if !ok {
						sum = &poolSum{}
						pools[key] = sum
					}
					sum.generation += math.Max(0, unitGen-unitCons)
					sum.demand += math.Max(0, unitCons-unitGen)
				}
			}
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, poolSQL)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for key, sum := range pools {
			window := ""
			if slot, ok := table.Lookup(key.slot); ok {
				window = slot.Window()
			}
			date := start.AddDate(0, 0, key.day)
			if _, err := stmt.ExecContext(ctx,
				client.name, client.plantID, key.unit, key.slot, window,
				date, sum.demand, sum.generation); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return err
			}
		}
		if err := stmt.Close(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("seeded %d pools for %s (%d/%d)", len(pools), client.name, idx+1, len(clients))
	}
	return nil
}

// generationKWh models a daylight bell: nothing before 06:00 or after
// 19:00, peaking around midday, scaled by plant capacity with a small
// day-to-day drift.
func generationKWh(capacityKW float64, day, hour int) float64 {
	share := 1 - math.Abs(float64(hour)-12.5)/6.5
	if share <= 0 {
		return 0
	}
	drift := 1 + 0.02*float64(day%5)
	return round3(capacityKW * share * 0.85 * drift)
}

// consumptionKWh models a client load curve with morning and evening
// peaks over a flat base load.
func consumptionKWh(clientIdx, day, hour int) float64 {
	base := 40 + 10*float64(clientIdx%4)
	factor := 0.6
	switch {
	case hour >= 6 && hour < 10:
		factor = 1.5
	case hour >= 10 && hour < 18:
		factor = 1.0
	case hour >= 18 && hour < 22:
		factor = 1.8
	}
	drift := 1 + 0.03*float64(day%7)
	return round3(base * factor * drift)
}

// unitWeight splits the client load across units in fixed unequal
// shares so intra-unit settlement has something to move.
func unitWeight(unitIdx, unitCount int) float64 {
	total := float64(unitCount*(unitCount+1)) / 2
	return float64(unitIdx+1) / total
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
