package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	banking "gridledger/internal/banking/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dayLayout = "2006-01-02"

type config struct {
	dbURL     string
	client    string
	month     string
	outDir    string
	tolerance float64
}

type storedRow struct {
	record banking.SettlementRecord
	plant  string
}

type fieldDiff struct {
	Unit   string
	Slot   string
	Date   time.Time
	Field  string
	Stored float64
	Local  float64
	Diff   float64
}

type runRow struct {
	ID                string
	Status            string
	Error             string
	RecordCount       int
	RoundingShortfall float64
	SnapshotDigest    string
	RequestedBy       string
	DurationMS        int64
	CreatedAt         time.Time
}

type summary struct {
	Client            string    `json:"client"`
	Month             string    `json:"month"`
	Tolerance         float64   `json:"tolerance"`
	StoredRows        int       `json:"stored_rows"`
	RecomputedRows    int       `json:"recomputed_rows"`
	MissingLocal      int       `json:"missing_local"`
	MissingStored     int       `json:"missing_stored"`
	FieldMismatches   int       `json:"field_mismatches"`
	MaxAbsDiff        float64   `json:"max_abs_diff"`
	StoredVerifyError string    `json:"stored_verify_error,omitempty"`
	LocalShortfall    float64   `json:"local_rounding_shortfall"`
	Clean             bool      `json:"clean"`
	GeneratedAt       time.Time `json:"generated_at"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	monthStart, monthEnd, err := parseMonth(cfg.month)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	stored, err := loadStoredRows(ctx, db, cfg.client, monthStart, monthEnd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load stored rows:", err)
		os.Exit(2)
	}
	if len(stored) == 0 {
		fmt.Fprintf(os.Stderr, "no stored settlement rows for client %s month %s\n", cfg.client, cfg.month)
		os.Exit(1)
	}

	// Recompute the pass from the stored pool columns. The same inputs
	// through the same ledger must land on the same stage columns.
	pools := make([]banking.PoolInput, 0, len(stored))
	for _, row := range stored {
		pools = append(pools, banking.PoolInput{
			Client:               row.record.Client,
			Unit:                 row.record.Unit,
			Slot:                 row.record.Slot,
			SlotWindow:           row.record.SlotWindow,
			Date:                 row.record.Date,
			SurplusGenerationSum: row.record.SurplusGenerationSum,
			SurplusDemandSum:     row.record.SurplusDemandSum,
		})
	}
	result, err := banking.NewLedger().Settle(pools)
	if err != nil {
		fmt.Fprintln(os.Stderr, "recompute settlement:", err)
		os.Exit(2)
	}

	sum := summary{
		Client:         cfg.client,
		Month:          monthStart.Format("2006-01"),
		Tolerance:      cfg.tolerance,
		StoredRows:     len(stored),
		RecomputedRows: len(result.Records),
		LocalShortfall: result.RoundingShortfall,
		GeneratedAt:    time.Now().UTC(),
	}
	if err := banking.Verify(storedRecords(stored), cfg.tolerance); err != nil {
		sum.StoredVerifyError = err.Error()
	}

	diffs := diffRows(stored, result.Records, cfg.tolerance, &sum)

	if err := writeDiffReport(cfg.outDir, diffs); err != nil {
		fmt.Fprintln(os.Stderr, "write diff report:", err)
		os.Exit(2)
	}
	if err := writeStoredRows(cfg.outDir, stored); err != nil {
		fmt.Fprintln(os.Stderr, "write stored rows:", err)
		os.Exit(2)
	}

	runs, err := loadRuns(ctx, db, cfg.client, monthStart)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load settlement runs:", err)
		os.Exit(2)
	}
	if err := writeRuns(cfg.outDir, runs); err != nil {
		fmt.Fprintln(os.Stderr, "write settlement runs:", err)
		os.Exit(2)
	}

	sum.Clean = sum.FieldMismatches == 0 && sum.MissingLocal == 0 &&
		sum.MissingStored == 0 && sum.StoredVerifyError == ""
	if err := writeSummary(cfg.outDir, sum); err != nil {
		fmt.Fprintln(os.Stderr, "write summary:", err)
		os.Exit(2)
	}

	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
	if !sum.Clean {
		fmt.Printf("MISMATCH: %d field diffs, %d rows missing locally, %d rows missing in store\n",
			sum.FieldMismatches, sum.MissingLocal, sum.MissingStored)
		os.Exit(1)
	}
	fmt.Println("Stored settlement matches the recomputed pass.")
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.client, "client", "", "client name")
	flag.StringVar(&cfg.month, "month", "", "month in YYYY-MM")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Float64Var(&cfg.tolerance, "tolerance", getenvFloatDefault("TOLERANCE", 1e-6), "max accepted per-field difference")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.client == "" {
		return cfg, errors.New("missing --client")
	}
	if cfg.month == "" {
		return cfg, errors.New("missing --month (YYYY-MM)")
	}
	if cfg.tolerance <= 0 {
		return cfg, errors.New("tolerance must be > 0")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseMonth(value string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("month must be YYYY-MM")
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start, end, nil
}

func loadStoredRows(ctx context.Context, db *sql.DB, client string, from, to time.Time) ([]storedRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	client_name,
	plant_id,
	cons_unit,
	slot_name,
	slot_window,
	settlement_date,
	surplus_demand_sum,
	surplus_generation_sum,
	matched_settled_sum,
	surplus_generation_after_intra,
	surplus_demand_after_intra,
	intra_settlement,
	surplus_generation_after_inter,
	surplus_demand_after_inter,
	inter_settlement
FROM banking_settlements
WHERE client_name = $1
	AND settlement_date >= $2
	AND settlement_date < $3
ORDER BY settlement_date ASC, cons_unit ASC, slot_name ASC`, client, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []storedRow
	for rows.Next() {
		var row storedRow
		var window sql.NullString
		if err := rows.Scan(
			&row.record.Client,
			&row.plant,
			&row.record.Unit,
			&row.record.Slot,
			&window,
			&row.record.Date,
			&row.record.SurplusDemandSum,
			&row.record.SurplusGenerationSum,
			&row.record.MatchedSettledSum,
			&row.record.SurplusGenerationAfterIntra,
			&row.record.SurplusDemandAfterIntra,
			&row.record.IntraSettlement,
			&row.record.SurplusGenerationAfterInter,
			&row.record.SurplusDemandAfterInter,
			&row.record.InterSettlement,
		); err != nil {
			return nil, err
		}
		row.record.SlotWindow = window.String
		row.record.Date = row.record.Date.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

func storedRecords(rows []storedRow) []banking.SettlementRecord {
	records := make([]banking.SettlementRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	return records
}

// diffRows pairs stored and recomputed rows by (unit, slot, date) and
// compares every stage column against the tolerance.
func diffRows(stored []storedRow, local []banking.SettlementRecord, tolerance float64, sum *summary) []fieldDiff {
	localMap := make(map[string]banking.SettlementRecord, len(local))
	for _, rec := range local {
		localMap[rec.Key()] = rec
	}

	var diffs []fieldDiff
	seen := make(map[string]struct{}, len(stored))
	for _, row := range stored {
		key := row.record.Key()
		seen[key] = struct{}{}
		rec, ok := localMap[key]
		if !ok {
			sum.MissingLocal++
			continue
		}
		fields := []struct {
			name   string
			stored float64
			local  float64
		}{
			{"matched_settled_sum", row.record.MatchedSettledSum, rec.MatchedSettledSum},
			{"surplus_generation_after_intra", row.record.SurplusGenerationAfterIntra, rec.SurplusGenerationAfterIntra},
			{"surplus_demand_after_intra", row.record.SurplusDemandAfterIntra, rec.SurplusDemandAfterIntra},
			{"intra_settlement", row.record.IntraSettlement, rec.IntraSettlement},
			{"surplus_generation_after_inter", row.record.SurplusGenerationAfterInter, rec.SurplusGenerationAfterInter},
			{"surplus_demand_after_inter", row.record.SurplusDemandAfterInter, rec.SurplusDemandAfterInter},
			{"inter_settlement", row.record.InterSettlement, rec.InterSettlement},
		}
		for _, field := range fields {
			diff := field.stored - field.local
			if abs := math.Abs(diff); abs > sum.MaxAbsDiff {
				sum.MaxAbsDiff = abs
			}
			if math.Abs(diff) <= tolerance {
				continue
			}
			sum.FieldMismatches++
			diffs = append(diffs, fieldDiff{
				Unit:   row.record.Unit,
				Slot:   row.record.Slot,
				Date:   row.record.Date,
				Field:  field.name,
				Stored: field.stored,
				Local:  field.local,
				Diff:   diff,
			})
		}
	}
	for key := range localMap {
		if _, ok := seen[key]; !ok {
			sum.MissingStored++
		}
	}
	return diffs
}

func loadRuns(ctx context.Context, db *sql.DB, client string, month time.Time) ([]runRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	status,
	error,
	record_count,
	rounding_shortfall,
	snapshot_digest,
	requested_by,
	duration_ms,
	created_at
FROM settlement_runs
WHERE client_name = $1 AND month = $2
ORDER BY created_at ASC`, client, month.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []runRow
	for rows.Next() {
		var row runRow
		var runErr, digest, requestedBy sql.NullString
		if err := rows.Scan(
			&row.ID,
			&row.Status,
			&runErr,
			&row.RecordCount,
			&row.RoundingShortfall,
			&digest,
			&requestedBy,
			&row.DurationMS,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.Error = runErr.String
		row.SnapshotDigest = digest.String
		row.RequestedBy = requestedBy.String
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

func writeDiffReport(outDir string, diffs []fieldDiff) error {
	path := filepath.Join(outDir, "diff_report.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"cons_unit",
		"slot_name",
		"settlement_date",
		"field",
		"stored",
		"recomputed",
		"diff",
	}); err != nil {
		return err
	}
	for _, diff := range diffs {
		if err := writer.Write([]string{
			diff.Unit,
			diff.Slot,
			diff.Date.Format(dayLayout),
			diff.Field,
			formatFloat(diff.Stored),
			formatFloat(diff.Local),
			formatFloat(diff.Diff),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeStoredRows(outDir string, rows []storedRow) error {
	path := filepath.Join(outDir, "stored_settlements.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"client_name",
		"plant_id",
		"cons_unit",
		"slot_name",
		"slot_window",
		"settlement_date",
		"surplus_demand_sum",
		"surplus_generation_sum",
		"matched_settled_sum",
		"surplus_generation_after_intra",
		"surplus_demand_after_intra",
		"intra_settlement",
		"surplus_generation_after_inter",
		"surplus_demand_after_inter",
		"inter_settlement",
		"settled_total",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		rec := row.record
		if err := writer.Write([]string{
			rec.Client,
			row.plant,
			rec.Unit,
			rec.Slot,
			rec.SlotWindow,
			rec.Date.Format(dayLayout),
			formatFloat(rec.SurplusDemandSum),
			formatFloat(rec.SurplusGenerationSum),
			formatFloat(rec.MatchedSettledSum),
			formatFloat(rec.SurplusGenerationAfterIntra),
			formatFloat(rec.SurplusDemandAfterIntra),
			formatFloat(rec.IntraSettlement),
			formatFloat(rec.SurplusGenerationAfterInter),
			formatFloat(rec.SurplusDemandAfterInter),
			formatFloat(rec.InterSettlement),
			formatFloat(rec.SettledTotal()),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeRuns(outDir string, rows []runRow) error {
	path := filepath.Join(outDir, "settlement_runs.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"id",
		"status",
		"error",
		"record_count",
		"rounding_shortfall",
		"snapshot_digest",
		"requested_by",
		"duration_ms",
		"created_at",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ID,
			row.Status,
			row.Error,
			strconv.Itoa(row.RecordCount),
			formatFloat(row.RoundingShortfall),
			row.SnapshotDigest,
			row.RequestedBy,
			strconv.FormatInt(row.DurationMS, 10),
			row.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(outDir string, sum summary) error {
	path := filepath.Join(outDir, "diff_summary.json")
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
