package apihttp

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	accountingapp "gridledger/internal/accounting/application"
	accounting "gridledger/internal/accounting/domain"
	bankingapp "gridledger/internal/banking/application"
	banking "gridledger/internal/banking/domain"
	catalogapp "gridledger/internal/catalog/application"
	catalog "gridledger/internal/catalog/domain"
	"gridledger/internal/observability/metrics"
	reportingapp "gridledger/internal/reporting/application"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// PlantsHandler serves the plant directory.
type PlantsHandler struct {
	directory *catalogapp.Directory
}

// NewPlantsHandler constructs a handler.
func NewPlantsHandler(directory *catalogapp.Directory) (*PlantsHandler, error) {
	if directory == nil {
		return nil, errors.New("plants handler: nil directory")
	}
	return &PlantsHandler{directory: directory}, nil
}

// ServeHTTP handles GET /api/v1/plants.
func (h *PlantsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plants, err := h.directory.Plants(r.Context())
	if err != nil {
		http.Error(w, "list plants error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, plants)
}

// AvailabilityHandler reports what data exists for a plant and range
// so the dashboard can steer users before querying.
type AvailabilityHandler struct {
	checker *catalogapp.Checker
}

// NewAvailabilityHandler constructs a handler.
func NewAvailabilityHandler(checker *catalogapp.Checker) (*AvailabilityHandler, error) {
	if checker == nil {
		return nil, errors.New("availability handler: nil checker")
	}
	return &AvailabilityHandler{checker: checker}, nil
}

// ServeHTTP handles GET /api/v1/availability.
func (h *AvailabilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plantID := r.URL.Query().Get("plant_id")
	from, err := parseDateQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	availability, err := h.checker.CheckRange(r.Context(), plantID, from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, availability)
}

// AccountingHandler serves the interval query endpoints: slot
// aggregation, the headline summary, per-slot costs, and the
// generation-versus-consumption series. Ranges are validated against
// plant data availability before any aggregation runs.
type AccountingHandler struct {
	queries *accountingapp.QueryService
	checker *catalogapp.Checker
}

// NewAccountingHandler constructs a handler. The checker is optional;
// without one, range validation is limited to window well-formedness.
func NewAccountingHandler(queries *accountingapp.QueryService, checker *catalogapp.Checker) (*AccountingHandler, error) {
	if queries == nil {
		return nil, errors.New("accounting handler: nil query service")
	}
	return &AccountingHandler{queries: queries, checker: checker}, nil
}

// ServeHTTP routes the accounting queries under /api/v1.
func (h *AccountingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/tod-aggregate":
		h.handleAggregate(w, r)
	case "/api/v1/summary":
		h.handleSummary(w, r)
	case "/api/v1/tod-costs":
		h.handleSlotCosts(w, r)
	case "/api/v1/compare":
		h.handleCompare(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AccountingHandler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	res, err := h.queries.SlotAggregate(r.Context(), window)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, res)
}

func (h *AccountingHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	summary, err := h.queries.Summary(r.Context(), window)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := struct {
		Summary *accounting.EnergySummary `json:"summary"`
		Cost    *accounting.PowerCost     `json:"cost,omitempty"`
	}{Summary: summary}

	rate, err := parseFloatQuery(r, "rate")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cost, err := h.queries.Cost(r.Context(), window, rate)
	switch {
	case err == nil:
		resp.Cost = cost
	case errors.Is(err, accountingapp.ErrNoTariffRate):
		// Summary stays useful without a configured tariff.
	default:
		respondDomainError(w, err)
		return
	}
	respondJSON(w, resp)
}

func (h *AccountingHandler) handleSlotCosts(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	costs, err := h.queries.SlotCosts(r.Context(), window)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	total := 0.0
	for _, c := range costs {
		total += c.Cost
	}
	respondJSON(w, struct {
		Slots []accounting.SlotCost `json:"slots"`
		Total float64               `json:"total"`
	}{Slots: costs, Total: total})
}

func (h *AccountingHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	points, err := h.queries.Compare(r.Context(), window)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, points)
}

// window parses and validates the shared query parameters. It writes
// the error response itself when validation fails.
func (h *AccountingHandler) window(w http.ResponseWriter, r *http.Request) (accounting.Window, bool) {
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		entityID = r.URL.Query().Get("plant_id")
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return accounting.Window{}, false
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return accounting.Window{}, false
	}
	if h.checker != nil {
		if _, err := h.checker.CheckRange(r.Context(), entityID, from, to); err != nil {
			respondDomainError(w, err)
			return accounting.Window{}, false
		}
	}
	window, err := accounting.NewWindow(entityID, from, to)
	if err != nil {
		respondDomainError(w, err)
		return accounting.Window{}, false
	}
	return window, true
}

// BankingHandler serves the settlement endpoints.
type BankingHandler struct {
	settlements *bankingapp.SettlementService
}

// NewBankingHandler constructs a handler.
func NewBankingHandler(settlements *bankingapp.SettlementService) (*BankingHandler, error) {
	if settlements == nil {
		return nil, errors.New("banking handler: nil settlement service")
	}
	return &BankingHandler{settlements: settlements}, nil
}

// ServeHTTP routes the banking endpoints under /api/v1/banking.
func (h *BankingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/banking/settle" && r.Method == http.MethodPost:
		h.handleSettle(w, r)
	case r.URL.Path == "/api/v1/banking/monthly" && r.Method == http.MethodGet:
		h.handleMonthly(w, r)
	case r.URL.Path == "/api/v1/banking/settle" || r.URL.Path == "/api/v1/banking/monthly":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *BankingHandler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Client  string `json:"client"`
		PlantID string `json:"plant_id"`
		Month   string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := time.Parse(monthLayout, req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	result, err := h.settlements.SettleMonth(r.Context(), req.Client, req.PlantID, month, ClientIP(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, struct {
		Client            string  `json:"client"`
		Month             string  `json:"month"`
		RecordCount       int     `json:"record_count"`
		RoundingShortfall float64 `json:"rounding_shortfall"`
	}{
		Client:            req.Client,
		Month:             month.Format(monthLayout),
		RecordCount:       len(result.Records),
		RoundingShortfall: result.RoundingShortfall,
	})
}

func (h *BankingHandler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	client := r.URL.Query().Get("client")
	month, err := parseMonthQuery(r, "month")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.settlements.Records(r.Context(), client, month)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, records)
}

// ReportsHandler serves the reconciliation report and its exports.
type ReportsHandler struct {
	reports *reportingapp.ReportService
}

// NewReportsHandler constructs a handler.
func NewReportsHandler(reports *reportingapp.ReportService) (*ReportsHandler, error) {
	if reports == nil {
		return nil, errors.New("reports handler: nil report service")
	}
	return &ReportsHandler{reports: reports}, nil
}

// ServeHTTP routes the reporting endpoints.
func (h *ReportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/reports/monthly":
		h.handleMonthly(w, r)
	case "/api/v1/exports/reconciliation.xlsx":
		h.handleExport(w, r, "xlsx")
	case "/api/v1/exports/reconciliation.pdf":
		h.handleExport(w, r, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReportsHandler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	client, from, to, err := reportParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := h.reports.Monthly(r.Context(), client, from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, report)
}

func (h *ReportsHandler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	client, from, to, err := reportParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := h.reports.Export(r.Context(), client, from, to, format)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	filename := "reconciliation-" + client + "-" + from.Format(dayLayout) + "-" + to.Format(dayLayout) + "." + format
	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SettlementSource lists stored ledger rows for export.
type SettlementSource interface {
	ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error)
}

// ExportSettlementsCSVHandler streams stored settlement rows as CSV.
type ExportSettlementsCSVHandler struct {
	records SettlementSource
}

// NewExportSettlementsCSVHandler constructs a handler.
func NewExportSettlementsCSVHandler(records SettlementSource) (*ExportSettlementsCSVHandler, error) {
	if records == nil {
		return nil, errors.New("settlements csv handler: nil record source")
	}
	return &ExportSettlementsCSVHandler{records: records}, nil
}

// ServeHTTP handles GET /api/v1/exports/settlements.csv.
func (h *ExportSettlementsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport("csv", result, time.Since(start))
	}()

	client, from, to, err := reportParams(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.records.ListByClientRange(r.Context(), client, from, to)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "query settlements error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"client",
		"unit",
		"slot",
		"slot_window",
		"date",
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
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.Client,
			row.Unit,
			row.Slot,
			row.SlotWindow,
			row.Date.Format(dayLayout),
			formatFloat(row.SurplusDemandSum),
			formatFloat(row.SurplusGenerationSum),
			formatFloat(row.MatchedSettledSum),
			formatFloat(row.SurplusGenerationAfterIntra),
			formatFloat(row.SurplusDemandAfterIntra),
			formatFloat(row.IntraSettlement),
			formatFloat(row.SurplusGenerationAfterInter),
			formatFloat(row.SurplusDemandAfterInter),
			formatFloat(row.InterSettlement),
			formatFloat(row.SettledTotal()),
		})
	}
	writer.Flush()
}

// ClientIP extracts the client ip from common proxy headers or the
// connection address. It seeds the requested_by column of the
// settlement run log.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func reportParams(r *http.Request) (client string, from, to time.Time, err error) {
	client = r.URL.Query().Get("client")
	if client == "" {
		return "", time.Time{}, time.Time{}, errors.New("client is required")
	}
	from, err = parseDateQuery(r, "from")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	to, err = parseDateQuery(r, "to")
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return client, from, to, nil
}

func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

func parseMonthQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(monthLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM")
	}
	return parsed.UTC(), nil
}

func parseFloatQuery(r *http.Request, key string) (float64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return parsed, nil
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// respondDomainError maps service errors onto HTTP statuses: bad
// input is the caller's 400, missing entities 404, broken invariants
// and everything else the server's 500.
func respondDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, catalog.ErrPlantNotFound):
		http.Error(w, "unknown plant", http.StatusNotFound)
	case errors.Is(err, catalog.ErrEmptyPlantID),
		errors.Is(err, catalog.ErrInvalidRange),
		errors.Is(err, catalog.ErrFutureRange),
		errors.Is(err, catalog.ErrRangeTooWide),
		errors.Is(err, accounting.ErrEmptyEntityID),
		errors.Is(err, accounting.ErrInvalidWindow),
		errors.Is(err, banking.ErrNoPools):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, accountingapp.ErrNoRateProvider):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
