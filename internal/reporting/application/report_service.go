package application

import (
	"context"
	"errors"
	"log"
	"time"

	banking "gridledger/internal/banking/domain"
	"gridledger/internal/observability/metrics"
	reporting "gridledger/internal/reporting/domain"
	"gridledger/internal/reporting/interfaces"
)

// RecordSource serves stored ledger rows for reporting.
type RecordSource interface {
	ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error)
}

// MonthlyReport bundles one reconciliation query: the month rollup,
// the per-slot audit table, and any findings in the stored rows.
type MonthlyReport struct {
	Client  string                           `json:"client"`
	From    string                           `json:"from"`
	To      string                           `json:"to"`
	Monthly []reporting.MonthlyEnergyMetrics `json:"monthly"`
	Slots   []reporting.MonthlySlotSummary   `json:"slots"`
	Issues  []reporting.Issue                `json:"issues,omitempty"`
}

// ReportService answers reconciliation queries over stored ledger rows.
type ReportService struct {
	records RecordSource
	logger  *log.Logger
}

// NewReportService constructs a service.
func NewReportService(records RecordSource, logger *log.Logger) (*ReportService, error) {
	if records == nil {
		return nil, errors.New("report service: nil record source")
	}
	if logger == nil {
		return nil, errors.New("report service: nil logger")
	}
	return &ReportService{records: records, logger: logger}, nil
}

// Monthly builds the reconciliation report for a client range.
// Negative derived metrics in stored rows are reported as issues and
// logged, never corrected in place.
func (s *ReportService) Monthly(ctx context.Context, client string, from, to time.Time) (*MonthlyReport, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportQuery(result)
	}()

	if client == "" {
		result = metrics.ResultError
		return nil, errors.New("report service: client required")
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		result = metrics.ResultError
		return nil, errors.New("report service: invalid range")
	}

	records, err := s.records.ListByClientRange(ctx, client, from, to)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	monthly, issues := reporting.MonthlyMetrics(records)
	for _, issue := range issues {
		metrics.IncDataQualityWarning("negative_metric", 1)
		s.logger.Printf("report: client %s month %s: %s is negative (%.6f)",
			client, issue.Month, issue.Metric, issue.Value)
	}

	return &MonthlyReport{
		Client:  client,
		From:    from.UTC().Format("2006-01-02"),
		To:      to.UTC().Format("2006-01-02"),
		Monthly: monthly,
		Slots:   reporting.MonthlySlotSummaries(records),
		Issues:  issues,
	}, nil
}

// Export renders the reconciliation report in the requested format.
// Supported formats are "xlsx" and "pdf".
func (s *ReportService) Export(ctx context.Context, client string, from, to time.Time, format string) ([]byte, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	report, err := s.Monthly(ctx, client, from, to)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	subject := client + " " + report.From + " to " + report.To
	switch format {
	case "xlsx":
		data, err := interfaces.BuildReconciliationXLSX(subject, report.Monthly, report.Slots)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		return data, nil
	case "pdf":
		data, err := interfaces.BuildReconciliationPDF(subject, report.Monthly, report.Slots)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		return data, nil
	default:
		result = metrics.ResultError
		return nil, errors.New("report service: unsupported format " + format)
	}
}
