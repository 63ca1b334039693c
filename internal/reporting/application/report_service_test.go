package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"time"

	banking "gridledger/internal/banking/domain"
)

type stubRecordSource struct {
	records []banking.SettlementRecord
	err     error
}

func (s *stubRecordSource) ListByClientRange(ctx context.Context, client string, from, to time.Time) ([]banking.SettlementRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func reportRecords() []banking.SettlementRecord {
	may := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	return []banking.SettlementRecord{
		{
			Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day", Date: may,
			SurplusDemandSum: 100, MatchedSettledSum: 40,
			IntraSettlement: 25, InterSettlement: 10,
			SurplusDemandAfterInter: 25,
		},
		{
			Client: "ACME Industries", Unit: "UNIT-A", Slot: "Evening Peak", Date: june,
			SurplusDemandSum: 80, MatchedSettledSum: 30,
			IntraSettlement: 20, InterSettlement: 0,
			SurplusDemandAfterInter: 30,
		},
	}
}

func newTestReportService(t *testing.T, source RecordSource) *ReportService {
	t.Helper()
	service, err := NewReportService(source, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewReportService: %v", err)
	}
	return service
}

func TestMonthlyRollsUpByMonth(t *testing.T) {
	service := newTestReportService(t, &stubRecordSource{records: reportRecords()})

	report, err := service.Monthly(context.Background(), "ACME Industries",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(report.Monthly) != 2 {
		t.Fatalf("monthly rows = %d, want 2", len(report.Monthly))
	}
	if report.Monthly[0].Month != "2024-05" || report.Monthly[1].Month != "2024-06" {
		t.Fatalf("months = %s, %s, want 2024-05 then 2024-06", report.Monthly[0].Month, report.Monthly[1].Month)
	}

	mayRow := report.Monthly[0]
	if math.Abs(mayRow.SettledWithBanking-75) > 1e-9 {
		t.Fatalf("may settled with banking = %v, want 75", mayRow.SettledWithBanking)
	}
	if math.Abs(mayRow.BankingSavings-35) > 1e-9 {
		t.Fatalf("may banking savings = %v, want 35", mayRow.BankingSavings)
	}
	if math.Abs(mayRow.GridReduction-75) > 1e-9 {
		t.Fatalf("may grid reduction = %v, want 75", mayRow.GridReduction)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("issues = %+v, want none", report.Issues)
	}
	if len(report.Slots) != 2 {
		t.Fatalf("slot summaries = %d, want 2", len(report.Slots))
	}
}

func TestMonthlySurfacesNegativeMetrics(t *testing.T) {
	// Stored rows where banking appears to have increased grid draw.
	records := []banking.SettlementRecord{{
		Client: "ACME Industries", Unit: "UNIT-A", Slot: "Day",
		Date:             time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		SurplusDemandSum: 50, MatchedSettledSum: 10,
		SurplusDemandAfterInter: 70,
	}}
	service := newTestReportService(t, &stubRecordSource{records: records})

	report, err := service.Monthly(context.Background(), "ACME Industries",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if len(report.Issues) == 0 {
		t.Fatal("no issues surfaced for negative grid reduction")
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Metric == "grid_reduction" && issue.Value < 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues = %+v, want a negative grid_reduction finding", report.Issues)
	}
}

func TestMonthlyValidatesInput(t *testing.T) {
	service := newTestReportService(t, &stubRecordSource{})

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := service.Monthly(context.Background(), "", from, from); err == nil {
		t.Fatal("Monthly accepted empty client")
	}
	if _, err := service.Monthly(context.Background(), "ACME Industries", from, from.AddDate(0, 0, -1)); err == nil {
		t.Fatal("Monthly accepted inverted range")
	}
}

func TestMonthlyPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("relation does not exist")
	service := newTestReportService(t, &stubRecordSource{err: wantErr})

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := service.Monthly(context.Background(), "ACME Industries", from, from); !errors.Is(err, wantErr) {
		t.Fatalf("Monthly error = %v, want source error", err)
	}
}

func TestExportFormats(t *testing.T) {
	service := newTestReportService(t, &stubRecordSource{records: reportRecords()})
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	pdf, err := service.Export(context.Background(), "ACME Industries", from, to, "pdf")
	if err != nil {
		t.Fatalf("Export pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("pdf export does not start with %PDF header")
	}

	xlsx, err := service.Export(context.Background(), "ACME Industries", from, to, "xlsx")
	if err != nil {
		t.Fatalf("Export xlsx: %v", err)
	}
	if len(xlsx) == 0 {
		t.Fatal("xlsx export is empty")
	}

	if _, err := service.Export(context.Background(), "ACME Industries", from, to, "docx"); err == nil {
		t.Fatal("Export accepted unsupported format")
	}
}
