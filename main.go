package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	accountingapp "gridledger/internal/accounting/application"
	accounting "gridledger/internal/accounting/domain"
	accountingrepo "gridledger/internal/accounting/infrastructure/postgres"
	"gridledger/internal/accounting/infrastructure/pricing"
	"gridledger/internal/accounting/infrastructure/slots"
	apihttp "gridledger/internal/api/http"
	"gridledger/internal/audit"
	bankingapp "gridledger/internal/banking/application"
	banking "gridledger/internal/banking/domain"
	bankingrepo "gridledger/internal/banking/infrastructure/postgres"
	catalogapp "gridledger/internal/catalog/application"
	catalogrepo "gridledger/internal/catalog/infrastructure/postgres"
	"gridledger/internal/config"
	"gridledger/internal/eventbus"
	"gridledger/internal/observability/metrics"
	"gridledger/internal/quality"
	reportingapp "gridledger/internal/reporting/application"
	"gridledger/internal/tod"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	svc := loadServiceConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", svc.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	var slotProvider slots.Provider
	if svc.SlotSource == "postgres" {
		slotProvider = slots.NewTableProvider(db)
	} else {
		defs := make([]tod.Slot, 0, len(cfg.Slots))
		for _, s := range cfg.Slots {
			defs = append(defs, tod.Slot{Name: s.Name, StartHour: s.StartHour, EndHour: s.EndHour})
		}
		fixed, err := slots.NewFixedTableProvider(defs)
		if err != nil {
			logger.Fatalf("slot table error: %v", err)
		}
		slotProvider = fixed
	}
	table, err := slotProvider.Load(context.Background())
	if err != nil {
		logger.Fatalf("slot table load error: %v", err)
	}

	qualityChecker := quality.NewChecker(
		quality.WithMaxUnknownShare(cfg.Quality.MaxUnknownShare),
		quality.WithMinDuplicates(cfg.Quality.MinDuplicates),
	)
	for _, finding := range qualityChecker.TableFindings(table) {
		logger.Printf("quality: %s: %s", finding.Code, finding.Detail)
	}

	bus := eventbus.NewInMemoryBus()

	aggregator, err := accounting.NewAggregator(table)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}
	intervalRepo := accountingrepo.NewIntervalRepository(db)
	reader, err := accountingapp.NewRetryingReader(intervalRepo, logger,
		accountingapp.WithAttempts(cfg.FetchRetries),
		accountingapp.WithRetryDelay(cfg.FetchRetryDelay()),
	)
	if err != nil {
		logger.Fatalf("retrying reader error: %v", err)
	}

	var rates accountingapp.RateProvider
	switch {
	case svc.TariffSource == "postgres":
		rates = pricing.NewTariffRateProvider(db, pricing.WithDefaultRate(cfg.Tariff.DefaultRate))
	case cfg.Tariff.DefaultRate > 0:
		fixed, err := pricing.NewFixedRateProvider(cfg.Tariff.DefaultRate, pricing.WithSlotRates(cfg.Tariff.SlotRates))
		if err != nil {
			logger.Fatalf("rate provider error: %v", err)
		}
		rates = fixed
	}

	queryOpts := []accountingapp.ServiceOption{
		accountingapp.WithEventBus(bus),
		accountingapp.WithLossPercent(cfg.LossPercent),
		accountingapp.WithTariffRate(cfg.Tariff.DefaultRate),
	}
	if rates != nil {
		queryOpts = append(queryOpts, accountingapp.WithRateProvider(rates))
	}
	queryService, err := accountingapp.NewQueryService(reader, aggregator, logger, queryOpts...)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}

	bankingRepo := bankingrepo.NewBankingRepository(db)
	auditRepo := audit.NewRepository(db)
	settlementService, err := bankingapp.NewSettlementService(bankingRepo, bankingRepo, banking.NewLedger(), auditRepo, bus, logger)
	if err != nil {
		logger.Fatalf("settlement service error: %v", err)
	}

	reportService, err := reportingapp.NewReportService(bankingRepo, logger)
	if err != nil {
		logger.Fatalf("report service error: %v", err)
	}

	plantRepo := catalogrepo.NewPlantRepository(db)
	directory, err := catalogapp.NewDirectory(plantRepo, systemClock{}, logger, catalogapp.WithCacheTTL(cfg.PlantCacheTTL()))
	if err != nil {
		logger.Fatalf("plant directory error: %v", err)
	}
	checker, err := catalogapp.NewChecker(directory, plantRepo, plantRepo, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("availability checker error: %v", err)
	}

	if cfg.Quality.WebhookURL != "" {
		channel, err := quality.NewWebhookChannel(cfg.Quality.WebhookURL)
		if err != nil {
			logger.Fatalf("quality webhook error: %v", err)
		}
		monitor, err := quality.NewMonitor(qualityChecker, channel, logger, quality.WithCooldown(cfg.QualityCooldown()))
		if err != nil {
			logger.Fatalf("quality monitor error: %v", err)
		}
		monitor.Register(bus)
	}

	plantsHandler, err := apihttp.NewPlantsHandler(directory)
	if err != nil {
		logger.Fatalf("plants handler error: %v", err)
	}
	availabilityHandler, err := apihttp.NewAvailabilityHandler(checker)
	if err != nil {
		logger.Fatalf("availability handler error: %v", err)
	}
	accountingHandler, err := apihttp.NewAccountingHandler(queryService, checker)
	if err != nil {
		logger.Fatalf("accounting handler error: %v", err)
	}
	bankingHandler, err := apihttp.NewBankingHandler(settlementService)
	if err != nil {
		logger.Fatalf("banking handler error: %v", err)
	}
	reportsHandler, err := apihttp.NewReportsHandler(reportService)
	if err != nil {
		logger.Fatalf("reports handler error: %v", err)
	}
	settlementsCSVHandler, err := apihttp.NewExportSettlementsCSVHandler(bankingRepo)
	if err != nil {
		logger.Fatalf("settlements csv handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/plants", plantsHandler)
	mux.Handle("/api/v1/availability", availabilityHandler)
	mux.Handle("/api/v1/tod-aggregate", accountingHandler)
	mux.Handle("/api/v1/summary", accountingHandler)
	mux.Handle("/api/v1/tod-costs", accountingHandler)
	mux.Handle("/api/v1/compare", accountingHandler)
	mux.Handle("/api/v1/banking/settle", bankingHandler)
	mux.Handle("/api/v1/banking/monthly", bankingHandler)
	mux.Handle("/api/v1/reports/monthly", reportsHandler)
	mux.Handle("/api/v1/exports/reconciliation.xlsx", reportsHandler)
	mux.Handle("/api/v1/exports/reconciliation.pdf", reportsHandler)
	mux.Handle("/api/v1/exports/settlements.csv", settlementsCSVHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: svc.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", svc.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type serviceConfig struct {
	DatabaseURL  string
	HTTPAddr     string
	SlotSource   string
	TariffSource string
}

func loadServiceConfig() serviceConfig {
	cfg := serviceConfig{
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		SlotSource:   getenvDefault("SLOT_SOURCE", "config"),
		TariffSource: getenvDefault("TARIFF_SOURCE", "config"),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.IncHTTPInFlight()
		defer metrics.DecHTTPInFlight()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
