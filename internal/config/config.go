package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"gridledger/internal/tod"
)

// SlotConfig defines one time-of-day tariff slot.
type SlotConfig struct {
	Name      string `yaml:"name"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
}

// TariffConfig defines tariff rates per kWh. SlotRates override the
// default rate for named slots.
type TariffConfig struct {
	DefaultRate float64            `yaml:"default_rate"`
	SlotRates   map[string]float64 `yaml:"slot_rates"`
}

// QualityConfig defines data-quality monitoring thresholds.
type QualityConfig struct {
	MaxUnknownShare float64 `yaml:"max_unknown_share"`
	MinDuplicates   int     `yaml:"min_duplicates"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
	WebhookURL      string  `yaml:"webhook_url"`
}

// Config is the accounting configuration: the slot table, tariff
// rates, loss adjustment, and quality thresholds. Service wiring such
// as addresses and the database DSN stays in the environment.
type Config struct {
	Slots             []SlotConfig  `yaml:"slots"`
	LossPercent       float64       `yaml:"loss_percent"`
	Tariff            TariffConfig  `yaml:"tariff"`
	Quality           QualityConfig `yaml:"quality"`
	PlantCacheMinutes int           `yaml:"plant_cache_minutes"`
	FetchRetries      int           `yaml:"fetch_retries"`
	FetchRetryMS      int           `yaml:"fetch_retry_ms"`
}

// Load seeds defaults from the environment, then applies the YAML file
// named by GRIDLEDGER_CONFIG when set. An invalid slot table or loss
// percentage is an error; a table that merely leaves coverage gaps
// loads and is surfaced by the quality checker instead.
func Load() (Config, error) {
	cfg := Config{
		Slots:       DefaultSlots(),
		LossPercent: getenvFloatDefault("LOSS_PERCENT", 2.8),
		Tariff: TariffConfig{
			DefaultRate: getenvFloatDefault("TARIFF_RATE", 0),
		},
		Quality: QualityConfig{
			MaxUnknownShare: getenvFloatDefault("QUALITY_MAX_UNKNOWN_SHARE", 0.05),
			MinDuplicates:   getenvIntDefault("QUALITY_MIN_DUPLICATES", 10),
			CooldownMinutes: getenvIntDefault("QUALITY_COOLDOWN_MINUTES", 30),
			WebhookURL:      os.Getenv("QUALITY_WEBHOOK_URL"),
		},
		PlantCacheMinutes: getenvIntDefault("PLANT_CACHE_MINUTES", 60),
		FetchRetries:      getenvIntDefault("FETCH_RETRIES", 2),
		FetchRetryMS:      getenvIntDefault("FETCH_RETRY_MS", 500),
	}

	if path := os.Getenv("GRIDLEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if cfg.LossPercent < 0 || cfg.LossPercent >= 100 {
		return cfg, fmt.Errorf("config: loss percent %v out of range", cfg.LossPercent)
	}
	if _, err := cfg.SlotTable(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultSlots is the standard four-window tariff day used when no
// table is configured.
func DefaultSlots() []SlotConfig {
	return []SlotConfig{
		{Name: "Morning Peak", StartHour: 6, EndHour: 10},
		{Name: "Day", StartHour: 10, EndHour: 18},
		{Name: "Evening Peak", StartHour: 18, EndHour: 22},
		{Name: "Off-Peak", StartHour: 22, EndHour: 6},
	}
}

// SlotTable validates the configured slots and builds the table.
func (c Config) SlotTable() (*tod.Table, error) {
	slots := make([]tod.Slot, 0, len(c.Slots))
	for _, s := range c.Slots {
		slots = append(slots, tod.Slot{Name: s.Name, StartHour: s.StartHour, EndHour: s.EndHour})
	}
	return tod.NewTable(slots)
}

// PlantCacheTTL returns the plant cache lifetime.
func (c Config) PlantCacheTTL() time.Duration {
	return time.Duration(c.PlantCacheMinutes) * time.Minute
}

// QualityCooldown returns the per-finding notification cooldown.
func (c Config) QualityCooldown() time.Duration {
	return time.Duration(c.Quality.CooldownMinutes) * time.Minute
}

// FetchRetryDelay returns the backoff between data-fetch retries.
func (c Config) FetchRetryDelay() time.Duration {
	return time.Duration(c.FetchRetryMS) * time.Millisecond
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

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
