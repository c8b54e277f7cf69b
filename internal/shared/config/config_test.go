package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-worker")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MetricsPort != "9093" || cfg.HTTPPort != "" {
		t.Errorf("ports = %q/%q", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.TopicBetSettled != "bet_settled" || cfg.AlertChannel != "price_alerts_broadcast" {
		t.Errorf("topics = %q %q", cfg.TopicBetSettled, cfg.AlertChannel)
	}
	if cfg.KafkaBrokers != " a:9092, ,b:9092" {
		t.Errorf("KafkaBrokers = %q", cfg.KafkaBrokers)
	}
	if cfg.OddsRetention != 30*24*time.Hour || cfg.SettleDaysFrom != 3 {
		t.Errorf("retention/days = %v/%d", cfg.OddsRetention, cfg.SettleDaysFrom)
	}
	if strings.Join(cfg.BlockedMarkets, ",") != "h2h_lay" {
		t.Errorf("BlockedMarkets = %v", cfg.BlockedMarkets)
	}
	g, _ := cfg.Grant()
	if g.StringFixed(2) != "10000.00" {
		t.Errorf("Grant() = %s", g)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"parallelism", "INGEST_PARALLELISM", "0", "INGEST_PARALLELISM"},
		{"days from", "SETTLE_DAYS_FROM", "0", "SETTLE_DAYS_FROM"},
		{"grant", "WALLET_STARTING_GRANT", "abc", "WALLET_STARTING_GRANT"},
		{"negative grant", "WALLET_STARTING_GRANT", "-1", "WALLET_STARTING_GRANT"},
		{"bad duration", "RETENTION_ODDS", "forever", "RETENTION_ODDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
