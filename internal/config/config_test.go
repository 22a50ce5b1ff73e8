package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "orders")
	t.Setenv("SWEEP_BATCH_SIZE", "")
	t.Setenv("PROCESSING_STALE_AFTER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepBatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.SweepBatchSize)
	}
	if cfg.ProcessingStaleAfter != 10*time.Minute {
		t.Fatalf("expected default stale window 10m, got %s", cfg.ProcessingStaleAfter)
	}
}

func TestLoad_MissingOrdersTable(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing ORDERS_TABLE")
	}
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "orders")
	t.Setenv("PUBLIC_BASE_URL", "not a url")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed PUBLIC_BASE_URL")
	}
}

func TestLoad_BadNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("ORDERS_TABLE", "orders")
	t.Setenv("SWEEP_BATCH_SIZE", "-3")
	t.Setenv("PROCESSING_STALE_AFTER", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepBatchSize != 10 {
		t.Fatalf("expected fallback batch size 10, got %d", cfg.SweepBatchSize)
	}
	if cfg.ProcessingStaleAfter != 10*time.Minute {
		t.Fatalf("expected fallback stale window 10m, got %s", cfg.ProcessingStaleAfter)
	}
}

func TestRequire(t *testing.T) {
	if err := Require(map[string]string{"A": "set"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Require(map[string]string{"CRON_SECRET": "  "}); err == nil {
		t.Fatal("expected error for blank value")
	}
}
