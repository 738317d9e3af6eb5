package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "3000" {
		t.Fatalf("expected default port 3000, got %q", cfg.ServerPort)
	}
	if cfg.PollingInterval() != time.Minute {
		t.Fatalf("expected default polling interval of 1m, got %v", cfg.PollingInterval())
	}
	if cfg.PollingMaxAttempts != 30 {
		t.Fatalf("expected default attempt budget of 30, got %d", cfg.PollingMaxAttempts)
	}
	if cfg.KeyTTL() != time.Hour {
		t.Fatalf("expected default key TTL of 1h, got %v", cfg.KeyTTL())
	}
	if cfg.RequestTTL() != 20*time.Second {
		t.Fatalf("expected default request dedup TTL of 20s, got %v", cfg.RequestTTL())
	}
	if cfg.TronFeeLimit != 150000000 {
		t.Fatalf("expected default fee limit of 150000000, got %d", cfg.TronFeeLimit)
	}
	if !cfg.ReFeeProceedOnFailure {
		t.Fatal("expected provisioner failures to soft-fail by default")
	}
	if cfg.SecurityEnabled {
		t.Fatal("expected request signing to be off by default")
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "8090")
	t.Setenv("POLLING_INTERVAL", "5000")
	t.Setenv("SECURITY_ENABLED", "true")
	t.Setenv("TRON_API_BASE_URL", "https://api.trongrid.io/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8090" {
		t.Fatalf("expected port 8090, got %q", cfg.ServerPort)
	}
	if cfg.PollingInterval() != 5*time.Second {
		t.Fatalf("expected polling interval of 5s, got %v", cfg.PollingInterval())
	}
	if !cfg.SecurityEnabled {
		t.Fatal("expected request signing to be enabled")
	}
	if cfg.TronAPIBaseURL != "https://api.trongrid.io" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", cfg.TronAPIBaseURL)
	}
}

func TestLoadConfig_RepairsInvalidNumbers(t *testing.T) {
	t.Setenv("POLLING_INTERVAL", "0")
	t.Setenv("POLLING_MAX_ATTEMPTS", "-1")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollingInterval() != time.Minute {
		t.Fatalf("expected zero interval to fall back to 1m, got %v", cfg.PollingInterval())
	}
	if cfg.PollingMaxAttempts != 30 {
		t.Fatalf("expected negative attempts to fall back to 30, got %d", cfg.PollingMaxAttempts)
	}
}
