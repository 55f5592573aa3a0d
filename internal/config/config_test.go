package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.DutyType != "day" {
		t.Errorf("DutyType = %q, want day", cfg.DutyType)
	}
	if !cfg.LocalOnly {
		t.Error("LocalOnly default must be true")
	}
	if cfg.VaultBackend != VaultBackendMemory {
		t.Errorf("VaultBackend = %q, want memory", cfg.VaultBackend)
	}
	if cfg.VaultDefaultTTL != 8*60*60*1000 {
		t.Errorf("VaultDefaultTTL = %d, want one shift in ms", cfg.VaultDefaultTTL)
	}
	if !cfg.IsDev() {
		t.Errorf("Env = %q, expected dev default", cfg.Env)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VAULT_BACKEND", "redis")
	if _, err := Load(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestLoadRejectsUnknownDuty(t *testing.T) {
	t.Setenv("DUTY_TYPE", "weekend")
	if _, err := Load(); err == nil {
		t.Error("unknown duty type accepted")
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("VAULT_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("postgres backend accepted without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost:5432/handover")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.VaultBackend != VaultBackendPostgres {
		t.Errorf("VaultBackend = %q", cfg.VaultBackend)
	}
}
