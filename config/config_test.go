package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rely.toml")
	contents := `
window = 32
timeout = "2s"
listen = ":9000"
single_connection = true

[metrics]
enabled = true
listen = ":9100"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window != 32 {
		t.Errorf("Window = %d, want 32", cfg.Window)
	}
	if time.Duration(cfg.Timeout) != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", time.Duration(cfg.Timeout))
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q, want :9000", cfg.Listen)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9100" {
		t.Errorf("Metrics = %+v, want enabled at :9100", cfg.Metrics)
	}
	if !cfg.SingleConnection {
		t.Error("SingleConnection = false, want true")
	}
	// Fields absent from the file keep Default()'s values.
	if time.Duration(cfg.TickInterval) != 100*time.Millisecond {
		t.Errorf("TickInterval = %v, want default 100ms", time.Duration(cfg.TickInterval))
	}
}

func TestApplyOptionsOverrideFile(t *testing.T) {
	cfg := Apply(Default(), WithWindow(64), WithTimeout(time.Second), WithListen(":1234"), WithSingleConnection(true))
	if cfg.Window != 64 || time.Duration(cfg.Timeout) != time.Second || cfg.Listen != ":1234" || !cfg.SingleConnection {
		t.Fatalf("Apply did not override: %+v", cfg)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
