package config

import (
	"os"
	"testing"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("/nonexistent/galileosky.yaml")
	if err != nil {
		t.Fatalf("Load() = %v, want nil (a missing file falls back to defaults)", err)
	}
	if cfg.TCPBind != ":5027" {
		t.Errorf("TCPBind = %q, want \":5027\"", cfg.TCPBind)
	}
	if cfg.QueueMaxDepth != 2000 {
		t.Errorf("QueueMaxDepth = %d, want 2000", cfg.QueueMaxDepth)
	}
	if !cfg.FramerValidateChecksum {
		t.Error("FramerValidateChecksum = false, want true by default")
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	os.Setenv("GALILEOSKY_TCP_BIND", ":9999")
	defer os.Unsetenv("GALILEOSKY_TCP_BIND")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.TCPBind != ":9999" {
		t.Errorf("TCPBind = %q, want \":9999\" from GALILEOSKY_TCP_BIND", cfg.TCPBind)
	}
}

func TestPerJobTimeoutAndIdleReadTimeoutConvertUnits(t *testing.T) {
	cfg := &Config{QueuePerJobTimeoutMs: 1500, PipelineIdleReadTimeoutSec: 2}
	if got := cfg.PerJobTimeout(); got.Milliseconds() != 1500 {
		t.Errorf("PerJobTimeout() = %v, want 1500ms", got)
	}
	if got := cfg.IdleReadTimeout(); got.Seconds() != 2 {
		t.Errorf("IdleReadTimeout() = %v, want 2s", got)
	}
}
