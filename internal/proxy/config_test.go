package proxy

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.TTLHot != 15*time.Second {
		t.Errorf("TTLHot = %v, want 15s", cfg.TTLHot)
	}
	if cfg.TTLWarm != 45*time.Second {
		t.Errorf("TTLWarm = %v, want 45s", cfg.TTLWarm)
	}
	if cfg.TTLCold != 5*time.Minute {
		t.Errorf("TTLCold = %v, want 5m", cfg.TTLCold)
	}
	if cfg.Concurrency != 16 {
		t.Errorf("Concurrency = %d, want 16", cfg.Concurrency)
	}
	if cfg.BudgetPerMinute != 300 {
		t.Errorf("BudgetPerMinute = %d, want 300", cfg.BudgetPerMinute)
	}
	if !cfg.L2Enabled {
		t.Error("L2Enabled default should be true")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("TTL_HOT_SECS", "5")
	t.Setenv("BUDGET_PER_MINUTE", "30")
	t.Setenv("L2_ENABLED", "false")
	t.Setenv("UPSTREAM_EXTRA_HEADERS", "X-A:1;X-B:2")

	cfg := LoadConfigFromEnv()
	if cfg.TTLHot != 5*time.Second {
		t.Errorf("TTLHot = %v, want 5s", cfg.TTLHot)
	}
	if cfg.BudgetPerMinute != 30 {
		t.Errorf("BudgetPerMinute = %d, want 30", cfg.BudgetPerMinute)
	}
	if cfg.L2Enabled {
		t.Error("L2Enabled should be false")
	}
	if len(cfg.UpstreamExtraHeaders) != 2 {
		t.Fatalf("ExtraHeaders = %+v", cfg.UpstreamExtraHeaders)
	}
}

func TestConfig_TTLs(t *testing.T) {
	cfg := Config{TTLHot: time.Second, TTLWarm: 2 * time.Second, TTLCold: 3 * time.Second}
	ttls := cfg.TTLs()
	if ttls.Hot != time.Second || ttls.Warm != 2*time.Second || ttls.Cold != 3*time.Second {
		t.Errorf("TTLs() = %+v", ttls)
	}
}
