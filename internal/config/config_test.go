package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("OMPAS_SELECT_MODE")
	os.Unsetenv("OMPAS_PLANNER_MAX_DEPTH")
	os.Unsetenv("OMPAS_LOG_LEVEL")
	os.Unsetenv("OMPAS_PLATFORM_MODE")

	cfg := Load()
	if cfg.SelectMode != SelectGreedy {
		t.Fatalf("expected default select mode %q, got %q", SelectGreedy, cfg.SelectMode)
	}
	if cfg.PlannerMaxDepth != 20 {
		t.Fatalf("expected default planner max depth 20, got %d", cfg.PlannerMaxDepth)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.PlatformMode != "simulator" {
		t.Fatalf("expected default platform mode simulator, got %q", cfg.PlatformMode)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	os.Setenv("OMPAS_SELECT_MODE", "planner")
	os.Setenv("OMPAS_PLANNER_MAX_DEPTH", "5")
	defer os.Unsetenv("OMPAS_SELECT_MODE")
	defer os.Unsetenv("OMPAS_PLANNER_MAX_DEPTH")

	cfg := Load()
	if cfg.SelectMode != SelectPlannerRanked {
		t.Fatalf("expected overridden select mode planner, got %q", cfg.SelectMode)
	}
	if cfg.PlannerMaxDepth != 5 {
		t.Fatalf("expected overridden planner max depth 5, got %d", cfg.PlannerMaxDepth)
	}
}

func TestGetenvIntFallsBackOnGarbage(t *testing.T) {
	os.Setenv("OMPAS_PLANNER_MAX_DEPTH", "not-a-number")
	defer os.Unsetenv("OMPAS_PLANNER_MAX_DEPTH")

	cfg := Load()
	if cfg.PlannerMaxDepth != 20 {
		t.Fatalf("expected fallback to default on unparsable int, got %d", cfg.PlannerMaxDepth)
	}
}
