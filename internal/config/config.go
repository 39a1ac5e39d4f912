// Package config loads engine configuration from .env plus the process
// environment, in the teacher's cmd/agsh/main.go style: godotenv.Load
// first, then a fallback-aware getter over os.Getenv (generalized from the
// teacher's internal/llm.NewTier "{TIER}_{KEY} falls back to OPENAI_{KEY}"
// pattern to "OMPAS_{KEY} falls back to a hardcoded default").
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// SelectMode names which internal/selectpolicy.Policy the engine wires up.
type SelectMode string

const (
	SelectGreedy         SelectMode = "greedy"
	SelectScoreRanked    SelectMode = "score"
	SelectCostEfficiency SelectMode = "efficiency"
	SelectPlannerRanked  SelectMode = "planner"
)

// Config is the engine's fully resolved runtime configuration (spec.md §8's
// Select mode and planner depth bound, plus the ambient logging/platform
// settings a complete repo needs).
type Config struct {
	SelectMode      SelectMode
	PlannerMaxDepth int
	LogLevel        string
	CacheDir        string
	PlatformMode    string // "simulator" (default) or "external"
}

// Load reads .env (if present) and the process environment, returning a
// Config with defaults filled in for anything unset.
func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		SelectMode:      SelectMode(getenv("OMPAS_SELECT_MODE", string(SelectGreedy))),
		PlannerMaxDepth: getenvInt("OMPAS_PLANNER_MAX_DEPTH", 20),
		LogLevel:        getenv("OMPAS_LOG_LEVEL", "info"),
		CacheDir:        getenv("OMPAS_CACHE_DIR", defaultCacheDir()),
		PlatformMode:    getenv("OMPAS_PLATFORM_MODE", "simulator"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ompas"
	}
	return home + "/.cache/ompas"
}
