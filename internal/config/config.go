// Package config provides environment-aware configuration loading,
// adapted from the service platform's internal/config package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment: it also seeds the agent's
// derived cycle context (spec.md §4.11) — Testing always forces the agent's
// cycle context to "test", the one channel that cannot be overridden.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func ParseEnvironment(s string) (Environment, bool) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Development:
		return Development, true
	case Testing:
		return Testing, true
	case Production:
		return Production, true
	}
	return "", false
}

// Config holds the runtime's top-level configuration.
type Config struct {
	Env Environment

	// Storage layout (spec.md §6.7).
	BaseDir string

	// Logging.
	LogLevel  string
	LogFormat string

	// Agent defaults (spec.md §4.10, overridable, then adapted by ultrastability).
	DecisionInterval    time.Duration
	AdaptationInterval  int
	CriticalThreshold   float64
	UrgencyThreshold     float64
	RestThreshold       float64
	MinDecisionInterval time.Duration
	MinRestThreshold    float64

	// Self-production (spec.md §4.10.6).
	SelfProductionThreshold int
	SelfProductionCooldown  int
	SelfProductionMaxTotal  int

	// Bounded buffers (spec.md §5 back-pressure).
	ViolationWindow   int
	ParameterHistory  int
	CycleMemoryWindow int
	MaxAdaptationsPerWindow int
	PendingCouplingCap int

	// External interfaces.
	GatewayAddr string
	SocketPath  string

	// Optional collaborators.
	RedisAddr      string
	AuditMirrorDSN string

	Features FeatureFlags
}

// Load loads configuration based on the NOESIS_ENV environment variable,
// mirroring the teacher's MARBLE_ENV-selects-a-dotenv-file shape.
func Load() (*Config, error) {
	envStr := os.Getenv("NOESIS_ENV")
	if envStr == "" {
		envStr = string(Development)
	}
	env, ok := ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid NOESIS_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config: warning: %v\n", err)
		}
	}

	cfg := &Config{
		Env:                     env,
		BaseDir:                 getEnvDefault("NOESIS_BASE_DIR", "."),
		LogLevel:                getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvDefault("LOG_FORMAT", "json"),
		DecisionInterval:        getDurationDefault("NOESIS_DECISION_INTERVAL", 5*time.Second),
		AdaptationInterval:      getIntDefault("NOESIS_ADAPTATION_INTERVAL", 10),
		CriticalThreshold:       getFloatDefault("NOESIS_CRITICAL_THRESHOLD", 0.05),
		UrgencyThreshold:        getFloatDefault("NOESIS_URGENCY_THRESHOLD", 0.15),
		RestThreshold:           getFloatDefault("NOESIS_REST_THRESHOLD", 0.1),
		MinDecisionInterval:     getDurationDefault("NOESIS_MIN_DECISION_INTERVAL", time.Second),
		MinRestThreshold:        getFloatDefault("NOESIS_MIN_REST_THRESHOLD", 0.02),
		SelfProductionThreshold: getIntDefault("NOESIS_SELF_PRODUCTION_THRESHOLD", 20),
		SelfProductionCooldown:  getIntDefault("NOESIS_SELF_PRODUCTION_COOLDOWN", 50),
		SelfProductionMaxTotal:  getIntDefault("NOESIS_SELF_PRODUCTION_MAX_TOTAL", 10),
		ViolationWindow:         getIntDefault("NOESIS_VIOLATION_WINDOW", 50),
		ParameterHistory:        getIntDefault("NOESIS_PARAMETER_HISTORY", 20),
		CycleMemoryWindow:       getIntDefault("NOESIS_CYCLE_MEMORY_WINDOW", 200),
		MaxAdaptationsPerWindow: getIntDefault("NOESIS_MAX_ADAPTATIONS_PER_WINDOW", 5),
		PendingCouplingCap:      getIntDefault("NOESIS_PENDING_COUPLING_CAP", 20),
		GatewayAddr:             getEnvDefault("NOESIS_GATEWAY_ADDR", ":8080"),
		SocketPath:              getEnvDefault("NOESIS_SOCKET_PATH", "/tmp/noesis.sock"),
		RedisAddr:               os.Getenv("NOESIS_REDIS_ADDR"),
		AuditMirrorDSN:          os.Getenv("NOESIS_AUDIT_MIRROR_DSN"),
	}

	if err := DecodeFeatureFlags(&cfg.Features); err != nil {
		return nil, fmt.Errorf("config: decode feature flags: %w", err)
	}

	return cfg, nil
}

// IsTestContext reports whether the process environment tags itself as
// test. This is the one channel spec.md §4.11 says cannot be overridden by
// a manual context override.
func IsTestContext() bool {
	if strings.EqualFold(os.Getenv("NOESIS_ENV"), string(Testing)) {
		return true
	}
	// go test sets -test.v / -test.run via flags, but the most reliable
	// signal without importing "testing" from non-test code is the binary
	// name suffix the toolchain gives test binaries.
	return strings.HasSuffix(os.Args[0], ".test") || strings.Contains(os.Args[0], "/_test/")
}

func getEnvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatDefault(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
