package agent

import (
	"os"

	"github.com/rs/zerolog"
)

// CycleLogger is a dedicated zerolog identity for per-cycle agent
// telemetry, distinct from the logrus-based ambient service logger and
// the zap-based recovery logger (SPEC_FULL.md §9: three logger
// identities for three subsystems).
type CycleLogger struct {
	logger zerolog.Logger
}

func NewCycleLogger() *CycleLogger {
	return &CycleLogger{logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "agent.cycle").Logger()}
}

func (l *CycleLogger) LogCycle(cycle uint64, priority Priority, action string, admitted, blocked bool, energy, v float64) {
	l.logger.Info().
		Uint64("cycle", cycle).
		Str("priority", string(priority)).
		Str("action", action).
		Bool("admitted", admitted).
		Bool("blocked", blocked).
		Float64("energy", energy).
		Float64("v", v).
		Msg("cycle completed")
}

func (l *CycleLogger) LogDeferred(cycle uint64, partner string) {
	l.logger.Info().Uint64("cycle", cycle).Str("partner", partner).Msg("cycle deferred to coupled partner")
}

func (l *CycleLogger) LogSelfProduction(cycle uint64, sourceID, childID string) {
	l.logger.Warn().Uint64("cycle", cycle).Str("source", sourceID).Str("child", childID).Msg("self-production: specialized a new operation")
}

func (l *CycleLogger) LogAdaptation(cycle uint64, family ViolationFamily) {
	l.logger.Warn().Uint64("cycle", cycle).Str("family", string(family)).Msg("ultrastability adapted parameters")
}
