package agent

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives periodic cycle ticks at decision_interval. It wraps
// robfig/cron so ultrastability's "reschedule the periodic task" step
// (spec.md §4.10.5) can simply stop the current entry and register a new
// one at the adjusted interval, rather than hand-rolling a ticker
// restart (SPEC_FULL.md §3 dependency wiring).
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	running  bool
	skipping bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// Start registers tick as a periodic job at interval and starts the
// scheduler. Overlapping ticks are skipped, not queued (spec.md §5
// "Cancellation / timeouts": "an overlapping cycle is skipped").
func (s *Scheduler) Start(interval time.Duration, tick func()) error {
	guarded := func() {
		if s.skipping {
			return
		}
		s.skipping = true
		defer func() { s.skipping = false }()
		tick()
	}

	id, err := s.cron.AddFunc(intervalSpec(interval), guarded)
	if err != nil {
		return err
	}
	s.entryID = id
	s.interval = interval
	s.cron.Start()
	s.running = true
	return nil
}

// Reschedule stops the current entry and registers a new one at the
// adjusted interval, used by ultrastability (spec.md §4.10.5).
func (s *Scheduler) Reschedule(interval time.Duration, tick func()) error {
	if s.running {
		s.cron.Remove(s.entryID)
	}
	return s.Start(interval, tick)
}

func (s *Scheduler) Stop() {
	if s.running {
		s.cron.Stop()
		s.running = false
	}
}

// intervalSpec builds a robfig/cron "@every" spec from a duration; cron's
// seconds-resolution parser is overkill for sub-second intervals but the
// library clamps gracefully, and every deployment in practice runs at
// multi-second intervals (spec.md default decision_interval=5s).
func intervalSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return "@every " + interval.String()
}
