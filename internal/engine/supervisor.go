package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Supervisor owns the evaluator loops. Both evaluators are plain
// single-steppable values; the supervisor is the only place real timers
// live, so everything below it can be tested by stepping ticks directly.
type Supervisor struct {
	trigger *TriggerEvaluator
	alerts  *AlertEvaluator

	triggerInterval time.Duration
	alertInterval   time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	logger zerolog.Logger
}

// SupervisorConfig holds supervisor construction parameters.
type SupervisorConfig struct {
	Trigger         *TriggerEvaluator
	Alerts          *AlertEvaluator
	TriggerInterval time.Duration
	AlertInterval   time.Duration
	Logger          zerolog.Logger
}

// NewSupervisor creates a supervisor over the two evaluators.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	triggerInterval := cfg.TriggerInterval
	if triggerInterval <= 0 {
		triggerInterval = 30 * time.Second
	}
	alertInterval := cfg.AlertInterval
	if alertInterval <= 0 {
		alertInterval = 60 * time.Second
	}

	return &Supervisor{
		trigger:         cfg.Trigger,
		alerts:          cfg.Alerts,
		triggerInterval: triggerInterval,
		alertInterval:   alertInterval,
		logger:          cfg.Logger,
	}
}

// Start launches both evaluator loops. Calling Start on a running
// supervisor is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go s.loop(ctx, s.triggerInterval, s.trigger.Tick)
	go s.loop(ctx, s.alertInterval, s.alerts.Tick)

	s.logger.Info().
		Dur("trigger_interval", s.triggerInterval).
		Dur("alert_interval", s.alertInterval).
		Msg("Evaluators started")
}

// Stop shuts both loops down and waits for in-flight ticks to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Evaluators stopped")
}

func (s *Supervisor) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
