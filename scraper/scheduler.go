package scraper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler periodically sweeps for due sources and hands them to the
// engine. The per-source frequency gate lives on SourceRef.Due; the sweep
// only decides how often that gate gets checked.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	spec   string
}

// NewScheduler creates a scheduler using a cron spec like "@every 1h".
func NewScheduler(engine *Engine, spec string) *Scheduler {
	return &Scheduler{
		engine: engine,
		cron:   cron.New(),
		spec:   spec,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		runIDs, err := s.engine.TriggerDue(ctx, false)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled sweep failed")
			return
		}
		if len(runIDs) > 0 {
			log.Info().Int("runs", len(runIDs)).Msg("Scheduled sweep started scrape runs")
		}
	})
	if err != nil {
		return fmt.Errorf("registering sweep job with spec %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.Info().Str("spec", s.spec).Msg("Scrape scheduler started")
	return nil
}

// Stop stops the cron loop, waiting for a running sweep to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Scrape scheduler stopped")
}
