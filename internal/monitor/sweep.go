package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/observability"
)

// StaleLister returns displays recorded online whose last_seen is older than
// before, skipping the ids in exclude. It does not modify them.
type StaleLister interface {
	ListStaleDisplays(ctx context.Context, before time.Time, exclude []string) ([]string, error)
}

// Sweeper periodically re-checks displays that claim to be online but are
// not watched by any running timer, e.g. after a restart. Their status is
// written by the regular check, never by the sweep itself.
type Sweeper struct {
	store   StaleLister
	monitor *Monitor
	after   time.Duration
	now     func() time.Time

	cron *cron.Cron
}

func NewSweeper(store StaleLister, m *Monitor, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:   store,
		monitor: m,
		after:   staleAfter,
		now:     time.Now,
		cron:    cron.New(),
	}
}

// Start schedules the sweep with a cron spec such as "@every 5m".
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("stale display sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule stale sweep %q: %w", spec, err)
	}
	s.cron.Start()
	log.Info().Str("spec", spec).Dur("stale_after", s.after).Msg("stale display sweep scheduled")
	return nil
}

// Stop halts the schedule; the returned context is done when a running
// sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep runs one status check for every stale display, concurrently, and
// returns how many were checked.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	listCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	ids, err := s.store.ListStaleDisplays(listCtx, s.now().Add(-s.after), s.monitor.MonitoredDisplays())
	if err != nil {
		return 0, fmt.Errorf("list stale displays: %w", err)
	}
	observability.RecordStaleChecked(len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			status := s.monitor.CheckDisplayStatus(ctx, id)
			log.Debug().Str("display_id", id).Str("status", string(status)).Msg("stale display re-checked")
		}(id)
	}
	wg.Wait()

	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("re-checked stale displays")
	}
	return len(ids), nil
}
