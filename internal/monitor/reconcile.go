package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/observability"
)

// SelectSchedule picks the schedule that should be playing at now: among
// those active at now, the one with the latest start time. Ties keep the
// earlier entry of schedules. ok is false when none is active.
func SelectSchedule(schedules []model.Schedule, now time.Time) (model.Schedule, bool) {
	var (
		best  model.Schedule
		found bool
	)
	for _, s := range schedules {
		if !s.ActiveAt(now) {
			continue
		}
		if !found || s.StartTime.After(best.StartTime) {
			best = s
			found = true
		}
	}
	return best, found
}

func (m *Monitor) reconcile(ctx context.Context, display model.Display, now time.Time) error {
	local := now.In(m.cfg.Location)

	schedules, err := m.deps.Schedules.GetActiveSchedules(ctx, display.ID, local)
	if err != nil {
		return fmt.Errorf("%w: load schedules: %w", ErrReconciliation, err)
	}

	schedule, ok := SelectSchedule(schedules, local)
	if !ok {
		return nil
	}

	playing, err := m.deps.Device.GetPlayingContent(ctx, display.TerminalID)
	if err != nil {
		return fmt.Errorf("%w: current content: %w", ErrReconciliation, err)
	}
	if playing.Is(schedule.ContentID) {
		return nil
	}

	if err := m.deps.Device.PublishContent(ctx, display.TerminalID, schedule.ContentID); err != nil {
		observability.RecordPublish(false)
		return fmt.Errorf("%w: publish %s: %w", ErrReconciliation, schedule.ContentID, err)
	}
	observability.RecordPublish(true)

	log.Info().
		Str("display_id", display.ID).
		Str("schedule_id", schedule.ID).
		Str("content_id", schedule.ContentID).
		Msg("published scheduled content")
	return nil
}
