package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

const scheduleColumns = `id, display_id, content_type, content_id, start_time, end_time, repeat_days, is_active, created_at, updated_at`

// ListSchedules returns every schedule of a display ordered by start time.
func (s *pgStore) ListSchedules(ctx context.Context, displayID string) ([]model.Schedule, error) {
	schedules := []model.Schedule{}
	query := `SELECT ` + scheduleColumns + ` FROM content_schedules WHERE display_id = $1 ORDER BY start_time ASC`
	if err := s.db.SelectContext(ctx, &schedules, query, displayID); err != nil {
		log.Error().Err(err).Str("display_id", displayID).Msg("failed to list schedules")
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *pgStore) GetSchedule(ctx context.Context, id string) (model.Schedule, error) {
	var sc model.Schedule
	query := `SELECT ` + scheduleColumns + ` FROM content_schedules WHERE id = $1`
	if err := s.db.GetContext(ctx, &sc, query, id); err != nil {
		return model.Schedule{}, notFound(err)
	}
	return sc, nil
}

func (s *pgStore) CreateSchedule(ctx context.Context, in model.Schedule) (model.Schedule, error) {
	var sc model.Schedule
	query := `
	INSERT INTO content_schedules
	(id, display_id, content_type, content_id, start_time, end_time, repeat_days, is_active, created_at, updated_at)
	VALUES
	($1, $2,         $3,           $4,         $5,         $6,       $7,          $8,        now(),      now())
	RETURNING ` + scheduleColumns
	err := s.db.GetContext(ctx, &sc, query,
		uuid.NewString(), in.DisplayID, in.ContentType, in.ContentID,
		in.StartTime, in.EndTime, pq.Array([]string(in.RepeatDays)), in.IsActive)
	if err != nil {
		log.Error().Err(err).Str("display_id", in.DisplayID).Msg("failed to create schedule")
		return model.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return sc, nil
}

func (s *pgStore) UpdateSchedule(ctx context.Context, id string, in ScheduleUpdate) (model.Schedule, error) {
	var repeatDays any
	if in.RepeatDays != nil {
		repeatDays = pq.Array(in.RepeatDays)
	}
	var sc model.Schedule
	query := `
	UPDATE content_schedules
	SET content_type = COALESCE($2, content_type),
	    content_id = COALESCE($3, content_id),
	    start_time = COALESCE($4, start_time),
	    end_time = CASE WHEN $6::boolean THEN NULL ELSE COALESCE($5, end_time) END,
	    repeat_days = COALESCE($7, repeat_days),
	    is_active = COALESCE($8, is_active),
	    updated_at = now()
	WHERE id = $1
	RETURNING ` + scheduleColumns
	err := s.db.GetContext(ctx, &sc, query,
		id, in.ContentType, in.ContentID, in.StartTime, in.EndTime, in.ClearEndTime, repeatDays, in.IsActive)
	if err != nil {
		return model.Schedule{}, notFound(err)
	}
	return sc, nil
}

func (s *pgStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_schedules WHERE id = $1`, id)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", id).Msg("failed to delete schedule")
		return fmt.Errorf("delete schedule: %w", err)
	}
	return requireRow(res)
}

// GetActiveSchedules returns the enabled schedules of a display whose window
// contains now and whose repeat days include now's weekday, ordered by start
// time. The weekday is taken in now's location.
func (s *pgStore) GetActiveSchedules(ctx context.Context, displayID string, now time.Time) ([]model.Schedule, error) {
	var rows []model.Schedule
	query := `
	SELECT ` + scheduleColumns + `
	FROM content_schedules
	WHERE display_id = $1
	  AND is_active = TRUE
	  AND start_time <= $2
	  AND (end_time IS NULL OR end_time >= $2)
	ORDER BY start_time ASC`
	if err := s.db.SelectContext(ctx, &rows, query, displayID, now); err != nil {
		return nil, fmt.Errorf("active schedules: %w", err)
	}

	active := make([]model.Schedule, 0, len(rows))
	for _, sc := range rows {
		if sc.RunsOn(now) {
			active = append(active, sc)
		}
	}
	return active, nil
}
