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

const displayColumns = `id, user_id, display_name, vnnox_terminal_id, vnnox_secret, location, status, last_seen, created_at, updated_at`

func (s *pgStore) ListDisplaysByUser(ctx context.Context, userID string) ([]model.Display, error) {
	displays := []model.Display{}
	query := `SELECT ` + displayColumns + ` FROM displays WHERE user_id = $1 ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &displays, query, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to list displays")
		return nil, fmt.Errorf("list displays: %w", err)
	}
	return displays, nil
}

// GetDisplay loads a display without an ownership check. Used by the monitor.
func (s *pgStore) GetDisplay(ctx context.Context, id string) (model.Display, error) {
	var d model.Display
	query := `SELECT ` + displayColumns + ` FROM displays WHERE id = $1`
	if err := s.db.GetContext(ctx, &d, query, id); err != nil {
		return model.Display{}, notFound(err)
	}
	return d, nil
}

func (s *pgStore) GetUserDisplay(ctx context.Context, userID, id string) (model.Display, error) {
	var d model.Display
	query := `SELECT ` + displayColumns + ` FROM displays WHERE id = $1 AND user_id = $2`
	if err := s.db.GetContext(ctx, &d, query, id, userID); err != nil {
		return model.Display{}, notFound(err)
	}
	return d, nil
}

func (s *pgStore) CreateDisplay(ctx context.Context, in model.Display) (model.Display, error) {
	if in.Status == "" {
		in.Status = model.StatusOffline
	}
	var d model.Display
	query := `
	INSERT INTO displays (id, user_id, display_name, vnnox_terminal_id, vnnox_secret, location, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	RETURNING ` + displayColumns
	err := s.db.GetContext(ctx, &d, query,
		uuid.NewString(), in.UserID, in.DisplayName, in.TerminalID, in.TerminalSecret, in.Location, in.Status)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Msg("failed to create display")
		return model.Display{}, fmt.Errorf("create display: %w", err)
	}
	return d, nil
}

func (s *pgStore) UpdateDisplay(ctx context.Context, userID, id string, in DisplayUpdate) (model.Display, error) {
	var d model.Display
	query := `
	UPDATE displays
	SET display_name = COALESCE($3, display_name),
	    location = COALESCE($4, location),
	    updated_at = now()
	WHERE id = $1 AND user_id = $2
	RETURNING ` + displayColumns
	if err := s.db.GetContext(ctx, &d, query, id, userID, in.DisplayName, in.Location); err != nil {
		return model.Display{}, notFound(err)
	}
	return d, nil
}

func (s *pgStore) DeleteDisplay(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		log.Error().Err(err).Str("display_id", id).Msg("failed to delete display")
		return fmt.Errorf("delete display: %w", err)
	}
	return requireRow(res)
}

// SetDisplayStatus records an observation. A nil lastSeen keeps the stored
// value.
func (s *pgStore) SetDisplayStatus(ctx context.Context, id string, status model.DisplayStatus, lastSeen *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE displays
		SET status = $2,
		    last_seen = COALESCE($3, last_seen),
		    updated_at = now()
		WHERE id = $1
		`, id, status, lastSeen)
	if err != nil {
		return fmt.Errorf("set display status: %w", err)
	}
	return requireRow(res)
}

// ListStaleDisplays returns displays that are recorded online but were last
// seen before the cutoff (or never). Ids in exclude are left out.
func (s *pgStore) ListStaleDisplays(ctx context.Context, before time.Time, exclude []string) ([]string, error) {
	if exclude == nil {
		exclude = []string{}
	}
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM displays
		WHERE status = 'online'
		  AND (last_seen IS NULL OR last_seen < $1)
		  AND NOT (id::text = ANY($2::text[]))
		ORDER BY id
		`, before, pq.Array(exclude))
	if err != nil {
		log.Error().Err(err).Msg("failed to list stale displays")
		return nil, fmt.Errorf("list stale displays: %w", err)
	}
	return ids, nil
}
