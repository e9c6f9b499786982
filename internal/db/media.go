package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

const mediaColumns = `id, user_id, file_name, file_url, storage_key, file_size, mime_type, width, height, duration, thumbnail_url, created_at`

func (s *pgStore) ListMediaByUser(ctx context.Context, userID string) ([]model.Media, error) {
	media := []model.Media{}
	query := `SELECT ` + mediaColumns + ` FROM media WHERE user_id = $1 ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &media, query, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to list media")
		return nil, fmt.Errorf("list media: %w", err)
	}
	return media, nil
}

func (s *pgStore) GetUserMedia(ctx context.Context, userID, id string) (model.Media, error) {
	var m model.Media
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1 AND user_id = $2`
	if err := s.db.GetContext(ctx, &m, query, id, userID); err != nil {
		return model.Media{}, notFound(err)
	}
	return m, nil
}

func (s *pgStore) CreateMedia(ctx context.Context, in model.Media) (model.Media, error) {
	var m model.Media
	query := `
	INSERT INTO media
	(id, user_id, file_name, file_url, storage_key, file_size, mime_type, width, height, duration, thumbnail_url, created_at)
	VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	RETURNING ` + mediaColumns
	err := s.db.GetContext(ctx, &m, query,
		uuid.NewString(), in.UserID, in.FileName, in.FileURL, in.StorageKey, in.FileSize,
		in.MimeType, in.Width, in.Height, in.Duration, in.ThumbnailURL)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Msg("failed to create media")
		return model.Media{}, fmt.Errorf("create media: %w", err)
	}
	return m, nil
}

func (s *pgStore) DeleteMedia(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		log.Error().Err(err).Str("media_id", id).Msg("failed to delete media")
		return fmt.Errorf("delete media: %w", err)
	}
	return requireRow(res)
}
