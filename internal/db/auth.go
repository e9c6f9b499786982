package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

const userColumns = `id, email, hashed_password, full_name, company_name, created_at, updated_at`

// CreateUser inserts a new user and returns it.
func (s *pgStore) CreateUser(ctx context.Context, email, hashedPassword string, fullName, companyName *string) (model.User, error) {
	var u model.User
	query := `
	INSERT INTO users (id, email, hashed_password, full_name, company_name, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, now(), now())
	RETURNING ` + userColumns
	if err := s.db.GetContext(ctx, &u, query, uuid.NewString(), email, hashedPassword, fullName, companyName); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to create user")
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := s.db.GetContext(ctx, &u, query, email); err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, &u, query, id); err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

// UpdateUserProfile changes the name fields and bumps updated_at.
func (s *pgStore) UpdateUserProfile(ctx context.Context, id string, fullName, companyName *string) (model.User, error) {
	var u model.User
	query := `
	UPDATE users
	SET full_name = COALESCE($2, full_name),
	    company_name = COALESCE($3, company_name),
	    updated_at = now()
	WHERE id = $1
	RETURNING ` + userColumns
	if err := s.db.GetContext(ctx, &u, query, id, fullName, companyName); err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("failed to update user profile")
		return model.User{}, notFound(err)
	}
	return u, nil
}
