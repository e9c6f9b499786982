package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

// Store is the persistence surface used by the API and the monitor.
// Lookups that miss return ErrNotFound; user-facing queries are scoped by
// the owning user id.
type Store interface {
	// users
	CreateUser(ctx context.Context, email, hashedPassword string, fullName, companyName *string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpdateUserProfile(ctx context.Context, id string, fullName, companyName *string) (model.User, error)

	// displays
	ListDisplaysByUser(ctx context.Context, userID string) ([]model.Display, error)
	GetDisplay(ctx context.Context, id string) (model.Display, error)
	GetUserDisplay(ctx context.Context, userID, id string) (model.Display, error)
	CreateDisplay(ctx context.Context, d model.Display) (model.Display, error)
	UpdateDisplay(ctx context.Context, userID, id string, in DisplayUpdate) (model.Display, error)
	DeleteDisplay(ctx context.Context, userID, id string) error
	SetDisplayStatus(ctx context.Context, id string, status model.DisplayStatus, lastSeen *time.Time) error
	ListStaleDisplays(ctx context.Context, before time.Time, exclude []string) ([]string, error)

	// media
	ListMediaByUser(ctx context.Context, userID string) ([]model.Media, error)
	GetUserMedia(ctx context.Context, userID, id string) (model.Media, error)
	CreateMedia(ctx context.Context, m model.Media) (model.Media, error)
	DeleteMedia(ctx context.Context, userID, id string) error

	// schedules
	ListSchedules(ctx context.Context, displayID string) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id string) (model.Schedule, error)
	CreateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, in ScheduleUpdate) (model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	GetActiveSchedules(ctx context.Context, displayID string, now time.Time) ([]model.Schedule, error)
}

// DisplayUpdate holds the editable display fields; nil leaves a column unchanged.
type DisplayUpdate struct {
	DisplayName *string
	Location    *string
}

// ScheduleUpdate holds the editable schedule fields; nil leaves a column
// unchanged. ClearEndTime removes the end of the window.
type ScheduleUpdate struct {
	ContentType  *model.ContentType
	ContentID    *string
	StartTime    *time.Time
	EndTime      *time.Time
	ClearEndTime bool
	RepeatDays   []string
	IsActive     *bool
}

type pgStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn, now: time.Now}
}
