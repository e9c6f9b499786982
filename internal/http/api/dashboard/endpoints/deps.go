package endpoints

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

// DisplayOwner resolves a display the caller owns.
type DisplayOwner interface {
	GetUserDisplay(ctx context.Context, userID, id string) (model.Display, error)
}

type DisplayStore interface {
	DisplayOwner
	ListDisplaysByUser(ctx context.Context, userID string) ([]model.Display, error)
	CreateDisplay(ctx context.Context, d model.Display) (model.Display, error)
	UpdateDisplay(ctx context.Context, userID, id string, in db.DisplayUpdate) (model.Display, error)
	DeleteDisplay(ctx context.Context, userID, id string) error
}

type ScheduleStore interface {
	DisplayOwner
	ListSchedules(ctx context.Context, displayID string) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id string) (model.Schedule, error)
	CreateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, in db.ScheduleUpdate) (model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

type MediaStore interface {
	DisplayOwner
	ListMediaByUser(ctx context.Context, userID string) ([]model.Media, error)
	GetUserMedia(ctx context.Context, userID, id string) (model.Media, error)
	CreateMedia(ctx context.Context, m model.Media) (model.Media, error)
	DeleteMedia(ctx context.Context, userID, id string) error
}

// DisplayControl is the subset of the VNNOX client used by display endpoints.
type DisplayControl interface {
	GetTerminalInfo(ctx context.Context, terminalID string) (vnnox.Envelope[vnnox.TerminalInfo], error)
	GetStatus(ctx context.Context, terminalID string) (vnnox.Envelope[vnnox.TerminalStatus], error)
	SetBrightness(ctx context.Context, terminalID string, brightness int) (vnnox.Raw, error)
	SetVolume(ctx context.Context, terminalID string, volume int) (vnnox.Raw, error)
	SetPower(ctx context.Context, terminalID string, power bool) (vnnox.Raw, error)
	Reboot(ctx context.Context, terminalID string) (vnnox.Raw, error)
	GetLogs(ctx context.Context, terminalID string, opts vnnox.LogOptions) (vnnox.Envelope[[]vnnox.LogEntry], error)
}

// ContentPublisher is the subset of the VNNOX client used to push media.
type ContentPublisher interface {
	UploadMedia(ctx context.Context, terminalID string, media vnnox.MediaUpload) (vnnox.Envelope[vnnox.UploadResult], error)
	PublishContent(ctx context.Context, terminalID, contentID string) error
}

type Monitor interface {
	StartMonitoring(displayID string)
	StopMonitoring(displayID string)
	IsMonitoring(displayID string) bool
	StartUserDisplayMonitoring(ctx context.Context, userID string) (int, error)
}

type StatusReader interface {
	GetDisplayStatus(ctx context.Context, displayID string) (model.StatusUpdate, error)
}

type ControlAcker interface {
	PublishControlAck(ctx context.Context, displayID, command string, value any) error
}

// ownedDisplay loads the display named by param for user, mapping a miss to 404.
func ownedDisplay(ctx *gin.Context, store DisplayOwner, user *model.User, param string) (model.Display, *api.APIError) {
	display, err := store.GetUserDisplay(ctx.Request.Context(), user.ID, ctx.Param(param))
	if errors.Is(err, db.ErrNotFound) {
		return model.Display{}, api.NewError(http.StatusNotFound, "display not found")
	}
	if err != nil {
		return model.Display{}, api.NewError(http.StatusInternalServerError, "failed to fetch display")
	}
	return display, nil
}
