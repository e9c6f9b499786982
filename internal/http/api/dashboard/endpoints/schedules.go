package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/dashboard/packets"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

type ScheduleController struct {
	store ScheduleStore
}

// ScheduleModule mounts /schedules. Ownership is checked through the
// schedule's display.
func ScheduleModule(store ScheduleStore) api.Module {
	ctl := &ScheduleController{store: store}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.createSchedule)
		c.PUT("/schedules/:id", ctl.updateSchedule)
		c.DELETE("/schedules/:id", ctl.deleteSchedule)
	})
}

func normalizeRepeatDays(days []string) ([]string, error) {
	if days == nil {
		return nil, nil
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		name := strings.ToLower(strings.TrimSpace(d))
		if !model.IsWeekdayName(name) {
			return nil, fmt.Errorf("invalid repeat day %q", d)
		}
		out = append(out, name)
	}
	return out, nil
}

// GET /api/schedules?displayId=
func (s *ScheduleController) listSchedules(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	displayID := ctx.Query("displayId")
	if displayID == "" {
		return nil, api.NewError(http.StatusBadRequest, "display ID is required")
	}
	if _, err := s.store.GetUserDisplay(ctx.Request.Context(), user.ID, displayID); err != nil {
		return nil, api.NewError(http.StatusNotFound, "display not found")
	}

	schedules, err := s.store.ListSchedules(ctx.Request.Context(), displayID)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch schedules")
	}
	return schedules, nil
}

// POST /api/schedules
func (s *ScheduleController) createSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	contentType := model.ContentType(request.ContentType)
	if contentType != model.ContentMedia && contentType != model.ContentTemplate {
		return nil, api.NewError(http.StatusBadRequest, "contentType must be media or template")
	}
	if request.EndTime != nil && request.EndTime.Before(request.StartTime) {
		return nil, api.NewError(http.StatusBadRequest, "endTime must not be before startTime")
	}
	days, err := normalizeRepeatDays(request.RepeatDays)
	if err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	if _, err := s.store.GetUserDisplay(ctx.Request.Context(), user.ID, request.DisplayID); err != nil {
		return nil, api.NewError(http.StatusNotFound, "display not found")
	}

	schedule, err := s.store.CreateSchedule(ctx.Request.Context(), model.Schedule{
		DisplayID:   request.DisplayID,
		ContentType: contentType,
		ContentID:   request.ContentID,
		StartTime:   request.StartTime,
		EndTime:     request.EndTime,
		RepeatDays:  days,
		IsActive:    true,
	})
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to create schedule")
	}
	return api.Created(schedule), nil
}

// authorize loads the schedule and checks the caller owns its display.
func (s *ScheduleController) authorize(ctx *gin.Context, user *model.User) (model.Schedule, *api.APIError) {
	schedule, err := s.store.GetSchedule(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return model.Schedule{}, api.NewError(http.StatusNotFound, "schedule not found")
	}
	if err != nil {
		return model.Schedule{}, api.NewError(http.StatusInternalServerError, "failed to fetch schedule")
	}

	if _, err := s.store.GetUserDisplay(ctx.Request.Context(), user.ID, schedule.DisplayID); err != nil {
		log.Warn().
			Str("user_id", user.ID).
			Str("schedule_id", schedule.ID).
			Msg("forbidden access to schedule")
		return model.Schedule{}, api.NewError(http.StatusForbidden, "not authorized")
	}
	return schedule, nil
}

// PUT /api/schedules/:id
func (s *ScheduleController) updateSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.UpdateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}
	days, err := normalizeRepeatDays(request.RepeatDays)
	if err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	current, apiErr := s.authorize(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}

	start := current.StartTime
	if request.StartTime != nil {
		start = *request.StartTime
	}
	end := current.EndTime
	if request.ClearEndTime {
		end = nil
	} else if request.EndTime != nil {
		end = request.EndTime
	}
	if end != nil && end.Before(start) {
		return nil, api.NewError(http.StatusBadRequest, "endTime must not be before startTime")
	}

	updated, err := s.store.UpdateSchedule(ctx.Request.Context(), current.ID, db.ScheduleUpdate{
		StartTime:    request.StartTime,
		EndTime:      request.EndTime,
		ClearEndTime: request.ClearEndTime,
		RepeatDays:   days,
		IsActive:     request.IsActive,
	})
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to update schedule")
	}
	return updated, nil
}

// DELETE /api/schedules/:id
func (s *ScheduleController) deleteSchedule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	schedule, apiErr := s.authorize(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := s.store.DeleteSchedule(ctx.Request.Context(), schedule.ID); err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to delete schedule")
	}
	return nil, nil
}
