package endpoints

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/dashboard/packets"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

type DisplayController struct {
	store   DisplayStore
	device  DisplayControl
	monitor Monitor
	status  StatusReader
	acks    ControlAcker
}

// DisplayModule mounts /displays CRUD and the terminal control endpoints.
// status and acks may be nil.
func DisplayModule(store DisplayStore, device DisplayControl, monitor Monitor, status StatusReader, acks ControlAcker) api.Module {
	ctl := &DisplayController{store: store, device: device, monitor: monitor, status: status, acks: acks}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/displays", ctl.listDisplays)
		c.POST("/displays", ctl.createDisplay)
		c.GET("/displays/:id", ctl.getDisplay)
		c.PUT("/displays/:id", ctl.updateDisplay)
		c.DELETE("/displays/:id", ctl.deleteDisplay)

		c.POST("/displays/:id/brightness", ctl.setBrightness)
		c.POST("/displays/:id/volume", ctl.setVolume)
		c.POST("/displays/:id/power", ctl.setPower)
		c.POST("/displays/:id/reboot", ctl.reboot)
		c.GET("/displays/:id/logs", ctl.getLogs)
	})
}

// GET /api/displays
func (d *DisplayController) listDisplays(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	displays, err := d.store.ListDisplaysByUser(ctx.Request.Context(), user.ID)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch displays")
	}
	return displays, nil
}

// GET /api/displays/:id
func (d *DisplayController) getDisplay(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	out := packets.DisplayDetailResponse{Display: display, Monitoring: d.monitor.IsMonitoring(display.ID)}

	env, err := d.device.GetStatus(ctx.Request.Context(), display.TerminalID)
	if err != nil {
		log.Error().Err(err).Str("display_id", display.ID).Msg("failed to fetch VNNOX status")
	} else {
		out.RealTimeStatus = &env.Data
	}

	if d.status != nil {
		if cached, err := d.status.GetDisplayStatus(ctx.Request.Context(), display.ID); err == nil {
			out.CachedStatus = &cached
		}
	}
	return out, nil
}

// POST /api/displays
func (d *DisplayController) createDisplay(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateDisplayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	info, err := d.device.GetTerminalInfo(ctx.Request.Context(), request.VnnoxTerminalID)
	if err != nil || !info.OK() {
		log.Warn().Err(err).
			Int("code", info.Code).
			Str("terminal_id", request.VnnoxTerminalID).
			Msg("terminal verification failed")
		return nil, api.NewError(http.StatusBadRequest, "invalid VNNOX terminal ID")
	}

	display, err := d.store.CreateDisplay(ctx.Request.Context(), model.Display{
		UserID:         user.ID,
		DisplayName:    request.DisplayName,
		TerminalID:     request.VnnoxTerminalID,
		TerminalSecret: request.VnnoxSecret,
		Location:       request.Location,
		Status:         model.StatusOffline,
	})
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to create display")
	}
	return api.Created(display), nil
}

// PUT /api/displays/:id
func (d *DisplayController) updateDisplay(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.UpdateDisplayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}

	display, err := d.store.UpdateDisplay(ctx.Request.Context(), user.ID, ctx.Param("id"), db.DisplayUpdate{
		DisplayName: request.DisplayName,
		Location:    request.Location,
	})
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NewError(http.StatusNotFound, "display not found")
	}
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to update display")
	}
	return display, nil
}

// DELETE /api/displays/:id
func (d *DisplayController) deleteDisplay(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id := ctx.Param("id")
	err := d.store.DeleteDisplay(ctx.Request.Context(), user.ID, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NewError(http.StatusNotFound, "display not found")
	}
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to delete display")
	}
	d.monitor.StopMonitoring(id)
	return nil, nil
}

// POST /api/displays/:id/brightness
func (d *DisplayController) setBrightness(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.BrightnessRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}
	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := d.device.SetBrightness(ctx.Request.Context(), display.TerminalID, *request.Brightness)
	return d.controlResult(ctx, display, "brightness", *request.Brightness, env, err)
}

// POST /api/displays/:id/volume
func (d *DisplayController) setVolume(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.VolumeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}
	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := d.device.SetVolume(ctx.Request.Context(), display.TerminalID, *request.Volume)
	return d.controlResult(ctx, display, "volume", *request.Volume, env, err)
}

// POST /api/displays/:id/power
func (d *DisplayController) setPower(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.PowerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.NewError(http.StatusBadRequest, err.Error())
	}
	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := d.device.SetPower(ctx.Request.Context(), display.TerminalID, *request.Power)
	return d.controlResult(ctx, display, "power", *request.Power, env, err)
}

// POST /api/displays/:id/reboot
func (d *DisplayController) reboot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := d.device.Reboot(ctx.Request.Context(), display.TerminalID)
	return d.controlResult(ctx, display, "reboot", nil, env, err)
}

// controlResult passes the VNNOX envelope through and acks the command to
// dashboards.
func (d *DisplayController) controlResult(ctx *gin.Context, display model.Display, command string, value any, env vnnox.Raw, err error) (any, *api.APIError) {
	if err != nil {
		log.Error().Err(err).
			Str("display_id", display.ID).
			Str("command", command).
			Msg("display control failed")
		return nil, api.NewError(http.StatusBadGateway, "failed to "+command+" display")
	}
	if d.acks != nil && env.OK() {
		if err := d.acks.PublishControlAck(ctx.Request.Context(), display.ID, command, value); err != nil {
			log.Warn().Err(err).Str("display_id", display.ID).Msg("failed to publish control ack")
		}
	}
	return env, nil
}

// GET /api/displays/:id/logs?limit=&startTime=
func (d *DisplayController) getLogs(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var opts vnnox.LogOptions
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, api.NewError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = n
	}
	if v := ctx.Query("startTime"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, api.NewError(http.StatusBadRequest, "invalid startTime")
		}
		opts.StartTime = &t
	}

	display, apiErr := ownedDisplay(ctx, d.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	env, err := d.device.GetLogs(ctx.Request.Context(), display.TerminalID, opts)
	if err != nil {
		log.Error().Err(err).Str("display_id", display.ID).Msg("failed to fetch display logs")
		return nil, api.NewError(http.StatusBadGateway, "failed to fetch display logs")
	}
	return env, nil
}
