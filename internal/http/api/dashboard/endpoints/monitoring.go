package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/dashboard/packets"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

type MonitoringController struct {
	store   DisplayStore
	monitor Monitor
}

// MonitoringModule mounts the endpoints that start and stop display timers.
func MonitoringModule(store DisplayStore, monitor Monitor) api.Module {
	ctl := &MonitoringController{store: store, monitor: monitor}
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/monitoring/subscribe", ctl.subscribe)
		c.POST("/monitoring/displays/:id/start", ctl.start)
		c.POST("/monitoring/displays/:id/stop", ctl.stop)
	})
}

// POST /api/monitoring/subscribe
// Starts monitoring every display of the caller and returns them.
func (m *MonitoringController) subscribe(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	n, err := m.monitor.StartUserDisplayMonitoring(ctx.Request.Context(), user.ID)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to subscribe to displays")
	}

	// reload so the response carries the statuses from the first checks
	displays, err := m.store.ListDisplaysByUser(ctx.Request.Context(), user.ID)
	if err != nil {
		return nil, api.NewError(http.StatusInternalServerError, "failed to fetch displays")
	}
	log.Info().Str("user_id", user.ID).Int("displays", n).Msg("user subscribed to display updates")
	return packets.SubscribeResponse{Monitoring: n, Displays: displays}, nil
}

// POST /api/monitoring/displays/:id/start
func (m *MonitoringController) start(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	display, apiErr := ownedDisplay(ctx, m.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	m.monitor.StartMonitoring(display.ID)

	resp := packets.MonitoringResponse{DisplayID: display.ID, Monitoring: true}
	if refreshed, err := m.store.GetUserDisplay(ctx.Request.Context(), user.ID, display.ID); err == nil {
		resp.Status = refreshed.Status
	}
	return resp, nil
}

// POST /api/monitoring/displays/:id/stop
func (m *MonitoringController) stop(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	display, apiErr := ownedDisplay(ctx, m.store, user, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	m.monitor.StopMonitoring(display.ID)
	return packets.MonitoringResponse{DisplayID: display.ID, Monitoring: false}, nil
}
