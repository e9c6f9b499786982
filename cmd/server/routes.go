package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/config"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/auth/endpoints"
	dashboardapi "github.com/Nixie-Tech-LLC/ledmanager/internal/http/api/dashboard/endpoints"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/monitor"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/observability"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/storage"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

// Services are the collaborators the HTTP modules are built from. Status and
// Acks are nil when Redis or MQTT are not configured.
type Services struct {
	Store   db.Store
	Device  *vnnox.Client
	Monitor *monitor.Monitor
	Files   storage.Storage
	Status  dashboardapi.StatusReader
	Acks    dashboardapi.ControlAcker
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, logger zerolog.Logger, s Services) {
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.FrontendURL != "" {
		corsCfg.AllowOrigins = []string{cfg.FrontendURL}
	} else {
		corsCfg.AllowOriginFunc = func(origin string) bool { return true }
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
		Auth:   false,
	},
		authapi.AuthPublicModule(cfg.JWTSecret, s.Store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
		Users:     s.Store,
	},
		authapi.AuthSessionModule(cfg.JWTSecret, s.Store, s.Monitor),
		dashboardapi.DisplayModule(s.Store, s.Device, s.Monitor, s.Status, s.Acks),
		dashboardapi.ScheduleModule(s.Store),
		dashboardapi.MediaModule(s.Store, s.Files, s.Device, cfg.MaxUploadBytes),
		dashboardapi.MonitoringModule(s.Store, s.Monitor),
	)

	if !cfg.UseSpaces {
		r.Static("/uploads", cfg.UploadDir)
	}
}
