package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/config"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/monitor"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/mqtt"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/observability"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/redis"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := observability.InitLogger("ledmanager", cfg.Environment, cfg.LogLevel)
	observability.RegisterMetrics()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	defer conn.Close()

	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	store := db.NewStore(conn)

	device := vnnox.NewClient(vnnox.Config{
		AccessKey:    cfg.VNNOXAccessKey,
		AccessSecret: cfg.VNNOXAccessSecret,
		BaseURL:      cfg.VNNOXBaseURL,
	})

	deps := monitor.Dependencies{Displays: store, Schedules: store, Device: device}
	services := Services{Store: store, Device: device}

	// Redis and MQTT are optional; interfaces stay nil when they are off.
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		defer rdb.Close()

		cache := redis.NewCache(rdb, 3*cfg.MonitorInterval)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("address", cfg.RedisAddress).Msg("redis unreachable, status cache may lag")
		}
		cancel()

		deps.Cache = cache
		services.Status = cache
	}

	if cfg.MQTTBrokerURL != "" {
		client, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt connect")
		}
		publisher := mqtt.NewPublisher(client)
		defer publisher.Close()

		deps.Notifier = publisher
		services.Acks = publisher
	}

	mon := monitor.New(monitor.Config{
		Interval:    cfg.MonitorInterval,
		TickTimeout: cfg.MonitorTickTimeout,
		Location:    cfg.MonitorLocation,
	}, deps)
	services.Monitor = mon

	sweeper := monitor.NewSweeper(store, mon, cfg.StaleAfter)
	if err := sweeper.Start(cfg.StaleSweepSpec); err != nil {
		log.Fatal().Err(err).Msg("stale sweep")
	}

	services.Files = InitStorage(cfg)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, cfg, logger, services)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	mon.StopAllMonitoring()
	if err := mon.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("display checks still running at shutdown")
	}

	select {
	case <-sweeper.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("stale sweep still running at shutdown")
	}

	log.Info().Msg("server stopped")
}
