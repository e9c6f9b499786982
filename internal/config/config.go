package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	LogLevel       string
	ServerAddress  string
	FrontendURL    string
	DatabaseURL    string
	MigrationsPath string
	JWTSecret      string

	VNNOXBaseURL      string
	VNNOXAccessKey    string
	VNNOXAccessSecret string

	MonitorInterval    time.Duration
	MonitorTickTimeout time.Duration
	MonitorLocation    *time.Location
	StaleSweepSpec     string
	StaleAfter         time.Duration

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string
	MQTTUsername  string
	MQTTPassword  string

	UploadDir       string
	UploadsURL      string
	MaxUploadBytes  int64
	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServerAddress:  getEnv("SERVER_ADDRESS", ":8080"),
		FrontendURL:    os.Getenv("FRONTEND_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		VNNOXBaseURL:      getEnv("VNNOX_API_URL", "https://api.vnnox.com"),
		VNNOXAccessKey:    os.Getenv("VNNOX_AK"),
		VNNOXAccessSecret: os.Getenv("VNNOX_AS"),

		StaleSweepSpec: getEnv("STALE_SWEEP_SPEC", "@every 5m"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "ledmanager"),
		MQTTUsername:  os.Getenv("MQTT_USERNAME"),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),

		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		UploadsURL:      getEnv("UPLOADS_URL", "/uploads"),
		UseSpaces:       os.Getenv("USE_SPACES") == "true",
		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesCDNURL:    os.Getenv("SPACES_CDN_URL"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),
	}

	for name, val := range map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"JWT_SECRET":   cfg.JWTSecret,
		"VNNOX_AK":     cfg.VNNOXAccessKey,
		"VNNOX_AS":     cfg.VNNOXAccessSecret,
	} {
		if val == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	var err error
	if cfg.MonitorInterval, err = getDuration("MONITOR_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MonitorTickTimeout, err = getDuration("MONITOR_TICK_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = getDuration("STALE_AFTER", 3*time.Minute); err != nil {
		return nil, err
	}

	cfg.MonitorLocation, err = time.LoadLocation(getEnv("MONITOR_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("MONITOR_TIMEZONE: %w", err)
	}

	cfg.MaxUploadBytes = 50 << 20
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES: invalid value %q", v)
		}
		cfg.MaxUploadBytes = n
	}

	if cfg.UseSpaces && (cfg.SpacesBucket == "" || cfg.SpacesEndpoint == "") {
		return nil, fmt.Errorf("SPACES_BUCKET and SPACES_ENDPOINT are required when USE_SPACES=true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
