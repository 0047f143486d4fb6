package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the assessment API.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	GradingSubject         string
	GradingQueueSize       int
	GradingBatchPause      time.Duration
	JWTSecret              string
	TokenTTL               time.Duration
	InsightsCacheTTL       time.Duration
	OpenAIAPIKey           string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASSESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Assessment Agent API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("grading.subject", "assess.grading.jobs")
	v.SetDefault("grading.queue_size", 64)
	v.SetDefault("grading.batch_pause", "2s")
	v.SetDefault("token.ttl", "24h")
	v.SetDefault("insights.cache_ttl", "5m")
	v.SetDefault("cloudinary.folder", "assess/documents")

	tokenTTL, err := time.ParseDuration(v.GetString("token.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid token ttl: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("insights.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid insights cache ttl: %w", err)
	}

	batchPause, err := time.ParseDuration(v.GetString("grading.batch_pause"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid grading batch pause: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		GradingSubject:         v.GetString("grading.subject"),
		GradingQueueSize:       v.GetInt("grading.queue_size"),
		GradingBatchPause:      batchPause,
		JWTSecret:              v.GetString("jwt.secret"),
		TokenTTL:               tokenTTL,
		InsightsCacheTTL:       cacheTTL,
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.GradingQueueSize <= 0 {
		cfg.GradingQueueSize = 64
	}

	return cfg, nil
}
