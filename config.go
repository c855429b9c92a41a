package main

import (
	"os"
	"strconv"
	"time"
)

const (
	defaultStandardMaxBytes = 50 << 20
	defaultExtendedMaxBytes = 2 << 30
)

// Config is the process-wide configuration, loaded from the environment
// once at startup and passed into each component at construction.
type Config struct {
	TelegramToken string
	// LocalAPIURL is the alternate Bot API gateway for the extended
	// upload path. Empty means only the standard 50MB path is available.
	LocalAPIURL string

	MistralAPIKey    string
	MistralModel     string
	MistralBaseURL   string
	LLMMaxPromptSize int
	LLMRetries       uint

	StandardMaxBytes int64
	ExtendedMaxBytes int64
	TempDir          string

	Workers         int
	JobTimeout      time.Duration
	DownloadRetries uint

	RabbitMQURL  string
	RedisDSN     string
	RedisChannel string

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	LogLevel string
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		LocalAPIURL:      os.Getenv("TELEGRAM_LOCAL_API_URL"),
		MistralAPIKey:    os.Getenv("MISTRAL_API_KEY"),
		MistralModel:     envString("MISTRAL_MODEL", "mistral-large-latest"),
		MistralBaseURL:   envString("MISTRAL_BASE_URL", "https://api.mistral.ai"),
		LLMMaxPromptSize: envInt("LLM_MAX_PROMPT_BYTES", 16<<10),
		LLMRetries:       uint(envInt("LLM_RETRIES", 3)),
		StandardMaxBytes: int64(envInt("MAX_FILE_SIZE_MB", 50)) << 20,
		ExtendedMaxBytes: int64(envInt("EXTENDED_MAX_FILE_SIZE_MB", 2048)) << 20,
		TempDir:          envString("TEMP_DIR", os.TempDir()),
		Workers:          envInt("WORKER_COUNT", 4),
		JobTimeout:       envDuration("JOB_TIMEOUT", 10*time.Minute),
		DownloadRetries:  uint(envInt("DOWNLOAD_RETRIES", 3)),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RedisDSN:         os.Getenv("REDIS_DSN"),
		RedisChannel:     envString("REDIS_CHANNEL", "videojobs"),
		S3Region:         os.Getenv("S3_REGION"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		LogLevel:         envString("LOG_LEVEL", "info"),
	}

	if cfg.TelegramToken == "" {
		return nil, &ConfigError{Key: "TELEGRAM_BOT_TOKEN", Reason: "is required"}
	}
	if cfg.StandardMaxBytes <= 0 || cfg.ExtendedMaxBytes < cfg.StandardMaxBytes {
		return nil, &ConfigError{Key: "MAX_FILE_SIZE_MB", Reason: "limits are inconsistent"}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

// ExtendedConfigured reports whether the extended upload path can be used.
func (c *Config) ExtendedConfigured() bool {
	return c.LocalAPIURL != ""
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
