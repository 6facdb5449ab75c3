package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PublicBaseURL string
}

type Config struct {
	PostgresURI string
	RedisURI    string
	CronSecret  string
	SecretKey   string
	CookieName  string

	LinkedInClientID     string
	LinkedInClientSecret string

	R2 R2

	// Dispatch tuning. Polling loops are bounded retry loops with interval
	// and max-attempts parameters so tests can shrink them.
	DispatchConcurrency       int
	HTTPTimeout               time.Duration
	InstagramPollInterval     time.Duration
	InstagramPollMaxAttempts  int
	InstagramImageIngestDelay time.Duration
	XPollInterval             time.Duration
	XPollMaxAttempts          int
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		RedisURI:             getEnv("REDIS_URI", ""),
		CronSecret:           getEnv("CRON_SECRET", ""),
		SecretKey:            getEnv("SECRET_KEY", ""),
		CookieName:           getEnv("COOKIE_NAME", "postdeck_session"),
		LinkedInClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
		LinkedInClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		R2: R2{
			AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:     getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			BucketName:    getEnv("R2_BUCKET_NAME", ""),
			PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		DispatchConcurrency:       getEnvInt("DISPATCH_CONCURRENCY", 10),
		HTTPTimeout:               getEnvDuration("HTTP_TIMEOUT_SECONDS", 30),
		InstagramPollInterval:     getEnvDuration("INSTAGRAM_POLL_INTERVAL_SECONDS", 10),
		InstagramPollMaxAttempts:  getEnvInt("INSTAGRAM_POLL_MAX_ATTEMPTS", 30),
		InstagramImageIngestDelay: getEnvDuration("INSTAGRAM_IMAGE_DELAY_SECONDS", 5),
		XPollInterval:             getEnvDuration("X_POLL_INTERVAL_SECONDS", 5),
		XPollMaxAttempts:          getEnvInt("X_POLL_MAX_ATTEMPTS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
