package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"wapair/internal/constants"
)

// Config collects everything tunable from the environment. Timeouts and retry
// bounds are configuration, not constants, so deployments can trade QR
// latency against provider load.
type Config struct {
	Host string
	Port string

	ProviderURL    string
	ProviderAPIKey string
	InstancePrefix string

	QRMaxAttempts int
	QRInterval    time.Duration
	PollInterval  time.Duration
	PollDeadline  time.Duration
	CloseGrace    time.Duration

	MaxStreamsPerIP int
}

func Load() *Config {
	return &Config{
		Host: GetEnv("WAPAIR_HOST", constants.DefaultHost),
		Port: GetEnv("PORT", constants.DefaultPort),

		ProviderURL:    GetEnv("WAPAIR_PROVIDER_URL", constants.DefaultProviderURL),
		ProviderAPIKey: GetEnv("WAPAIR_PROVIDER_API_KEY", ""),
		InstancePrefix: GetEnv("WAPAIR_INSTANCE_PREFIX", constants.DefaultInstancePrefix),

		QRMaxAttempts: GetEnvInt("WAPAIR_QR_MAX_ATTEMPTS", constants.DefaultQRMaxAttempts),
		QRInterval:    GetEnvDuration("WAPAIR_QR_INTERVAL", constants.DefaultQRInterval),
		PollInterval:  GetEnvDuration("WAPAIR_POLL_INTERVAL", constants.DefaultPollInterval),
		PollDeadline:  GetEnvDuration("WAPAIR_POLL_DEADLINE", constants.DefaultPollDeadline),
		CloseGrace:    GetEnvDuration("WAPAIR_CLOSE_GRACE", constants.DefaultCloseGrace),

		MaxStreamsPerIP: GetEnvInt("WAPAIR_MAX_STREAMS_PER_IP", constants.MaxStreamsPerIP),
	}
}

// GetEnv returns environment variable value or default if empty
func GetEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("⚠️ Invalid value for %s: %q, using %d", key, val, defaultVal)
		return defaultVal
	}
	return n
}

func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("⚠️ Invalid value for %s: %q, using %s", key, val, defaultVal)
		return defaultVal
	}
	return d
}
