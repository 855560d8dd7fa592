package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config aggregates settings for both binaries, loaded from environment
// variables. The client reads the API/poll/session fields; the devserver
// reads the HTTP/auth/storage fields.
type Config struct {
	Env          string
	APIBaseURL   string
	PollInterval time.Duration
	CallTimeout  time.Duration
	SessionFile  string

	HTTPAddr         string
	JWTSecret        string
	TokenTTL         time.Duration
	MongoURI         string
	MongoDB          string
	KafkaBrokers     []string
	KafkaTopicPrefix string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:8080/api"),
		SessionFile:      getEnv("SESSION_FILE", defaultSessionFile()),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "studenthelper"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
	}

	poll, err := parseDurationEnv("POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = poll

	callTimeout, err := parseDurationEnv("API_CALL_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.CallTimeout = callTimeout

	tokenTTL, err := parseDurationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = tokenTTL

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, raw := range strings.Split(brokers, ",") {
			if broker := strings.TrimSpace(raw); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	return cfg, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".studenthelper", "session.json")
	}
	return filepath.Join(home, ".studenthelper", "session.json")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
