package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL        string
	CSRFToken      string
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration

	KafkaBroker  string
	EventsTopic  string
	OTLPEndpoint string

	SimAddr         string
	SimConfirmAfter int
	SimFailSuffix   string
	SimCSRFToken    string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	interval, err := durationEnv("PAYFLOW_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := durationEnv("PAYFLOW_REQUEST_TIMEOUT", 4*time.Second)
	if err != nil {
		return nil, err
	}
	attempts, err := intEnv("PAYFLOW_MAX_ATTEMPTS", 60)
	if err != nil {
		return nil, err
	}
	confirmAfter, err := intEnv("GATEWAY_SIM_CONFIRM_AFTER", 3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:         getEnv("PAYFLOW_BASE_URL", "http://localhost:8090"),
		CSRFToken:       os.Getenv("PAYFLOW_CSRF_TOKEN"),
		PollInterval:    interval,
		MaxAttempts:     attempts,
		RequestTimeout:  timeout,
		KafkaBroker:     os.Getenv("KAFKA_BROKER"),
		EventsTopic:     getEnv("PAYFLOW_EVENTS_TOPIC", "payflow-events"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SimAddr:         getEnv("GATEWAY_SIM_ADDR", ":8090"),
		SimConfirmAfter: confirmAfter,
		SimFailSuffix:   getEnv("GATEWAY_SIM_FAIL_SUFFIX", "000"),
		SimCSRFToken:    getEnv("GATEWAY_SIM_CSRF_TOKEN", "sim-csrf-token-0123456789"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("PAYFLOW_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("PAYFLOW_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PAYFLOW_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// EventsEnabled is false when no broker is configured.
func (c *Config) EventsEnabled() bool {
	return c.KafkaBroker != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are milliseconds, as in INTERVAL_MS
		ms, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
