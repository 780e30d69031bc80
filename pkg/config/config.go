package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`

	// Client
	APIURL               string        `yaml:"api_url"`
	BrokerURL            string        `yaml:"broker_url"`
	SessionFile          string        `yaml:"session_file"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	DegradedAfter        int           `yaml:"degraded_after"`
	SendRatePerMinute    int           `yaml:"send_rate_per_minute"`
	MetricsAddr          string        `yaml:"metrics_addr"`

	// Dev backend
	ServerPort   string `yaml:"server_port"`
	DatabasePath string `yaml:"database_path"`
	JWTSecret    string `yaml:"jwt_secret"`
	JWTExpiry    int64  `yaml:"jwt_expiry"`
}

func Default() *Config {
	return &Config{
		Environment:          "development",
		APIURL:               "http://localhost:3001/api",
		BrokerURL:            "ws://localhost:3001/ws",
		SessionFile:          "hola_user.json",
		RequestTimeout:       15 * time.Second,
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 60,
		DegradedAfter:        3,
		SendRatePerMinute:    10,
		ServerPort:           "3001",
		DatabasePath:         "holachat.db",
		JWTSecret:            "your-secret-key",
		JWTExpiry:            24 * 60 * 60, // 24 hours
	}
}

// Load reads .env, then the optional CONFIG_FILE, then the environment.
// Later sources win.
func Load() (*Config, error) {
	godotenv.Load()

	config := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.APIURL = getEnv("API_URL", config.APIURL)
	config.BrokerURL = getEnv("BROKER_URL", config.BrokerURL)
	config.SessionFile = getEnv("SESSION_FILE", config.SessionFile)
	config.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", config.RequestTimeout)
	config.ReconnectDelay = getEnvAsDuration("RECONNECT_DELAY", config.ReconnectDelay)
	config.MaxReconnectAttempts = int(getEnvAsInt64("MAX_RECONNECT_ATTEMPTS", int64(config.MaxReconnectAttempts)))
	config.DegradedAfter = int(getEnvAsInt64("DEGRADED_AFTER", int64(config.DegradedAfter)))
	config.SendRatePerMinute = int(getEnvAsInt64("SEND_RATE_PER_MINUTE", int64(config.SendRatePerMinute)))
	config.MetricsAddr = getEnv("METRICS_ADDR", config.MetricsAddr)
	config.ServerPort = getEnv("SERVER_PORT", config.ServerPort)
	config.DatabasePath = getEnv("DATABASE_PATH", config.DatabasePath)
	config.JWTSecret = getEnv("JWT_SECRET", config.JWTSecret)
	config.JWTExpiry = getEnvAsInt64("JWT_EXPIRY", config.JWTExpiry)

	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
