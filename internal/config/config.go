package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env       string
	Port      string
	LogLevel  string
	LogFormat string

	// Clinic booking API
	APIBaseURL       string
	APITimeout       time.Duration
	AvailabilityMode string

	// Slot grid and clinic clock
	ClinicTimezone string
	SlotStart      string
	SlotEnd        string
	SlotStep       time.Duration

	// Session lifecycle
	DoctorRefreshInterval time.Duration
	SessionTTL            time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisTLS              bool

	// Console
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	ConsoleJWTSecret   string
	MetricsEnabled     bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8090"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		APIBaseURL:       strings.TrimRight(getEnv("CLINIC_API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout:       getEnvAsDuration("CLINIC_API_TIMEOUT", 15*time.Second),
		AvailabilityMode: strings.ToLower(strings.TrimSpace(getEnv("AVAILABILITY_MODE", "booked"))),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "UTC"),
		SlotStart:      getEnv("SLOT_START", "09:00"),
		SlotEnd:        getEnv("SLOT_END", "16:00"),
		SlotStep:       getEnvAsDuration("SLOT_STEP", time.Hour),

		DoctorRefreshInterval: getEnvAsDuration("DOCTOR_REFRESH_INTERVAL", 30*time.Second),
		SessionTTL:            getEnvAsDuration("SESSION_TTL", 3*time.Hour),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisTLS:              getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		ConsoleJWTSecret:   getEnv("CONSOLE_JWT_SECRET", ""),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
	}
}

// Location resolves ClinicTimezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.ClinicTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
