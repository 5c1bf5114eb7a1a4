// Package config loads daemon configuration from the environment, with
// optional .env file support for development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all fieldclockd settings.
type Config struct {
	LogLevel string

	HTTPHost string
	HTTPPort int

	AreaDBPath       string
	AttendanceDBPath string
	PIDPath          string

	// AdminToleranceMeters is the administrator-configured base acceptance
	// radius fed to the adaptive tolerance calculation.
	AdminToleranceMeters float64

	// KioskMode enables local device acquisition through gpsd. Off, the
	// daemon only accepts client-supplied readings.
	KioskMode bool
	GpsdAddr  string

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	// GoogleAPIKey enables reverse geocoding of accepted clock-ins.
	GoogleAPIKey string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:             getEnv("FIELDCLOCK_LOG_LEVEL", "info"),
		HTTPHost:             getEnv("FIELDCLOCK_HTTP_HOST", "0.0.0.0"),
		HTTPPort:             getEnvInt("FIELDCLOCK_HTTP_PORT", 8080),
		AreaDBPath:           getEnv("FIELDCLOCK_AREA_DB", "fieldclock-areas.db"),
		AttendanceDBPath:     getEnv("FIELDCLOCK_ATTENDANCE_DB", "fieldclock-attendance.db"),
		PIDPath:              getEnv("FIELDCLOCK_PID_FILE", "/tmp/fieldclockd.pid"),
		AdminToleranceMeters: getEnvFloat("FIELDCLOCK_ADMIN_TOLERANCE_M", 0),
		KioskMode:            getEnvBool("FIELDCLOCK_KIOSK_MODE", false),
		GpsdAddr:             getEnv("FIELDCLOCK_GPSD_ADDR", "localhost:2947"),
		MQTTEnabled:          getEnvBool("FIELDCLOCK_MQTT_ENABLED", false),
		MQTTBroker:           getEnv("FIELDCLOCK_MQTT_BROKER", "localhost"),
		MQTTPort:             getEnvInt("FIELDCLOCK_MQTT_PORT", 1883),
		MQTTUsername:         getEnv("FIELDCLOCK_MQTT_USERNAME", ""),
		MQTTPassword:         getEnv("FIELDCLOCK_MQTT_PASSWORD", ""),
		MQTTTopicPrefix:      getEnv("FIELDCLOCK_MQTT_TOPIC_PREFIX", "fieldclock"),
		GoogleAPIKey:         getEnv("FIELDCLOCK_GOOGLE_API_KEY", ""),
	}

	if cfg.AdminToleranceMeters < 0 {
		return nil, fmt.Errorf("admin tolerance must be non-negative, got %v", cfg.AdminToleranceMeters)
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port %d", cfg.HTTPPort)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
