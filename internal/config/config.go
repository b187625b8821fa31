package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backend selectors.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	JWTExpirationMinutes int
	StorageBackend       string
	Redis                RedisConfig
	Database             DatabaseConfig
	AdminPassword        string
	SeedDemoData         bool
	SimulatedLatencyMS   int
}

// RedisConfig holds connection details for the local snapshot backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DatabaseConfig holds database connection details for the remote backend.
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	backend := getEnv("STORAGE_BACKEND", BackendLocal)
	if backend != BackendLocal && backend != BackendRemote {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q, expected %q or %q", backend, BackendLocal, BackendRemote)
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "agenda_medica"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisConfig := RedisConfig{
		Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        redisDB,
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "agendaMedica:"),
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	latencyMS, err := strconv.Atoi(getEnv("SIMULATED_LATENCY_MS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATED_LATENCY_MS: %w", err)
	}

	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          getEnv("APP_ENV", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		StorageBackend:       backend,
		Redis:                redisConfig,
		Database:             dbConfig,
		AdminPassword:        getEnv("ADMIN_PASSWORD", "password"),
		SeedDemoData:         getEnv("SEED_DEMO_DATA", "false") == "true",
		SimulatedLatencyMS:   latencyMS,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
