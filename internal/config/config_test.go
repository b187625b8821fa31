package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"agenda-medica-server/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "3001", cfg.Port)
	require.Equal(t, config.BackendLocal, cfg.StorageBackend)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "agendaMedica:", cfg.Redis.KeyPrefix)
	require.Equal(t, 60, cfg.JWTExpirationMinutes)
	require.Equal(t, "password", cfg.AdminPassword)
	require.False(t, cfg.SeedDemoData)
	require.Zero(t, cfg.SimulatedLatencyMS)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", config.BackendRemote)
	t.Setenv("DB_USERNAME", "clinica")
	t.Setenv("DB_PASSWORD", "secreto")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "agenda")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("SIMULATED_LATENCY_MS", "250")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	require.Equal(t, config.BackendRemote, cfg.StorageBackend)
	require.Equal(t, "clinica:secreto@tcp(db.internal:3306)/agenda?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.DSN)
	require.True(t, cfg.SeedDemoData)
	require.Equal(t, 250, cfg.SimulatedLatencyMS)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "browser")
	_, err := config.LoadConfig()
	require.ErrorContains(t, err, "STORAGE_BACKEND")

	t.Setenv("STORAGE_BACKEND", config.BackendLocal)
	t.Setenv("JWT_EXPIRATION_MINUTES", "pronto")
	_, err = config.LoadConfig()
	require.ErrorContains(t, err, "JWT_EXPIRATION_MINUTES")
}
