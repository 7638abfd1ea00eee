package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:29092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.App.MagicLinkTTL)
	assert.Equal(t, 3*time.Second, cfg.App.PollInterval)
	assert.Equal(t, 100, cfg.App.RateLimitPerSec)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout)
	assert.False(t, cfg.App.QRPublicFallback, "public QR renderer is opt-in")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PUBLIC_BASE_URL", "https://eat.example.com/")
	t.Setenv("KAFKA_MOCK_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://eat.example.com", cfg.App.PublicBaseURL)
	assert.True(t, cfg.Kafka.MockMode)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	_, err := Load()
	assert.ErrorContains(t, err, "DB_MAX_OPEN_CONNS")

	t.Setenv("DB_MAX_OPEN_CONNS", "")
	t.Setenv("RATE_LIMIT_PER_SEC", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "RATE_LIMIT_PER_SEC")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "3306", Username: "u", Password: "p", Database: "orders"}
	assert.Equal(t, "u:p@tcp(db:3306)/orders?charset=utf8mb4&parseTime=True&loc=UTC", c.DSN())
}
