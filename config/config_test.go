package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, "mongo", cfg.App.Store)
	assert.Equal(t, 5*time.Minute, cfg.Chat.RecallWindow)
	assert.Equal(t, 3, cfg.Chat.MemberPreview)
	assert.Equal(t, time.Minute, cfg.Chat.MatchWindow)
	assert.Equal(t, 10*time.Minute, cfg.Chat.IdempotencyTTL)
	assert.Equal(t, "localhost:6379", cfg.DATABASE.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := `
APP:
  PORT: ":9090"
  STORE: memory
CHAT:
  RECALL_WINDOW: 2m
  MEMBER_PREVIEW: 5
KAFKA:
  BROKERS:
    - kafka-1:9092
    - kafka-2:9092
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application.yaml"), []byte(yaml), 0o644))
	t.Setenv("CHATAPP_DATABASE_REDIS_ADDR", "redis:6380")
	t.Setenv("CHATAPP_CHAT_MEMBER_PREVIEW", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Port)
	assert.Equal(t, "memory", cfg.App.Store)
	assert.Equal(t, 2*time.Minute, cfg.Chat.RecallWindow)
	assert.Equal(t, 7, cfg.Chat.MemberPreview)
	assert.Equal(t, "redis:6380", cfg.DATABASE.Redis.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("CHATAPP_APP_STORE", "postgres")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfig_SetsGlobal(t *testing.T) {
	Conf = nil
	require.NoError(t, LoadConfig(t.TempDir()))
	require.NotNil(t, Conf)
	assert.Equal(t, "appchat", Conf.App.Name)
}
