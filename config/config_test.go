package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithEnvOverride(t *testing.T) {
	t.Setenv("ALBARAN_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("ALBARAN_NUMBERING_MAX_ATTEMPTS", "5")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5, cfg.Numbering.MaxAttempts)
	assert.False(t, cfg.Numbering.Serialize)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "deliverynote-render", cfg.Azure.RenderQueueName)
}

func TestLoadConfigReadsYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
auth:
  jwt_secret: from-file
storage:
  provider: gcs
  bucket: albaranes-artifacts
worker:
  reconcile_interval: 30s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "gcs", cfg.Storage.Provider)
	assert.Equal(t, "albaranes-artifacts", cfg.Storage.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Worker.ReconcileInterval)
	assert.Equal(t, 3, cfg.Numbering.MaxAttempts)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Auth:      AuthConfig{JWTSecret: "x"},
		Numbering: NumberingConfig{MaxAttempts: 1},
		Storage:   StorageConfig{Provider: "local"},
		Queue:     QueueConfig{Provider: "none"},
	}
	require.NoError(t, valid.Validate())

	noAttempts := valid
	noAttempts.Numbering.MaxAttempts = 0
	assert.Error(t, noAttempts.Validate())

	gcsWithoutBucket := valid
	gcsWithoutBucket.Storage.Provider = "gcs"
	assert.Error(t, gcsWithoutBucket.Validate())

	unknown := valid
	unknown.Storage.Provider = "s3"
	assert.Error(t, unknown.Validate())

	busWithoutConn := valid
	busWithoutConn.Queue.Provider = "servicebus"
	assert.Error(t, busWithoutConn.Validate())

	pubsubQueue := valid
	pubsubQueue.Queue.Provider = "pubsub"
	pubsubQueue.PubSub = PubSubConfig{ProjectID: "albaranes", Topic: "render"}
	assert.NoError(t, pubsubQueue.Validate())
}

func TestFormatIndex(t *testing.T) {
	assert.Equal(t, "albaranes-deliverynotes", FormatIndex(ElasticConfig{Prefix: "albaranes"}, "deliverynotes"))
}
