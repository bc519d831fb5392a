package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN, "reader falls back to writer")
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "marketdesk.lifecycle", cfg.Messaging.Kafka.LifecycleTopic)
	assert.Equal(t, "marketdesk.notifications", cfg.Messaging.Kafka.NotificationsTopic)
	assert.Equal(t, "marketdesk-worker", cfg.Messaging.ConsumerGroup)
	assert.Equal(t, 50, cfg.Moderation.BulkMaxItems)
	assert.Equal(t, 7, cfg.Audit.RetentionYears)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}

func TestNewInvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "-1")
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestNewCacheDriver(t *testing.T) {
	t.Run("disabled cache forces noop driver", func(t *testing.T) {
		t.Setenv("CACHE_ENABLED", "false")
		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, "noop", cfg.Cache.Driver)
	})

	t.Run("unknown driver rejected", func(t *testing.T) {
		t.Setenv("CACHE_DRIVER", "memcached")
		_, err := New()
		require.Error(t, err)
	})
}

func TestNewMessaging(t *testing.T) {
	t.Run("disabled messaging forces noop driver", func(t *testing.T) {
		t.Setenv("MESSAGING_ENABLED", "false")
		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, "noop", cfg.Messaging.Driver)
	})

	t.Run("kafka requires a lifecycle topic", func(t *testing.T) {
		t.Setenv("KAFKA_LIFECYCLE_TOPIC", "")
		_, err := New()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KAFKA_LIFECYCLE_TOPIC")
	})

	t.Run("worker concurrency floor", func(t *testing.T) {
		t.Setenv("WORKER_CONCURRENCY", "0")
		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Messaging.Workers.Concurrency)
	})
}

func TestNewPrometheusPathNormalised(t *testing.T) {
	t.Setenv("OBS_PROMETHEUS_PATH", "metrics")
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}
