package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("reservation-service")
	require.NoError(t, err)
	assert.Equal(t, "reservation-service", cfg.ServiceName)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 50, cfg.WorkerBatch)
	assert.Equal(t, 3, cfg.WorkerMaxAttempts)
	assert.False(t, cfg.WorkerEmbedded)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HOLD_TTL", "90s")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WORKER_BATCH", "7")
	t.Setenv("KAFKA_ADDR", "k1:9092,k2:9092")

	cfg, err := Load("svc")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.HoldTTL)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 7, cfg.WorkerBatch)
	assert.Equal(t, "k1:9092,k2:9092", cfg.KafkaAddr)
	assert.True(t, cfg.WorkerEmbedded, "memory driver forces the embedded worker")
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"HOLD_TTL":        "soon",
		"WORKER_BATCH":    "many",
		"WORKER_EMBEDDED": "perhaps",
		"STORE_DRIVER":    "sqlite",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load("svc")
			assert.Error(t, err)
		})
	}
}

func TestValidate_NonPositiveHold(t *testing.T) {
	t.Setenv("HOLD_TTL", "0s")
	_, err := Load("svc")
	assert.ErrorContains(t, err, "HOLD_TTL")
}
