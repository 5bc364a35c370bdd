package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sidestore.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, client)

	// Verify tasks database was created
	tasksDBPath := filepath.Join(tmpDir, "sidestore-tasks.db")
	_, err = os.Stat(tasksDBPath)
	assert.NoError(t, err, "tasks database should be created")

	err = client.Close()
	assert.NoError(t, err)
}

func TestClientStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sidestore.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	// Start client in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	// Stop should complete successfully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	success := client.Stop(stopCtx)
	assert.True(t, success, "stop should succeed gracefully")
}

func TestTasksDatabasePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "sidestore-tasks.db"), TasksDatabasePath(filepath.Join("data", "sidestore.db")))
	assert.Equal(t, filepath.Join("data", "queue-tasks"), TasksDatabasePath(filepath.Join("data", "queue")))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 10*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)

	longest := lo.MaxBy([]time.Duration{
		RecordAttemptTask{}.Config().Timeout,
		SnapshotStatsTask{}.Config().Timeout,
	}, func(a, b time.Duration) bool { return a > b })
	assert.Greater(t, cfg.ReleaseAfter, longest)
}

func TestConfig_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.withDefaults())

	cfg := Config{Workers: 3, ReleaseAfter: time.Minute}.withDefaults()
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestNewClient_ZeroConfig(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "sidestore.db"), Config{}, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, DefaultConfig(), client.config)
}
