package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.PreviewRows)
	assert.Equal(t, "backups", cfg.BackupDir)
	assert.Equal(t, "UZS", cfg.DomesticCurrency)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, time.Second, cfg.ConnectivityRetryUnit)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=rest\nSUPABASE_URL=http://localhost:54321\nSUPABASE_SERVICE_KEY=key\nCHUNK_SIZE=25\nKAFKA_BROKERS=a:9092,b:9092\n"), 0o644))
	t.Cleanup(func() {
		for _, k := range []string{"STORE_DRIVER", "SUPABASE_URL", "SUPABASE_SERVICE_KEY", "CHUNK_SIZE", "KAFKA_BROKERS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:54321", cfg.SupabaseURL)
	assert.Equal(t, 25, cfg.ChunkSize)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestLoadValidates(t *testing.T) {
	t.Setenv("STORE_DRIVER", "rest")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "SupabaseURL")

	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "StoreDriver")
}
