package database

import (
	"database/sql/driver"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", Name: "fern"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fern sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestColumnValue(t *testing.T) {
	assert.Nil(t, ColumnValue(nil))
	d, err := ColumnValue(models.NewDate(2024, time.December, 31)).(driver.Valuer).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", d)
	assert.Equal(t, "DOMESTIC", ColumnValue(models.OriginDomestic))
	assert.Equal(t, 12.5, ColumnValue(12.5))

	v, err := ColumnValue([]map[string]any{{"name": "Re"}}).(JSONB[any]).Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Re"}]`, v)
}

func TestScanValue(t *testing.T) {
	assert.Equal(t, "abc", ScanValue([]byte("abc")))
	assert.Equal(t, []any{}, ScanValue([]byte("[]")))
	assert.Equal(t, map[string]any{"a": 1.0}, ScanValue([]byte(`{"a":1}`)))
	assert.Equal(t, int64(3), ScanValue(int64(3)))
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_more.up.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}

	v, err := LatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = LatestVersion(t.TempDir())
	assert.Error(t, err)
}
