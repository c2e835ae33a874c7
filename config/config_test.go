package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"journalbuf/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForZeroValues(t *testing.T) {
	path := writeConfig(t, "data_dir: /var/lib/journal\n")

	f, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 1<<20, f.BufferSize)
	require.Equal(t, time.Millisecond.Milliseconds(), f.TimeoutMillis)
	require.Equal(t, int64(256), f.MaxFileSizeMiB)
	require.Equal(t, "/var/lib/journal", f.DataDir)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
buffer_size: 65536
timeout_millis: 5
log_rates: true
data_dir: /data/journal
max_file_size_mib: 512
`)

	f, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 65536, f.BufferSize)
	require.Equal(t, int64(5), f.TimeoutMillis)
	require.True(t, f.LogRates)
	require.Equal(t, "/data/journal", f.DataDir)
	require.Equal(t, int64(512), f.MaxFileSizeMiB)
	require.Equal(t, int64(512<<20), f.MaxFileSizeBytes())
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCoalescerOptionsTranslatesFields(t *testing.T) {
	path := writeConfig(t, "buffer_size: 4096\ntimeout_millis: 2\nlog_rates: true\n")

	f, err := config.Load(path)
	require.NoError(t, err)

	opts := f.CoalescerOptions(nil)
	require.Equal(t, 4096, opts.BufferSize)
	require.Equal(t, 2*time.Millisecond, opts.Timeout)
	require.True(t, opts.LogRates)
}
