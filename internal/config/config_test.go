package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "/dev", cfg.Watch.DeviceDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.SettleDelay)
	assert.Equal(t, "steam", cfg.Inhibit.TargetProcess)
	assert.Equal(t, []string{"sony", "playstation"}, cfg.Inhibit.AllowedDrivers)
	assert.Equal(t, "/sys/class/hidraw", cfg.Paths.SysfsHidraw)
	assert.Equal(t, "/proc", cfg.Paths.Proc)
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// ファイルが存在しない場合はデフォルト設定が保存される
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadConfigReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[watch]
device_dir = "/tmp/devs"
settle_delay = 50000000

[inhibit]
target_process = "dolphin-emu"
allowed_drivers = ["sony"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/devs", cfg.Watch.DeviceDir)
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.SettleDelay)
	assert.Equal(t, "dolphin-emu", cfg.Inhibit.TargetProcess)
	assert.Equal(t, []string{"sony"}, cfg.Inhibit.AllowedDrivers)

	// 記述のない項目はデフォルト値のまま
	assert.Equal(t, "/sys/class/hidraw", cfg.Paths.SysfsHidraw)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Inhibit.TargetProcess = "gamescope"
	cfg.Watch.SettleDelay = 100 * time.Millisecond
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
