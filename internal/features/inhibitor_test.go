package features

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/hidraw-inhibit/internal/consts"
)

// buildSysfs はテスト用のsysfsツリーを作成してinhibitedノードのパスを返す
func buildSysfs(t *testing.T, sysfsDir string, id int, driver string, withMouse bool) string {
	t.Helper()

	deviceDir := filepath.Join(sysfsDir, fmt.Sprintf("hidraw%d", id), "device")
	inputDir := filepath.Join(deviceDir, "input", "input5")
	require.NoError(t, os.MkdirAll(inputDir, 0755))

	if withMouse {
		require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "mouse0"), 0755))
	}

	node := filepath.Join(inputDir, "inhibited")
	require.NoError(t, os.WriteFile(node, []byte(consts.UninhibitValue), 0644))

	// ドライバのsymlinkはリンク先の実体がなくてもreadlinkできる
	require.NoError(t, os.Symlink("../../../bus/hid/drivers/"+driver, filepath.Join(deviceDir, "driver")))

	return node
}

func TestCanInhibitPlayStation(t *testing.T) {
	sysfs := t.TempDir()
	buildSysfs(t, sysfs, 3, "playstation", true)

	inhibitor := NewInhibitor(sysfs, []string{"sony", "playstation"})
	assert.True(t, inhibitor.CanInhibit(3))
}

func TestCanInhibitUnsupportedDriver(t *testing.T) {
	sysfs := t.TempDir()
	buildSysfs(t, sysfs, 0, "usbhid", true)

	inhibitor := NewInhibitor(sysfs, []string{"sony", "playstation"})
	assert.False(t, inhibitor.CanInhibit(0))
}

func TestCanInhibitNoMouseNode(t *testing.T) {
	sysfs := t.TempDir()
	buildSysfs(t, sysfs, 1, "playstation", false)

	inhibitor := NewInhibitor(sysfs, []string{"sony", "playstation"})
	assert.False(t, inhibitor.CanInhibit(1))
}

func TestCanInhibitMissingDevice(t *testing.T) {
	inhibitor := NewInhibitor(t.TempDir(), []string{"sony", "playstation"})
	assert.False(t, inhibitor.CanInhibit(7))
}

func TestNodesOnlyMouseInputs(t *testing.T) {
	sysfs := t.TempDir()
	node := buildSysfs(t, sysfs, 2, "sony", true)

	// マウスを持たないinputサブノードは対象外
	other := filepath.Join(sysfs, "hidraw2", "device", "input", "input6")
	require.NoError(t, os.MkdirAll(other, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "inhibited"), []byte(consts.UninhibitValue), 0644))

	inhibitor := NewInhibitor(sysfs, []string{"sony"})
	assert.Equal(t, []string{node}, inhibitor.Nodes(2))
}

func TestInhibitWritesNodes(t *testing.T) {
	sysfs := t.TempDir()
	node := buildSysfs(t, sysfs, 3, "playstation", true)

	inhibitor := NewInhibitor(sysfs, []string{"playstation"})

	inhibitor.Inhibit(3)
	data, err := os.ReadFile(node)
	require.NoError(t, err)
	assert.Equal(t, consts.InhibitValue, string(data))

	// すでに抑制されている状態での再実行も同じ結果になる
	inhibitor.Inhibit(3)
	data, err = os.ReadFile(node)
	require.NoError(t, err)
	assert.Equal(t, consts.InhibitValue, string(data))

	inhibitor.Uninhibit(3)
	data, err = os.ReadFile(node)
	require.NoError(t, err)
	assert.Equal(t, consts.UninhibitValue, string(data))
}

func TestInhibitVanishedDevice(t *testing.T) {
	sysfs := t.TempDir()
	buildSysfs(t, sysfs, 4, "sony", true)

	inhibitor := NewInhibitor(sysfs, []string{"sony"})

	// 取り外し中のデバイスへの書き込みは何も起こさない
	require.NoError(t, os.RemoveAll(filepath.Join(sysfs, "hidraw4")))
	inhibitor.Inhibit(4)
	inhibitor.Uninhibit(4)
}
