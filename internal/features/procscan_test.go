package features

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addProcess はテスト用のprocfsツリーにプロセスエントリを作成する
func addProcess(t *testing.T, procDir string, pid int, comm string, fdTargets ...string) {
	t.Helper()

	pidDir := filepath.Join(procDir, strconv.Itoa(pid))
	fdDir := filepath.Join(pidDir, "fd")
	require.NoError(t, os.MkdirAll(fdDir, 0755))

	// commはカーネルと同様に改行つきで格納される
	require.NoError(t, os.WriteFile(filepath.Join(pidDir, "comm"), []byte(comm+"\n"), 0644))

	for i, target := range fdTargets {
		require.NoError(t, os.Symlink(target, filepath.Join(fdDir, strconv.Itoa(3+i))))
	}
}

func TestOpenedByMatch(t *testing.T) {
	proc := t.TempDir()
	device := filepath.Join(t.TempDir(), "hidraw0")
	require.NoError(t, os.WriteFile(device, nil, 0644))

	addProcess(t, proc, 4242, "steam", "/dev/null", device)

	scanner := NewProcScanner(proc)
	assert.True(t, scanner.OpenedBy(device, "steam"))
}

func TestOpenedByWrongComm(t *testing.T) {
	proc := t.TempDir()
	device := filepath.Join(t.TempDir(), "hidraw0")
	require.NoError(t, os.WriteFile(device, nil, 0644))

	addProcess(t, proc, 4242, "firefox", device)

	scanner := NewProcScanner(proc)
	assert.False(t, scanner.OpenedBy(device, "steam"))
}

func TestOpenedByNoHolder(t *testing.T) {
	proc := t.TempDir()
	device := filepath.Join(t.TempDir(), "hidraw0")

	addProcess(t, proc, 100, "steam", "/dev/null")

	scanner := NewProcScanner(proc)
	assert.False(t, scanner.OpenedBy(device, "steam"))
}

func TestOpenedByEmptyProcTable(t *testing.T) {
	// プロセステーブルを一切読めない場合も通常の否定結果として扱う
	scanner := NewProcScanner(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, scanner.OpenedBy("/dev/hidraw0", "steam"))
}

func TestOpenedBySkipsVanishedEntries(t *testing.T) {
	proc := t.TempDir()
	device := filepath.Join(t.TempDir(), "hidraw0")
	require.NoError(t, os.WriteFile(device, nil, 0644))

	// fdディレクトリのないプロセス（走査中に終了した場合に相当）
	require.NoError(t, os.MkdirAll(filepath.Join(proc, "200"), 0755))

	// 数値でないエントリは対象外
	require.NoError(t, os.MkdirAll(filepath.Join(proc, "self", "fd"), 0755))

	addProcess(t, proc, 4242, "steam", device)

	scanner := NewProcScanner(proc)
	assert.True(t, scanner.OpenedBy(device, "steam"))
}

func TestHoldersMultiple(t *testing.T) {
	proc := t.TempDir()
	device := filepath.Join(t.TempDir(), "hidraw0")
	require.NoError(t, os.WriteFile(device, nil, 0644))

	addProcess(t, proc, 100, "steam", device)
	addProcess(t, proc, 200, "firefox", device)
	addProcess(t, proc, 300, "bash", "/dev/null")

	scanner := NewProcScanner(proc)
	assert.ElementsMatch(t, []int{100, 200}, scanner.Holders(device))
}
