package features

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcScanner はプロセステーブルを走査してデバイスの使用状況を調べる構造体
type ProcScanner struct {
	procDir string // /proc に相当するprocfsのルート
}

// NewProcScanner は新しいProcScannerを作成する
func NewProcScanner(procDir string) *ProcScanner {
	return &ProcScanner{procDir: procDir}
}

// OpenedBy は指定されたデバイスをコマンド名commのプロセスが開いているか
// どうかを返す
// プロセステーブルは走査中にも外部から変化するため、途中でプロセスや
// ディスクリプタが消えた場合は候補から外れるだけで、エラーとしては扱わない
func (p *ProcScanner) OpenedBy(devicePath, comm string) bool {
	for _, pid := range p.Holders(devicePath) {
		name, err := p.commName(pid)
		if err != nil {
			// comm取得前にプロセスが終了した場合は読み飛ばす
			continue
		}
		if name == comm {
			return true
		}
	}
	return false
}

// Holders は指定されたデバイスを開いているプロセスIDの一覧を返す
func (p *ProcScanner) Holders(devicePath string) []int {
	entries, err := os.ReadDir(p.procDir)
	if err != nil {
		return nil
	}

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join(p.procDir, entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			// プロセスが既に終了したか、参照する権限がない場合は読み飛ばす
			continue
		}

		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				// ディスクリプタが走査中に閉じられた場合は読み飛ばす
				continue
			}
			if target == devicePath {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids
}

// commName はプロセスのコマンド名を返す
func (p *ProcScanner) commName(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.procDir, strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), " \t\n"), nil
}
