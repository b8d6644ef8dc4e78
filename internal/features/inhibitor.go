package features

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/char5742/hidraw-inhibit/internal/consts"
)

// Inhibitor はhidrawデバイスのinhibited属性を操作する構造体
type Inhibitor struct {
	sysfsDir string   // /sys/class/hidraw に相当するsysfsのルート
	drivers  []string // 抑制対象とするドライバ名の一覧
}

// NewInhibitor は新しいInhibitorを作成する
func NewInhibitor(sysfsDir string, drivers []string) *Inhibitor {
	return &Inhibitor{sysfsDir: sysfsDir, drivers: drivers}
}

// Nodes は指定されたデバイスのinhibited属性ノードの一覧を返す
// マウス入力を持つinputサブノードのみが対象となる
func (i *Inhibitor) Nodes(id int) []string {
	pattern := filepath.Join(i.deviceDir(id), "device", "input", "input*")
	dirs, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	var nodes []string
	for _, dir := range dirs {
		mice, err := filepath.Glob(filepath.Join(dir, "mouse*"))
		if err != nil || len(mice) == 0 {
			continue
		}
		nodes = append(nodes, filepath.Join(dir, "inhibited"))
	}
	return nodes
}

// CanInhibit は指定されたデバイスが抑制可能かどうかを判定する
// 対象のドライバに紐づいていて、書き込み可能なinhibitedノードが
// 少なくとも1つ存在する場合のみtrueを返す
func (i *Inhibitor) CanInhibit(id int) bool {
	driver, err := os.Readlink(filepath.Join(i.deviceDir(id), "device", "driver"))
	if err != nil {
		log.Printf("hidraw%d のドライバを特定できませんでした: %v", id, err)
		return false
	}

	name := filepath.Base(driver)
	supported := false
	for _, d := range i.drivers {
		if name == d {
			supported = true
			break
		}
	}
	if !supported {
		log.Printf("hidraw%d は対象のコントローラーではありません (driver=%s)", id, name)
		return false
	}

	nodes := i.Nodes(id)
	if len(nodes) == 0 {
		log.Printf("hidraw%d に抑制可能なノードがありません", id)
		return false
	}
	for _, node := range nodes {
		if err := unix.Access(node, unix.W_OK); err != nil {
			log.Printf("ノード %s には書き込めません: %v", node, err)
			return false
		}
	}
	return true
}

// Inhibit は指定されたデバイスの入力を抑制する
// すでに抑制されている場合に再度呼び出しても安全
func (i *Inhibitor) Inhibit(id int) {
	i.write(id, consts.InhibitValue)
}

// Uninhibit は指定されたデバイスの入力抑制を解除する
// すでに解除されている場合に再度呼び出しても安全
func (i *Inhibitor) Uninhibit(id int) {
	i.write(id, consts.UninhibitValue)
}

// write は各inhibited属性ノードに値を書き込む
// デバイスの取り外しでノードが消えている場合は読み飛ばす
func (i *Inhibitor) write(id int, value string) {
	for _, node := range i.Nodes(id) {
		if err := os.WriteFile(node, []byte(value), 0644); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			log.Printf("ノード %s への書き込みに失敗しました: %v", node, err)
		}
	}
}

// deviceDir は指定されたデバイスのsysfsディレクトリを返す
func (i *Inhibitor) deviceDir(id int) string {
	return filepath.Join(i.sysfsDir, fmt.Sprintf("%s%d", consts.HidrawPrefix, id))
}
