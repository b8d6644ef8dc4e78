package api

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/char5742/hidraw-inhibit/internal/config"
	"github.com/char5742/hidraw-inhibit/internal/consts"
	"github.com/char5742/hidraw-inhibit/internal/event"
	"github.com/char5742/hidraw-inhibit/internal/features"
)

// InhibitService はhidrawデバイスの入力抑制サービスを管理する構造体
// デバイスノードの監視・プロセステーブルの走査・inhibited属性の更新は
// すべて単一のイベントループ内で順番に行われる
type InhibitService struct {
	cfg          *config.Config
	running      bool
	statusMutex  sync.RWMutex
	watcher      *features.Watcher
	inhibitor    *features.Inhibitor
	scanner      *features.ProcScanner
	inhibited    map[string]bool // パスをキーにした現在の抑制状態
	updateConfig chan *config.Config
	doneChan     chan struct{}
}

// DeviceStatus は監視中のデバイスの状態を表す構造体
type DeviceStatus struct {
	Path      string `json:"path"`      // デバイスノードのパス
	ID        int    `json:"id"`        // hidrawデバイスの識別番号
	Inhibited bool   `json:"inhibited"` // 現在入力を抑制しているかどうか
}

// NewInhibitService は新しい入力抑制サービスを作成する
func NewInhibitService(cfg *config.Config) *InhibitService {
	return &InhibitService{
		cfg:          cfg,
		updateConfig: make(chan *config.Config, 1),
	}
}

// Start は入力抑制サービスを開始する
func (s *InhibitService) Start() error {
	s.statusMutex.Lock()

	if s.running {
		s.statusMutex.Unlock()
		return fmt.Errorf("サービスは既に実行中です")
	}

	cfg := s.cfg

	watcher, err := features.NewWatcher()
	if err != nil {
		s.statusMutex.Unlock()
		return fmt.Errorf("監視の初期化に失敗しました: %v", err)
	}

	if err := watcher.WatchDir(cfg.Watch.DeviceDir); err != nil {
		watcher.Close()
		s.statusMutex.Unlock()
		return fmt.Errorf("デバイスディレクトリの監視に失敗しました: %v", err)
	}

	s.watcher = watcher
	s.inhibitor = features.NewInhibitor(cfg.Paths.SysfsHidraw, cfg.Inhibit.AllowedDrivers)
	s.scanner = features.NewProcScanner(cfg.Paths.Proc)
	s.inhibited = make(map[string]bool)
	s.doneChan = make(chan struct{})
	s.running = true
	s.statusMutex.Unlock()

	log.Println("入力抑制サービスを開始します")

	// 起動前から存在するデバイスを監視対象に加える
	// 既にクライアントが開いているデバイスもここでの初回チェックで検出される
	existing, err := filepath.Glob(filepath.Join(cfg.Watch.DeviceDir, consts.HidrawPrefix+"*"))
	if err == nil {
		for _, path := range existing {
			s.watch(cfg, path)
		}
	}

	// イベントループを開始
	go s.runInhibitLoop()

	return nil
}

// Stop は入力抑制サービスを停止する
// 監視中のすべてのデバイスの抑制が解除されてから戻る
func (s *InhibitService) Stop() error {
	s.statusMutex.Lock()

	if !s.running {
		s.statusMutex.Unlock()
		return fmt.Errorf("サービスは実行されていません")
	}
	s.statusMutex.Unlock()

	// ウォッチャーを閉じるとイベント待機がErrClosedで戻り、ループが終了する
	s.watcher.Close()
	<-s.doneChan

	return nil
}

// IsRunning はサービスが実行中かどうかを返す
func (s *InhibitService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// UpdateConfig は設定を更新する
// 反映されるのは次のイベント処理以降
func (s *InhibitService) UpdateConfig(cfg *config.Config) {
	select {
	case s.updateConfig <- cfg:
		// 設定更新チャネルに送信成功
	default:
		// チャネルがブロックされている場合は古い設定を破棄して新しい設定を送信
		select {
		case <-s.updateConfig:
		default:
		}
		s.updateConfig <- cfg
	}
}

// Done はイベントループの終了を通知するチャネルを返す
func (s *InhibitService) Done() <-chan struct{} {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.doneChan
}

// Devices は監視中のデバイスの状態一覧を返す
func (s *InhibitService) Devices() []DeviceStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	devices := make([]DeviceStatus, 0, len(s.inhibited))
	for path, inhibited := range s.inhibited {
		id, ok := features.ParseHidrawID(s.cfg.Watch.DeviceDir, path)
		if !ok {
			continue
		}
		devices = append(devices, DeviceStatus{Path: path, ID: id, Inhibited: inhibited})
	}
	return devices
}

// runInhibitLoop は入力抑制のメインループ
// 通知を待ち、届いたイベントを順番に処理することを繰り返す
func (s *InhibitService) runInhibitLoop() {
	defer func() {
		// 終了時はそれまでの判定結果にかかわらず、監視中のすべての
		// デバイスの抑制を解除する
		s.restoreAll()

		s.statusMutex.Lock()
		s.running = false
		s.statusMutex.Unlock()

		log.Println("入力抑制サービスを停止しました")
		close(s.doneChan)
	}()

	log.Println("デバイスの監視を開始しました...")

	for {
		events, err := s.watcher.WaitEvents()
		if err != nil {
			if !errors.Is(err, features.ErrClosed) {
				log.Printf("イベントの待機に失敗しました: %v", err)
			}
			return
		}

		cfg := s.getCfg()
		for _, ev := range events {
			s.handleEvent(cfg, ev)
		}
	}
}

// handleEvent はファイルシステムイベントを種類ごとに処理する
func (s *InhibitService) handleEvent(cfg *config.Config, ev event.Event) {
	switch ev.Op {
	case event.DirCreate:
		log.Printf("新しいノード %s を検出しました", ev.Path)
		// カーネル側でinputサブノードの列挙が終わるのを待ってから判定する
		time.Sleep(cfg.Watch.SettleDelay)
		s.watch(cfg, ev.Path)

	case event.NodeOpened, event.NodeClosed:
		if id, ok := features.ParseHidrawID(cfg.Watch.DeviceDir, ev.Path); ok {
			s.check(cfg, ev.Path, id)
		}

	case event.NodeDeleted:
		log.Printf("デバイス %s が取り外されました", ev.Path)
		s.watcher.Unwatch(ev.Path)
		s.clearInhibited(ev.Path)
	}
}

// watch はパスがhidrawデバイスであれば適格性を確認して監視を開始する
// 監視開始直後に一度だけ使用状況のチェックを行うため、発見時点で既に
// 開かれているデバイスも正しく抑制される
func (s *InhibitService) watch(cfg *config.Config, path string) {
	id, ok := features.ParseHidrawID(cfg.Watch.DeviceDir, path)
	if !ok {
		log.Printf("新しいノード %s はhidrawデバイスではありません", path)
		return
	}

	if s.watcher.Watched(path) {
		return
	}

	if !s.inhibitor.CanInhibit(id) {
		return
	}

	if err := s.watcher.WatchDevice(path); err != nil {
		// 判定してから監視するまでの間にデバイスが取り外された場合など
		log.Printf("%s の監視開始に失敗しました: %v", path, err)
		return
	}

	log.Printf("%s を監視リストに追加しました", path)
	s.check(cfg, path, id)
}

// check はデバイスの使用状況を調べて抑制状態を更新する
// 判定は毎回プロセステーブルを走査し直すため、イベントを取りこぼしても
// 次のイベントで正しい状態に収束する
func (s *InhibitService) check(cfg *config.Config, path string, id int) {
	if s.scanner.OpenedBy(path, cfg.Inhibit.TargetProcess) {
		log.Printf("%s を抑制します", path)
		s.inhibitor.Inhibit(id)
		s.setInhibited(path, true)
	} else {
		log.Printf("%s の抑制を解除します", path)
		s.inhibitor.Uninhibit(id)
		s.setInhibited(path, false)
	}
}

// restoreAll は監視中のすべてのデバイスの抑制を解除する
// デーモン終了後にデバイスが抑制されたまま残らないようにするための処理で、
// 最後の判定結果には従わない
func (s *InhibitService) restoreAll() {
	cfg := s.getCfg()
	for _, path := range s.watcher.DevicePaths() {
		id, ok := features.ParseHidrawID(cfg.Watch.DeviceDir, path)
		if !ok {
			continue
		}
		log.Printf("%s の抑制を解除して終了します", path)
		s.inhibitor.Uninhibit(id)
		s.setInhibited(path, false)
	}
}

// getCfg は保留中の設定更新を反映してから現在の設定を返す
func (s *InhibitService) getCfg() *config.Config {
	select {
	case newCfg := <-s.updateConfig:
		log.Println("設定を更新しました")
		s.statusMutex.Lock()
		s.cfg = newCfg
		s.statusMutex.Unlock()
	default:
	}

	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.cfg
}

// setInhibited はデバイスの抑制状態を記録する
func (s *InhibitService) setInhibited(path string, inhibited bool) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	s.inhibited[path] = inhibited
}

// clearInhibited はデバイスの抑制状態の記録を削除する
func (s *InhibitService) clearInhibited(path string) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	delete(s.inhibited, path)
}
