package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback は設定の再読み込み時に呼び出されるコールバック関数の型
type ReloadCallback func(cfg *Config)

// Watcher は設定ファイルの変更を監視して再読み込みする構造体
// 反映されるのはイベント処理のたびに参照される項目（settle_delayと
// target_process）のみで、監視ディレクトリやsysfsパスの変更には
// 再起動が必要
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	callback ReloadCallback
	stopChan chan struct{}
}

// NewWatcher は設定ファイル監視用のWatcherを作成する
func NewWatcher(configPath string, callback ReloadCallback) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// エディタはファイルを置き換えることがあるため、ファイルそのものでは
	// なくディレクトリを監視する
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		path:     configPath,
		callback: callback,
		stopChan: make(chan struct{}),
	}, nil
}

// Start は設定ファイルの監視を開始する
func (w *Watcher) Start() {
	log.Printf("設定ファイルの監視を開始します: %s", w.path)
	go w.watchEvents()
}

// Stop は設定ファイルの監視を停止する
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()
}

// watchEvents はfsnotifyのイベントを監視する
func (w *Watcher) watchEvents() {
	// 保存時に複数のイベントが連続して届くため、バッチ処理するためのしくみ
	eventDebounceTime := 500 * time.Millisecond
	eventTimer := time.NewTimer(eventDebounceTime)
	eventTimer.Stop() // 初期状態では停止
	pendingReload := false

	for {
		select {
		case <-w.stopChan:
			return

		case <-eventTimer.C:
			if pendingReload {
				pendingReload = false
				w.reload()
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// 対象の設定ファイルに関するイベントのみ処理
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingReload = true
				eventTimer.Reset(eventDebounceTime)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("設定ファイルの監視エラー: %v", err)
		}
	}
}

// reload は設定ファイルを読み込み直してコールバックに渡す
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Printf("設定ファイルの再読み込みに失敗しました: %v", err)
		return
	}

	log.Printf("設定ファイルを再読み込みしました: %s", w.path)
	w.callback(cfg)
}
