package features

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/char5742/hidraw-inhibit/internal/event"
)

// ErrClosed はCloseによって監視が終了したことを表すエラー
var ErrClosed = errors.New("ウォッチャーは閉じられています")

// デバイスノードで監視するinotifyイベントのマスク
const deviceEventMask = unix.IN_OPEN |
	unix.IN_CLOSE_NOWRITE |
	unix.IN_CLOSE_WRITE |
	unix.IN_DELETE_SELF

// Watcher はinotifyによるデバイスノードの監視を管理する構造体
// fsnotifyはオープン・クローズイベントを扱えないため、inotifyを直接使用する
// すべてのメソッドはイベントループを持つ単一のゴルーチンから呼び出される
// 前提で、Closeのみ他のゴルーチンから呼び出せる
type Watcher struct {
	fd      int
	dirWd   int
	dirPath string
	watches map[string]int // パスをキーにしたウォッチディスクリプタのマップ
	paths   map[int]string // ウォッチディスクリプタをキーにしたパスのマップ
	buf     []byte

	// ブロック中のWaitEventsを起こすためのパイプ
	// Closeが書き込み側を閉じると、ポーリングが読み取り側のHUPで目を覚ます
	pipeR     int
	pipeW     int
	closeOnce sync.Once
}

// NewWatcher は新しいWatcherを作成する
func NewWatcher() (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotifyの初期化に失敗しました: %w", err)
	}

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("パイプの作成に失敗しました: %w", err)
	}

	return &Watcher{
		fd:      fd,
		dirWd:   -1,
		watches: make(map[string]int),
		paths:   make(map[int]string),
		buf:     make([]byte, 4096),
		pipeR:   pipeFds[0],
		pipeW:   pipeFds[1],
	}, nil
}

// WatchDir はディレクトリ直下のノード作成イベントの監視を開始する
func (w *Watcher) WatchDir(path string) error {
	wd, err := unix.InotifyAddWatch(w.fd, path, unix.IN_CREATE)
	if err != nil {
		return fmt.Errorf("ディレクトリ %s の監視に失敗しました: %w", path, err)
	}

	w.dirWd = wd
	w.dirPath = path
	return nil
}

// WatchDevice はデバイスノードのオープン・クローズ・削除イベントの監視を
// 開始する
// すでに監視中のパスに対しては何もしない
func (w *Watcher) WatchDevice(path string) error {
	if _, ok := w.watches[path]; ok {
		return nil
	}

	wd, err := unix.InotifyAddWatch(w.fd, path, deviceEventMask)
	if err != nil {
		return fmt.Errorf("デバイス %s の監視に失敗しました: %w", path, err)
	}

	w.watches[path] = wd
	w.paths[wd] = path
	return nil
}

// Watched は指定されたパスが監視中かどうかを返す
func (w *Watcher) Watched(path string) bool {
	_, ok := w.watches[path]
	return ok
}

// Unwatch はデバイスノードの監視を解除する
// 監視していないパスに対しては何もしない
func (w *Watcher) Unwatch(path string) {
	wd, ok := w.watches[path]
	if !ok {
		return
	}

	delete(w.watches, path)
	delete(w.paths, wd)

	// ノードが既に削除されている場合はカーネル側でウォッチも消えているため
	// エラーは無視する
	_, _ = unix.InotifyRmWatch(w.fd, uint32(wd))
}

// DevicePaths は現在監視中のデバイスパスの一覧を返す
func (w *Watcher) DevicePaths() []string {
	paths := make([]string, 0, len(w.watches))
	for path := range w.watches {
		paths = append(paths, path)
	}
	return paths
}

// WaitEvents は次の通知が届くまでブロックし、イベントの一覧を返す
// CloseされたあとはErrClosedを、通知元のinotifyが壊れた場合はその
// エラーを返す
func (w *Watcher) WaitEvents() ([]event.Event, error) {
	n, err := w.read()
	if err != nil {
		return nil, err
	}

	var events []event.Event
	offset := 0
	for offset+unix.SizeofInotifyEvent <= n {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&w.buf[offset]))
		nameLen := int(raw.Len)

		name := ""
		if nameLen > 0 {
			b := w.buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
			name = strings.TrimRight(string(b), "\x00")
		}

		if ev, ok := w.convert(int(raw.Wd), raw.Mask, name); ok {
			events = append(events, ev)
		}

		offset += unix.SizeofInotifyEvent + nameLen
	}
	return events, nil
}

// read はinotifyが読めるようになるまで待って生イベントを読み取る
func (w *Watcher) read() (int, error) {
	for {
		fds := []unix.PollFd{
			{Fd: int32(w.fd), Events: unix.POLLIN},
			{Fd: int32(w.pipeR), Events: unix.POLLIN},
		}

		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, err
		}

		// Closeによる起床を通知より先に処理する
		if fds[1].Revents != 0 {
			w.release()
			return 0, ErrClosed
		}

		if fds[0].Revents == 0 {
			continue
		}

		n, err := unix.Read(w.fd, w.buf)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// convert はinotifyの生イベントをイベント型に変換する
// 関心のないイベントの場合はfalseを返す
func (w *Watcher) convert(wd int, mask uint32, name string) (event.Event, bool) {
	if wd == w.dirWd {
		if mask&unix.IN_CREATE != 0 {
			return event.Event{Op: event.DirCreate, Path: filepath.Join(w.dirPath, name)}, true
		}
		return event.Event{}, false
	}

	path, ok := w.paths[wd]
	if !ok {
		// 監視解除済みのウォッチから届いた残りのイベントは無視する
		return event.Event{}, false
	}

	switch {
	case mask&unix.IN_DELETE_SELF != 0:
		return event.Event{Op: event.NodeDeleted, Path: path}, true
	case mask&unix.IN_OPEN != 0:
		return event.Event{Op: event.NodeOpened, Path: path}, true
	case mask&(unix.IN_CLOSE_NOWRITE|unix.IN_CLOSE_WRITE) != 0:
		return event.Event{Op: event.NodeClosed, Path: path}, true
	}
	return event.Event{}, false
}

// Close は監視の終了を要求する
// ブロック中のWaitEventsが目を覚ましてErrClosedを返し、その際に
// 残りのディスクリプタも解放される
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		unix.Close(w.pipeW)
	})
	return nil
}

// release はinotifyとパイプの読み取り側を閉じる
// WaitEventsを呼び出すゴルーチンからのみ呼ばれる
func (w *Watcher) release() {
	unix.Close(w.fd)
	unix.Close(w.pipeR)
}
