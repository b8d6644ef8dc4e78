package event

// Op は監視イベントの種類を表す
type Op int

const (
	// DirCreate は監視ディレクトリ直下に新しいノードが作成されたことを表す
	DirCreate Op = iota
	// NodeOpened は監視中のデバイスノードが開かれたことを表す
	NodeOpened
	// NodeClosed は監視中のデバイスノードが閉じられたことを表す
	NodeClosed
	// NodeDeleted は監視中のデバイスノードが削除されたことを表す
	NodeDeleted
)

// String はイベント種別の名前を返す
func (o Op) String() string {
	switch o {
	case DirCreate:
		return "DirCreate"
	case NodeOpened:
		return "NodeOpened"
	case NodeClosed:
		return "NodeClosed"
	case NodeDeleted:
		return "NodeDeleted"
	}
	return "Unknown"
}

// Event はファイルシステム監視イベントを表す構造体
type Event struct {
	Op   Op     // イベントの種類
	Path string // 対象のパス
}
