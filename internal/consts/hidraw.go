package consts

// inhibited属性ノードに書き込む値（kernelのinput inhibited属性より）
const (
	InhibitValue   = "1\n" // 入力を抑制する
	UninhibitValue = "0\n" // 抑制を解除する
)

// hidrawデバイスノード名の接頭辞
const HidrawPrefix = "hidraw"
