package features

import (
	"path/filepath"
	"regexp"
	"strconv"
)

// hidrawデバイスノード名のパターン
var hidrawPattern = regexp.MustCompile(`^hidraw(\d+)$`)

// ParseHidrawID はデバイスパスからhidrawデバイスの識別番号を取り出す
// deviceDir直下のhidraw<N>に一致しないパスの場合はfalseを返す
func ParseHidrawID(deviceDir, path string) (int, bool) {
	if filepath.Dir(path) != filepath.Clean(deviceDir) {
		return 0, false
	}

	match := hidrawPattern.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return 0, false
	}

	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	return id, true
}
