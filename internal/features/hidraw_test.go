package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHidrawID(t *testing.T) {
	tests := []struct {
		name      string
		deviceDir string
		path      string
		wantID    int
		wantOK    bool
	}{
		{name: "hidrawデバイス", deviceDir: "/dev", path: "/dev/hidraw3", wantID: 3, wantOK: true},
		{name: "複数桁の識別番号", deviceDir: "/dev", path: "/dev/hidraw12", wantID: 12, wantOK: true},
		{name: "番号なし", deviceDir: "/dev", path: "/dev/hidraw", wantOK: false},
		{name: "hidraw以外のノード", deviceDir: "/dev", path: "/dev/ttyS0", wantOK: false},
		{name: "別ディレクトリのノード", deviceDir: "/dev", path: "/tmp/hidraw3", wantOK: false},
		{name: "サブディレクトリのノード", deviceDir: "/dev", path: "/dev/input/hidraw3", wantOK: false},
		{name: "接尾辞つき", deviceDir: "/dev", path: "/dev/hidraw3x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseHidrawID(tt.deviceDir, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}
