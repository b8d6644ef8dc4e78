package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Watch   WatchConfig   `toml:"watch"`
	Inhibit InhibitConfig `toml:"inhibit"`
	Paths   PathsConfig   `toml:"paths"`
}

// WatchConfig はデバイスノード監視の設定
type WatchConfig struct {
	DeviceDir   string        `toml:"device_dir"`   // hidrawノードを監視するディレクトリ
	SettleDelay time.Duration `toml:"settle_delay"` // デバイス検出後にサブノードの列挙を待つ時間
}

// InhibitConfig は入力抑制の設定
type InhibitConfig struct {
	TargetProcess  string   `toml:"target_process"`  // 抑制のトリガーとなるプロセス名
	AllowedDrivers []string `toml:"allowed_drivers"` // 抑制対象とするドライバ名の一覧
}

// PathsConfig はシステムパスの設定
type PathsConfig struct {
	SysfsHidraw string `toml:"sysfs_hidraw"` // hidrawクラスのsysfsパス
	Proc        string `toml:"proc"`         // procfsのパス
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			DeviceDir:   "/dev",
			SettleDelay: 250 * time.Millisecond,
		},
		Inhibit: InhibitConfig{
			TargetProcess:  "steam",
			AllowedDrivers: []string{"sony", "playstation"},
		},
		Paths: PathsConfig{
			SysfsHidraw: "/sys/class/hidraw",
			Proc:        "/proc",
		},
	}
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 設定ディレクトリの作成
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return config, err
		}

		// デフォルト設定の保存
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}

		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "hidraw-inhibit"), nil
}
