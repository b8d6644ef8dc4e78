package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/browser"

	"github.com/char5742/hidraw-inhibit/internal/api"
	"github.com/char5742/hidraw-inhibit/internal/config"
)

func main() {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "APIサーバーモードで起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	open := flag.Bool("open", false, "APIサーバーの起動後にステータスページをブラウザで開きます")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// APIモードかCLIモードかを判断
	if *useApi {
		// APIモードで実行
		fmt.Printf("APIサーバーモードで起動します (ポート: %d)...\n", *port)
		runApiServer(cfg, *port, *open)
	} else {
		// CLIモードで実行
		fmt.Println("CLIモードで起動します...")
		runCLI(cfg, cfgPath)
	}
}

// APIサーバーモードでの実行
func runApiServer(cfg *config.Config, port int, open bool) {
	// APIサーバーを作成
	server := api.NewServer(cfg, port)

	if open {
		go func() {
			// サーバーの起動を少し待ってからブラウザで開く
			time.Sleep(500 * time.Millisecond)
			url := fmt.Sprintf("http://localhost:%d/api/service/status", port)
			if err := browser.OpenURL(url); err != nil {
				log.Printf("ブラウザを開けませんでした: %v", err)
			}
		}()
	}

	// サーバー起動
	if err := server.Start(); err != nil {
		log.Fatalf("APIサーバーの起動に失敗しました: %v", err)
	}
}

// CLIモードでの実行
func runCLI(cfg *config.Config, cfgPath string) {
	// 入力抑制サービスを作成
	service := api.NewInhibitService(cfg)

	// サービス開始
	if err := service.Start(); err != nil {
		fmt.Printf("入力抑制サービスの起動に失敗しました: %v\n", err)
		os.Exit(1)
	}

	// 設定ファイルの変更を監視して動作中のサービスに反映する
	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, service.UpdateConfig)
		if err != nil {
			log.Printf("設定ファイルの監視を開始できませんでした: %v", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	// シグナルハンドラの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// シグナルかイベントループの終了まで待機
	select {
	case <-sigChan:
		fmt.Println("シャットダウンします...")
		if err := service.Stop(); err != nil {
			log.Printf("サービスの停止に失敗しました: %v", err)
		}
	case <-service.Done():
		// 通知元が閉じられた場合もループ側で復元処理は完了している
	}
}
