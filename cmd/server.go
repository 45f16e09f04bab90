// Package main はmvcamdサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"mvcamd/internal/acquisition"
	"mvcamd/internal/camera"
	"mvcamd/internal/config"
	"mvcamd/internal/driver"
	"mvcamd/internal/recorder"
	"mvcamd/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		simulation = flag.Bool("simulation", false, "シミュレーションドライバを使用")
		outputDir  = flag.String("output", "recordings", "録画ファイルの出力ディレクトリ")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("mvcamd")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// シミュレーション指定は設定読み込みより先に反映する
	if *simulation {
		if err := os.Setenv("MVCAM_SIMULATION", "1"); err != nil {
			log.Fatalf("環境変数の設定に失敗しました: %v", err)
		}
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// ドライバファクトリーを作成
	factory := driver.NewFactory()
	kind := driver.Kind(cfg.DriverKind())

	enumerator, err := factory.Enumerator(kind)
	if err != nil {
		log.Fatalf("ドライバの取得に失敗しました: %v", err)
	}

	// カメラマネージャーを作成
	discovery := camera.NewDriverDiscovery(enumerator)
	creator := camera.NewDriverServiceCreator(factory, kind, acquisition.Options{
		TickInterval:      cfg.Camera.PollInterval,
		FetchTimeout:      cfg.Camera.FetchTimeout,
		PlaceholderWidth:  cfg.Camera.DefaultWidth,
		PlaceholderHeight: cfg.Camera.DefaultHeight,
	})
	manager := camera.NewDefaultCameraManager(discovery, creator, camera.Settings{
		ExposureTimeUS: cfg.Camera.DefaultExposureUS,
		GainDB:         cfg.Camera.DefaultGainDB,
		FrameRate:      cfg.Camera.DefaultFPS,
		AutoExposure:   true,
		AutoGain:       true,
		TriggerMode:    camera.TriggerModeOff,
		Width:          cfg.Camera.DefaultWidth,
		Height:         cfg.Camera.DefaultHeight,
	})

	ctx := context.Background()

	if err := manager.Start(ctx); err != nil {
		log.Fatalf("カメラマネージャーの起動に失敗しました: %v", err)
	}

	// 録画マネージャーを作成
	recorderManager := recorder.NewDefaultManager(manager, *outputDir, cfg.Recorder)
	if err := recorderManager.Start(ctx); err != nil {
		log.Fatalf("録画マネージャーの起動に失敗しました: %v", err)
	}

	// サーバーを起動（シグナル受信まで待機する）
	srv := server.New(cfg, manager, recorderManager)
	log.Printf("mvcamd サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// 後片付け
	if err := recorderManager.Stop(ctx); err != nil {
		log.Printf("録画マネージャーの停止に失敗しました: %v", err)
	}
	if err := manager.Stop(ctx); err != nil {
		log.Printf("カメラマネージャーの停止に失敗しました: %v", err)
	}
}
