package main

import (
	"context"
	"log"

	"mvcamd/internal/acquisition"
	"mvcamd/internal/camera"
	"mvcamd/internal/config"
	"mvcamd/internal/driver"
	"mvcamd/internal/recorder"
	"mvcamd/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
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
	recorderManager := recorder.NewDefaultManager(manager, "recordings", cfg.Recorder)
	if err := recorderManager.Start(ctx); err != nil {
		log.Fatalf("録画マネージャーの起動に失敗しました: %v", err)
	}

	// サーバーを起動（シグナル受信まで待機する）
	srv := server.New(cfg, manager, recorderManager)
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
