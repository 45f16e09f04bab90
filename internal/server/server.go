package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mvcamd/internal/camera"
	"mvcamd/internal/config"
	"mvcamd/internal/recorder"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	handler    *Handler
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, cameraManager camera.Manager, recorderManager recorder.Manager) *Server {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	return &Server{
		config:  cfg,
		handler: NewHandler(cfg, cameraManager, recorderManager),
		engine:  engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handler.HealthCheck)

	// APIエンドポイント
	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handler.GetStatus)

		api.GET("/cameras", s.handler.GetCameras)
		api.POST("/cameras/discover", s.handler.DiscoverCameras)
		api.GET("/cameras/:id", s.handler.GetCamera)
		api.POST("/cameras/:id/start", s.handler.StartCamera)
		api.POST("/cameras/:id/stop", s.handler.StopCamera)
		api.GET("/cameras/:id/settings", s.handler.GetCameraSettings)
		api.PUT("/cameras/:id/settings", s.handler.UpdateCameraSettings)
		api.POST("/cameras/:id/trigger", s.handler.TriggerCamera)
		api.GET("/cameras/:id/snapshot", s.handler.GetCameraSnapshot)
		api.GET("/cameras/:id/stream", s.handler.GetCameraStream)
		api.GET("/cameras/:id/ws", s.handler.GetCameraWebSocket)

		api.GET("/recordings", s.handler.GetRecordings)
		api.GET("/recorder/status", s.handler.GetRecorderStatus)
	}
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// ルートを設定
	s.setupRoutes()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
