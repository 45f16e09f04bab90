package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"mvcamd/internal/camera"
)

// Manager は録画機能全体を管理するインターフェース
type Manager interface {
	// システム制御
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// データ取得
	GetRecordings() ([]Recording, error)
	GetRecorderStatus() (StatusInfo, error)

	// 設定取得
	GetConfig() Config
}

// StatusInfo は録画システムの状態情報
type StatusInfo struct {
	Enabled         bool      `json:"enabled"`
	ActiveCameras   int       `json:"active_cameras"`
	TotalRecordings int       `json:"total_recordings"`
	StorageUsed     int64     `json:"storage_used"`
	CurrentVideo    string    `json:"current_video"`
	FrameBufferSize int       `json:"frame_buffer_size"`
	LastUpdate      time.Time `json:"last_update"`
}

// DefaultManager はRecorder Managerのデフォルト実装
type DefaultManager struct {
	cameraManager camera.Manager
	capture       *Capture
	config        Config
	outputDir     string
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewDefaultManager は新しいDefaultManagerを作成する
func NewDefaultManager(cameraManager camera.Manager, outputDir string, config Config) *DefaultManager {
	return &DefaultManager{
		cameraManager: cameraManager,
		outputDir:     outputDir,
		config:        config,
	}
}

// Start は録画機能を開始する
func (m *DefaultManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Enabled {
		log.Println("録画機能は無効です")
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	// 出力ディレクトリを作成
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	// キャプチャを作成して開始
	// カメラが後から追加される場合もあるため、アクティブなカメラの有無は問わない
	m.capture = NewCapture(m.outputDir, m.config, m.cameraManager)

	if err := m.capture.Start(m.ctx); err != nil {
		return fmt.Errorf("録画キャプチャの開始に失敗: %w", err)
	}

	log.Println("録画マネージャーを開始しました")
	return nil
}

// Stop は録画機能を停止する
func (m *DefaultManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	if m.capture != nil {
		if err := m.capture.Stop(ctx); err != nil {
			log.Printf("録画停止に失敗: %v", err)
		}
		m.capture = nil
	}

	log.Println("録画マネージャーを停止しました")
	return nil
}

// GetRecordings は録画ファイル一覧を取得する
func (m *DefaultManager) GetRecordings() ([]Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.capture == nil {
		return []Recording{}, nil
	}

	return m.capture.GetRecordings()
}

// GetRecorderStatus は録画システムの状態を取得する
func (m *DefaultManager) GetRecorderStatus() (StatusInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := StatusInfo{
		Enabled: m.config.Enabled,
	}

	if m.capture != nil {
		recordings, err := m.capture.GetRecordings()
		if err == nil {
			status.TotalRecordings = len(recordings)

			// ストレージ使用量を計算
			for _, recording := range recordings {
				status.StorageUsed += recording.FileSize
			}
		}

		captureStatus := m.capture.GetStatus()
		status.CurrentVideo = captureStatus.CurrentVideo
		status.FrameBufferSize = captureStatus.FrameBufferSize
		status.LastUpdate = captureStatus.LastUpdate
	}

	// アクティブカメラ数を取得
	for _, cam := range m.cameraManager.GetCameras() {
		if cam.Status == camera.StatusActive {
			status.ActiveCameras++
		}
	}

	return status, nil
}

// GetConfig は設定を取得する
func (m *DefaultManager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}
