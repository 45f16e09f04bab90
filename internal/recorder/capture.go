package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mvcamd/internal/camera"
)

// Capture は録画のキャプチャサイクルを管理する
type Capture struct {
	frameBuffer   []CombinedFrame // 結合フレーム保存
	outputDir     string          // 動画出力先
	currentVideo  string          // 現在の動画ファイル
	lastUpdate    time.Time       // 最後の動画更新時刻
	config        Config          // 設定
	cameraManager camera.Manager

	// 制御用
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex

	// フレーム結合・動画生成用
	frameComposer  *FrameComposer
	videoGenerator *VideoGenerator
}

// NewCapture は新しいCaptureを作成する
func NewCapture(outputDir string, config Config, cameraManager camera.Manager) *Capture {
	return &Capture{
		frameBuffer:    make([]CombinedFrame, 0, config.MaxFrameBuffer),
		outputDir:      outputDir,
		config:         config,
		cameraManager:  cameraManager,
		stopCh:         make(chan struct{}),
		frameComposer:  NewFrameComposer(config.Resolution.Width, config.Resolution.Height, config.Quality),
		videoGenerator: NewVideoGenerator(),
	}
}

// Start は録画キャプチャを開始する
func (rc *Capture) Start(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// 出力ディレクトリを作成
	if err := os.MkdirAll(rc.outputDir, 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	// フレーム撮影を開始
	rc.wg.Add(1)
	go rc.captureFrames(ctx)

	// 動画更新スケジューラーを開始
	rc.wg.Add(1)
	go rc.videoUpdateScheduler(ctx)

	log.Printf("録画キャプチャを開始しました: %s", rc.outputDir)
	return nil
}

// Stop は録画キャプチャを停止する
func (rc *Capture) Stop(ctx context.Context) error {
	// ワーカーがロックを取る場合があるため、待機中はロックを持たない
	rc.mu.Lock()
	close(rc.stopCh)
	rc.mu.Unlock()

	// ワーカーゴルーチンの終了を短いタイムアウトで待機
	done := make(chan struct{})
	go func() {
		rc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		rc.mu.RLock()
		remaining := len(rc.frameBuffer)
		rc.mu.RUnlock()
		if remaining > 0 {
			log.Printf("シャットダウン時に %d フレームのバッファが残りました", remaining)
		}
	case <-time.After(3 * time.Second):
		log.Printf("ワーカーゴルーチンの停止がタイムアウトしました")
	case <-ctx.Done():
		log.Printf("コンテキストがキャンセルされました。停止処理を中断します")
	}

	log.Println("録画キャプチャを停止しました")
	return nil
}

// captureFrames はフレームを定期的にキャプチャする
func (rc *Capture) captureFrames(ctx context.Context) {
	defer rc.wg.Done()

	ticker := time.NewTicker(rc.config.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.stopCh:
			return
		case <-ticker.C:
			if err := rc.captureFrame(ctx); err != nil {
				// アクティブなカメラが無い間は定常的に失敗するためログは出さない
				continue
			}
		}
	}
}

// captureFrame は1つの結合フレームをキャプチャしてバッファに追加する
func (rc *Capture) captureFrame(ctx context.Context) error {
	combinedFrame, err := rc.frameComposer.ComposeFrames(ctx, rc.cameraManager)
	if err != nil {
		return fmt.Errorf("フレーム結合に失敗: %w", err)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.frameBuffer = append(rc.frameBuffer, combinedFrame)

	// バッファサイズ制限をチェック（FIFO）
	if len(rc.frameBuffer) > rc.config.MaxFrameBuffer {
		rc.frameBuffer = rc.frameBuffer[1:]
	}

	return nil
}

// videoUpdateScheduler は動画更新のスケジューリングを行う
// 定期更新、日次ローテーション、保持期間の掃除を担当する
func (rc *Capture) videoUpdateScheduler(ctx context.Context) {
	defer rc.wg.Done()

	ticker := time.NewTicker(rc.config.UpdateInterval)
	defer ticker.Stop()

	// 日次ローテーションのためのタイマー
	nextMidnight := rc.getNextMidnight()
	midnightTimer := time.NewTimer(time.Until(nextMidnight))
	defer midnightTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.stopCh:
			return
		case <-ticker.C:
			if err := rc.updateVideo(); err != nil {
				log.Printf("動画更新エラー: %v", err)
			}
		case <-midnightTimer.C:
			// 日次ローテーション
			if err := rc.rotateVideo(); err != nil {
				log.Printf("動画ローテーションエラー: %v", err)
			}
			// 古い録画を掃除
			if err := rc.cleanupOldRecordings(); err != nil {
				log.Printf("録画の掃除エラー: %v", err)
			}
			nextMidnight = rc.getNextMidnight()
			midnightTimer.Reset(time.Until(nextMidnight))
		}
	}
}

// updateVideo は現在のフレームバッファから動画を更新する
func (rc *Capture) updateVideo() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.updateVideoLocked()
}

// updateVideoLocked は動画更新の本体（ロック済み前提）
func (rc *Capture) updateVideoLocked() error {
	if len(rc.frameBuffer) == 0 {
		return nil // フレームがない場合はスキップ
	}

	if rc.currentVideo == "" {
		rc.currentVideo = rc.generateVideoFilename(time.Now())
	}

	videoPath := filepath.Join(rc.outputDir, rc.currentVideo)

	if err := rc.videoGenerator.ExtendVideo(videoPath, rc.frameBuffer, rc.config); err != nil {
		return fmt.Errorf("動画の延長に失敗: %w", err)
	}

	rc.frameBuffer = rc.frameBuffer[:0]
	rc.lastUpdate = time.Now()

	return nil
}

// rotateVideo は日次ローテーションを実行する
func (rc *Capture) rotateVideo() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// 最終更新を実行
	if len(rc.frameBuffer) > 0 {
		if err := rc.updateVideoLocked(); err != nil {
			log.Printf("ローテーション前の最終更新に失敗: %v", err)
		}
	}

	// 新しい動画ファイル名を設定
	rc.currentVideo = rc.generateVideoFilename(time.Now())

	log.Printf("日次ローテーション実行: %s", rc.currentVideo)
	return nil
}

// cleanupOldRecordings は保持期間を過ぎた録画ファイルを削除する
func (rc *Capture) cleanupOldRecordings() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.config.RetentionDays <= 0 {
		return nil // 無制限
	}

	cutoff := time.Now().AddDate(0, 0, -rc.config.RetentionDays)

	entries, err := os.ReadDir(rc.outputDir)
	if err != nil {
		return fmt.Errorf("ディレクトリの読み取りに失敗: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "."+rc.config.OutputFormat) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) && entry.Name() != rc.currentVideo {
			path := filepath.Join(rc.outputDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("録画ファイルの削除に失敗 (%s): %v", entry.Name(), err)
				continue
			}
			log.Printf("保持期間を過ぎた録画を削除しました: %s", entry.Name())
		}
	}

	return nil
}

// generateVideoFilename は動画ファイル名を生成する
func (rc *Capture) generateVideoFilename(t time.Time) string {
	dateStr := t.Format("2006-01-02")
	return fmt.Sprintf("recording_%s.%s", dateStr, rc.config.OutputFormat)
}

// getNextMidnight は次の0時の時刻を取得する
func (rc *Capture) getNextMidnight() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// GetRecordings は録画ファイル一覧を取得する
func (rc *Capture) GetRecordings() ([]Recording, error) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	var recordings []Recording

	entries, err := os.ReadDir(rc.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return recordings, nil // ディレクトリが存在しない場合は空のリストを返す
		}
		return nil, fmt.Errorf("ディレクトリの読み取りに失敗: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != "."+rc.config.OutputFormat {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("ファイル情報の取得に失敗: %v", err)
			continue
		}

		recordings = append(recordings, Recording{
			FilePath:    filepath.Join(rc.outputDir, entry.Name()),
			FileSize:    info.Size(),
			Date:        info.ModTime(),
			Status:      rc.determineStatus(entry.Name()),
			CameraCount: len(rc.cameraManager.GetCameras()),
		})
	}

	return recordings, nil
}

// determineStatus は録画ファイルのステータスを判定する
func (rc *Capture) determineStatus(filename string) Status {
	if rc.currentVideo == filename {
		return StatusRecording
	}
	return StatusCompleted
}

// CaptureStatus はキャプチャの現在状態
type CaptureStatus struct {
	CurrentVideo    string
	FrameBufferSize int
	LastUpdate      time.Time
}

// GetStatus は現在の状態を取得する
func (rc *Capture) GetStatus() CaptureStatus {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	return CaptureStatus{
		CurrentVideo:    rc.currentVideo,
		FrameBufferSize: len(rc.frameBuffer),
		LastUpdate:      rc.lastUpdate,
	}
}
