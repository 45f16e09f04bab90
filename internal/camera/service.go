package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"sync"
	"time"

	"mvcamd/internal/acquisition"
	"mvcamd/internal/driver"
)

// JPEGエンコードの品質
const jpegQuality = 80

// ErrAlreadyStarted は動作中のカメラを再度開始しようとした場合のエラー
var ErrAlreadyStarted = errors.New("カメラは既に開始されています")

// defaultCameraService は個別カメラの制御を担う実装
type defaultCameraService struct {
	camera   *Camera
	status   Status
	settings Settings
	mu       sync.RWMutex

	// Start/Stopを直列化するロック。転送ゴルーチンはこれを取らない
	opMu sync.Mutex

	drv  driver.Driver
	loop *acquisition.Loop

	// 転送ゴルーチン制御用
	stopCh chan struct{}
	wg     sync.WaitGroup

	// 配信用チャンネル
	frameChan chan []byte
	errorChan chan error

	// 最新フレーム保持用（スナップショット用）
	latestFrame *driver.Frame
	latestJPEG  []byte
	latestMutex sync.RWMutex
}

// NewCameraService は新しいdefaultCameraServiceを作成する
func NewCameraService(camera *Camera, drv driver.Driver, loopOpts acquisition.Options) Service {
	if loopOpts.PlaceholderWidth == 0 {
		loopOpts.PlaceholderWidth = camera.Width
	}
	if loopOpts.PlaceholderHeight == 0 {
		loopOpts.PlaceholderHeight = camera.Height
	}

	return &defaultCameraService{
		camera: camera,
		status: StatusInactive,
		settings: Settings{
			ExposureTimeUS: 10000,
			GainDB:         0,
			FrameRate:      30,
			AutoExposure:   true,
			AutoGain:       true,
			TriggerMode:    TriggerModeOff,
			Width:          camera.Width,
			Height:         camera.Height,
		},
		drv:       drv,
		loop:      acquisition.NewLoop(drv, loopOpts),
		stopCh:    make(chan struct{}),
		frameChan: make(chan []byte, 10),
		errorChan: make(chan error, 5),
	}
}

// Start はカメラサービスを開始する
// 接続、設定適用、取り込み開始、取得ループ開始の順に行う
// Start/StopはopMuで直列化されるため、同時に呼ばれても停止チャンネルの
// closeが競合することはない
func (s *defaultCameraService) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	status := s.status
	settings := s.settings
	s.mu.RUnlock()

	if status == StatusActive {
		return fmt.Errorf("カメラ %s: %w", s.camera.ID, ErrAlreadyStarted)
	}

	// エラー状態からの再開時は前回の転送ゴルーチンを片付ける
	if status == StatusError {
		close(s.stopCh)
		s.wg.Wait()
		s.stopCh = make(chan struct{})
	}

	if !s.drv.IsConnected() {
		if err := s.drv.Connect(ctx, s.camera.Index); err != nil {
			s.setStatus(StatusError)
			return fmt.Errorf("カメラ %s の接続に失敗: %w", s.camera.ID, err)
		}
	}

	if err := s.applySettings(settings); err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("カメラ %s の設定適用に失敗: %w", s.camera.ID, err)
	}

	// エラーからの再開時は取り込みセッションが残っている場合がある
	if !s.drv.IsStreaming() {
		if err := s.drv.StartGrabbing(); err != nil {
			s.setStatus(StatusError)
			return fmt.Errorf("カメラ %s の取り込み開始に失敗: %w", s.camera.ID, err)
		}
	}

	if err := s.loop.Start(); err != nil {
		s.setStatus(StatusError)
		return fmt.Errorf("カメラ %s の取得ループ開始に失敗: %w", s.camera.ID, err)
	}

	// フレーム転送ゴルーチンを開始
	s.wg.Add(1)
	go s.forwardFrames(s.stopCh)

	s.setStatus(StatusActive)
	return nil
}

// Stop はカメラサービスを停止する
// 取得ループの完全な停止を待ってからドライバを解放する
func (s *defaultCameraService) Stop(_ context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.GetStatus() == StatusInactive {
		return nil // 既に停止している
	}

	// 取得ループを停止（Faulted時は既に停止済みのため停止不要）
	if err := s.loop.Stop(); err != nil && !errors.Is(err, acquisition.ErrNotRunning) {
		return fmt.Errorf("カメラ %s の取得ループ停止に失敗: %w", s.camera.ID, err)
	}

	// 転送ゴルーチンを停止
	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = make(chan struct{})

	// ドライバを解放
	if err := s.drv.StopGrabbing(); err != nil {
		return fmt.Errorf("カメラ %s の取り込み停止に失敗: %w", s.camera.ID, err)
	}
	if err := s.drv.Disconnect(); err != nil {
		return fmt.Errorf("カメラ %s の切断に失敗: %w", s.camera.ID, err)
	}

	// スナップショットキャッシュを破棄
	s.latestMutex.Lock()
	s.latestFrame = nil
	s.latestJPEG = nil
	s.latestMutex.Unlock()

	s.setStatus(StatusInactive)
	return nil
}

// setStatus は状態を更新し最終確認時刻を記録する
func (s *defaultCameraService) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
	s.camera.Status = status
	s.camera.LastSeen = time.Now()
}

// GetStatus は現在の状態を取得する
func (s *defaultCameraService) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// GetCamera は現在のカメラ情報のコピーを取得する
func (s *defaultCameraService) GetCamera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.camera
}

// GetSettings は現在の設定を取得する
func (s *defaultCameraService) GetSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings は設定を更新する
func (s *defaultCameraService) UpdateSettings(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateSettings(settings); err != nil {
		return fmt.Errorf("設定が無効: %w", err)
	}

	// 接続中は即時にドライバへ反映する
	if s.drv.IsConnected() {
		if err := s.applySettings(settings); err != nil {
			return fmt.Errorf("設定の適用に失敗: %w", err)
		}
	}

	s.settings = settings
	s.camera.Width = settings.Width
	s.camera.Height = settings.Height

	return nil
}

// GetFrameChannel はJPEGエンコード済みフレームのチャンネルを返す
func (s *defaultCameraService) GetFrameChannel() <-chan []byte {
	return s.frameChan
}

// GetErrorChannel は取得ループのエラーチャンネルを返す
func (s *defaultCameraService) GetErrorChannel() <-chan error {
	return s.errorChan
}

// SnapshotJPEG は最新フレームをJPEGとして取得する
func (s *defaultCameraService) SnapshotJPEG(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != StatusActive {
		return nil, fmt.Errorf("カメラ %s が非アクティブです", s.camera.ID)
	}

	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()

	if s.latestJPEG == nil {
		return nil, fmt.Errorf("フレームがまだ取得されていません")
	}

	data := make([]byte, len(s.latestJPEG))
	copy(data, s.latestJPEG)
	return data, nil
}

// SnapshotPNG は最新フレームをPNGとして取得する
func (s *defaultCameraService) SnapshotPNG(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != StatusActive {
		return nil, fmt.Errorf("カメラ %s が非アクティブです", s.camera.ID)
	}

	s.latestMutex.RLock()
	frame := s.latestFrame
	s.latestMutex.RUnlock()

	if frame == nil {
		return nil, fmt.Errorf("フレームがまだ取得されていません")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.ToImage()); err != nil {
		return nil, fmt.Errorf("PNGエンコードに失敗: %w", err)
	}

	return buf.Bytes(), nil
}

// SoftwareTrigger はソフトウェアトリガーを送信する
func (s *defaultCameraService) SoftwareTrigger(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != StatusActive {
		return fmt.Errorf("カメラ %s が非アクティブです", s.camera.ID)
	}

	if s.settings.TriggerMode != TriggerModeSoftware {
		return fmt.Errorf("カメラ %s はソフトウェアトリガーモードではありません", s.camera.ID)
	}

	return s.drv.SoftwareTrigger()
}

// forwardFrames は取得ループからフレームを転送する
func (s *defaultCameraService) forwardFrames(stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return

		case frame := <-s.loop.Frames():
			data, err := encodeJPEG(frame)
			if err != nil {
				continue
			}

			// 最新フレームを保存（スナップショット用）
			s.latestMutex.Lock()
			s.latestFrame = frame
			s.latestJPEG = data
			s.latestMutex.Unlock()

			// フレームを転送
			select {
			case s.frameChan <- data:
			case <-stopCh:
				return
			default:
				// チャンネルがフルの場合は古いフレームを破棄
				select {
				case <-s.frameChan:
				default:
				}
				select {
				case s.frameChan <- data:
				case <-stopCh:
					return
				}
			}

		case message := <-s.loop.Errors():
			// 取得ループのFaulted遷移。サービスもエラー状態へ
			s.mu.Lock()
			s.status = StatusError
			s.camera.Status = StatusError
			s.mu.Unlock()

			err := fmt.Errorf("取得ループが停止しました: %s", message)
			select {
			case s.errorChan <- err:
			case <-stopCh:
				return
			default:
			}

		case <-s.loop.Statuses():
			// ステータスメッセージは現状では読み捨てる
		}
	}
}

// applySettings は設定をドライバに適用する（ロック済み前提）
func (s *defaultCameraService) applySettings(settings Settings) error {
	autoValue := func(enabled bool) uint32 {
		if enabled {
			return 1
		}
		return 0
	}

	if err := s.drv.SetEnum(driver.ParamExposureAuto, autoValue(settings.AutoExposure)); err != nil {
		return err
	}
	if !settings.AutoExposure {
		if err := s.drv.SetFloat(driver.ParamExposureTime, settings.ExposureTimeUS); err != nil {
			return err
		}
	}

	if err := s.drv.SetEnum(driver.ParamGainAuto, autoValue(settings.AutoGain)); err != nil {
		return err
	}
	if !settings.AutoGain {
		if err := s.drv.SetFloat(driver.ParamGain, settings.GainDB); err != nil {
			return err
		}
	}

	if err := s.drv.SetFloat(driver.ParamFrameRate, settings.FrameRate); err != nil {
		return err
	}

	switch settings.TriggerMode {
	case TriggerModeOff:
		if err := s.drv.SetEnum(driver.ParamTriggerMode, 0); err != nil {
			return err
		}
	case TriggerModeSoftware:
		if err := s.drv.SetEnum(driver.ParamTriggerMode, 1); err != nil {
			return err
		}
		if err := s.drv.SetEnum(driver.ParamTriggerSource, driver.TriggerSourceSoftware); err != nil {
			return err
		}
	case TriggerModeHardware:
		if err := s.drv.SetEnum(driver.ParamTriggerMode, 1); err != nil {
			return err
		}
		if err := s.drv.SetEnum(driver.ParamTriggerSource, driver.TriggerSourceLine1); err != nil {
			return err
		}
	}

	return nil
}

// validateSettings は設定値の妥当性を検証する
func (s *defaultCameraService) validateSettings(settings Settings) error {
	if settings.ExposureTimeUS < 1 || settings.ExposureTimeUS > 1000000 {
		return fmt.Errorf("無効な露光時間: %v", settings.ExposureTimeUS)
	}

	if settings.GainDB < 0 || settings.GainDB > 24 {
		return fmt.Errorf("無効なゲイン: %v", settings.GainDB)
	}

	if settings.FrameRate < 0.1 || settings.FrameRate > 1000 {
		return fmt.Errorf("無効なフレームレート: %v", settings.FrameRate)
	}

	if settings.Width <= 0 || settings.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", settings.Width)
	}

	if settings.Height <= 0 || settings.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", settings.Height)
	}

	switch settings.TriggerMode {
	case TriggerModeOff, TriggerModeSoftware, TriggerModeHardware:
	default:
		return fmt.Errorf("無効なトリガーモード: %s", settings.TriggerMode)
	}

	return nil
}

// encodeJPEG はフレームをJPEGにエンコードする
func encodeJPEG(frame *driver.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.ToImage(), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MockCameraService はテスト用のモックサービス実装
type MockCameraService struct {
	camera   *Camera
	status   Status
	settings Settings
	mu       sync.RWMutex

	frameChan chan []byte
	errorChan chan error

	snapshotJPEG []byte
	snapshotPNG  []byte

	// テスト制御用
	shouldFailStart bool
	shouldFailStop  bool
	triggerCount    int
}

// NewMockCameraService は新しいMockCameraServiceを作成する
func NewMockCameraService(camera *Camera) *MockCameraService {
	return &MockCameraService{
		camera: camera,
		status: StatusInactive,
		settings: Settings{
			ExposureTimeUS: 10000,
			FrameRate:      30,
			AutoExposure:   true,
			AutoGain:       true,
			TriggerMode:    TriggerModeOff,
			Width:          camera.Width,
			Height:         camera.Height,
		},
		frameChan: make(chan []byte, 10),
		errorChan: make(chan error, 5),
	}
}

// Start はモックカメラサービスを開始する
func (m *MockCameraService) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusActive {
		return fmt.Errorf("カメラ %s: %w", m.camera.ID, ErrAlreadyStarted)
	}

	if m.shouldFailStart {
		m.status = StatusError
		return fmt.Errorf("モック: カメラ開始に失敗")
	}

	m.status = StatusActive
	m.camera.Status = StatusActive
	m.camera.LastSeen = time.Now()
	return nil
}

// Stop はモックカメラサービスを停止する
func (m *MockCameraService) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailStop {
		return fmt.Errorf("モック: カメラ停止に失敗")
	}

	m.status = StatusInactive
	m.camera.Status = StatusInactive
	m.camera.LastSeen = time.Now()
	return nil
}

// GetStatus は現在の状態を取得する
func (m *MockCameraService) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetCamera は現在のカメラ情報のコピーを取得する
func (m *MockCameraService) GetCamera() Camera {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.camera
}

// GetSettings は現在の設定を取得する
func (m *MockCameraService) GetSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings は設定を更新する
func (m *MockCameraService) UpdateSettings(_ context.Context, settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = settings
	m.camera.Width = settings.Width
	m.camera.Height = settings.Height
	return nil
}

// GetFrameChannel はフレームチャンネルを返す
func (m *MockCameraService) GetFrameChannel() <-chan []byte {
	return m.frameChan
}

// GetErrorChannel はエラーチャンネルを返す
func (m *MockCameraService) GetErrorChannel() <-chan error {
	return m.errorChan
}

// SnapshotJPEG は設定済みのJPEGデータを返す
func (m *MockCameraService) SnapshotJPEG(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.status != StatusActive {
		return nil, fmt.Errorf("カメラ %s が非アクティブです", m.camera.ID)
	}
	if m.snapshotJPEG == nil {
		return nil, fmt.Errorf("フレームがまだ取得されていません")
	}
	return m.snapshotJPEG, nil
}

// SnapshotPNG は設定済みのPNGデータを返す
func (m *MockCameraService) SnapshotPNG(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.status != StatusActive {
		return nil, fmt.Errorf("カメラ %s が非アクティブです", m.camera.ID)
	}
	if m.snapshotPNG == nil {
		return nil, fmt.Errorf("フレームがまだ取得されていません")
	}
	return m.snapshotPNG, nil
}

// SoftwareTrigger はトリガー送信を記録する
func (m *MockCameraService) SoftwareTrigger(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusActive {
		return fmt.Errorf("カメラ %s が非アクティブです", m.camera.ID)
	}

	m.triggerCount++
	return nil
}

// PushFrame はテスト用にフレームを配信する
func (m *MockCameraService) PushFrame(data []byte) {
	select {
	case m.frameChan <- data:
	default:
	}
}

// SetSnapshot はテスト用にスナップショットデータを設定する
func (m *MockCameraService) SetSnapshot(jpegData, pngData []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotJPEG = jpegData
	m.snapshotPNG = pngData
}

// TriggerCount はSoftwareTriggerが呼ばれた回数を返す
func (m *MockCameraService) TriggerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.triggerCount
}

// SetShouldFailStart はテスト用にStart失敗を設定する
func (m *MockCameraService) SetShouldFailStart(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailStart = shouldFail
}

// SetShouldFailStop はテスト用にStop失敗を設定する
func (m *MockCameraService) SetShouldFailStop(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailStop = shouldFail
}
