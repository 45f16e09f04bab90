package driver

import (
	"context"
	"sync"
	"time"
)

// fetchResult はMockDriverのFetchFrame応答1件を表す
type fetchResult struct {
	frame *Frame
	err   error
}

// MockDriver はテスト用のモックDriver実装
// 応答をキューに積むことでFetchFrameの挙動をテスト側から制御できる
type MockDriver struct {
	mu sync.Mutex

	connected bool
	streaming bool

	floats map[FloatParam]float64
	enums  map[EnumParam]uint32

	// FetchFrameの応答キュー。空のときはdefaultResultを返す
	queue         []fetchResult
	defaultResult fetchResult

	// FetchFrame内で疑似的にブロックする時間
	fetchDelay time.Duration

	connectErr       error
	startGrabbingErr error

	fetchCount   int
	triggerCount int
}

// NewMockDriver は新しいMockDriverを作成する
// 初期状態は未接続で、FetchFrameはErrNoDataを返す
func NewMockDriver() *MockDriver {
	return &MockDriver{
		floats:        make(map[FloatParam]float64),
		enums:         make(map[EnumParam]uint32),
		defaultResult: fetchResult{err: ErrNoData},
	}
}

// TestFrame はテスト用の単色フレームを作成する
func TestFrame(width, height int, value byte) *Frame {
	pix := make([]byte, width*height*3)
	for i := range pix {
		pix[i] = value
	}

	return &Frame{
		Width:     width,
		Height:    height,
		Channels:  3,
		Pix:       pix,
		Timestamp: time.Now(),
	}
}

// QueueFrame は次のFetchFrame応答としてフレームを積む
func (m *MockDriver) QueueFrame(frame *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fetchResult{frame: frame})
}

// QueueError は次のFetchFrame応答としてエラーを積む
func (m *MockDriver) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fetchResult{err: err})
}

// SetDefaultFrame はキューが空のときに返すフレームを設定する
func (m *MockDriver) SetDefaultFrame(frame *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResult = fetchResult{frame: frame}
}

// SetDefaultError はキューが空のときに返すエラーを設定する
func (m *MockDriver) SetDefaultError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResult = fetchResult{err: err}
}

// SetFetchDelay はFetchFrameの疑似ブロック時間を設定する
func (m *MockDriver) SetFetchDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchDelay = delay
}

// SetStreaming は取り込み状態を直接設定する
func (m *MockDriver) SetStreaming(streaming bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming = streaming
}

// SetConnectError はConnectが返すエラーを設定する
func (m *MockDriver) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetStartGrabbingError はStartGrabbingが返すエラーを設定する
func (m *MockDriver) SetStartGrabbingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startGrabbingErr = err
}

// FetchCount はFetchFrameが呼ばれた回数を返す
func (m *MockDriver) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCount
}

// TriggerCount はSoftwareTriggerが呼ばれた回数を返す
func (m *MockDriver) TriggerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggerCount
}

// Connect はモックの接続を行う
func (m *MockDriver) Connect(_ context.Context, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return m.connectErr
	}

	m.connected = true
	return nil
}

// Disconnect はモックの切断を行う
func (m *MockDriver) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.streaming = false
	return nil
}

// IsConnected は接続状態を返す
func (m *MockDriver) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// StartGrabbing は取り込みを開始する
func (m *MockDriver) StartGrabbing() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startGrabbingErr != nil {
		return m.startGrabbingErr
	}

	m.streaming = true
	return nil
}

// StopGrabbing は取り込みを停止する
func (m *MockDriver) StopGrabbing() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.streaming = false
	return nil
}

// IsStreaming は取り込み状態を返す
func (m *MockDriver) IsStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// FetchFrame はキューまたはデフォルト応答を返す
func (m *MockDriver) FetchFrame(_ time.Duration) (*Frame, error) {
	m.mu.Lock()

	m.fetchCount++
	result := m.defaultResult
	if len(m.queue) > 0 {
		result = m.queue[0]
		m.queue = m.queue[1:]
	}
	delay := m.fetchDelay

	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	return result.frame, result.err
}

// SetFloat は浮動小数点パラメータを記録する
func (m *MockDriver) SetFloat(name FloatParam, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.floats[name] = value
	return nil
}

// GetFloat は記録された浮動小数点パラメータを返す
func (m *MockDriver) GetFloat(name FloatParam) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.floats[name], nil
}

// SetEnum は列挙型パラメータを記録する
func (m *MockDriver) SetEnum(name EnumParam, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enums[name] = value
	return nil
}

// GetEnum は記録された列挙型パラメータを返す
func (m *MockDriver) GetEnum(name EnumParam) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.enums[name], nil
}

// SoftwareTrigger は呼び出し回数を記録する
func (m *MockDriver) SoftwareTrigger() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.triggerCount++
	return nil
}
