package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SimDriver はシミュレーションカメラのDriver実装
// 決定的なテストパターンを生成し、実機と同じ呼び出し順序の制約を課す
type SimDriver struct {
	mu sync.Mutex

	width  int
	height int

	index     int
	connected bool
	streaming bool

	floats map[FloatParam]float64
	enums  map[EnumParam]uint32

	// トリガーモード有効時はSoftwareTriggerが来るまでフレームを出さない
	triggerPending bool

	seq uint64
}

// NewSimDriver は新しいSimDriverを作成する
func NewSimDriver(width, height int) *SimDriver {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}

	return &SimDriver{
		width:  width,
		height: height,
		floats: map[FloatParam]float64{
			ParamExposureTime: 10000, // 10ms
			ParamGain:         0,
			ParamFrameRate:    30,
		},
		enums: map[EnumParam]uint32{
			ParamExposureAuto:  1,
			ParamGainAuto:      1,
			ParamTriggerMode:   0,
			ParamTriggerSource: TriggerSourceSoftware,
		},
	}
}

// Connect はシミュレーションデバイスへ接続する
func (d *SimDriver) Connect(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return statusError("MV_CC_OpenDevice", StatusCallOrder)
	}
	if index < 0 {
		return statusError("MV_CC_OpenDevice", StatusParameter)
	}

	d.index = index
	d.connected = true
	return nil
}

// Disconnect はデバイスから切断する
func (d *SimDriver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.streaming = false
	d.connected = false
	d.triggerPending = false
	return nil
}

// IsConnected は接続状態を返す
func (d *SimDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// StartGrabbing は取り込みセッションを開始する
func (d *SimDriver) StartGrabbing() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if d.streaming {
		return statusError("MV_CC_StartGrabbing", StatusCallOrder)
	}

	d.streaming = true
	return nil
}

// StopGrabbing は取り込みセッションを停止する
func (d *SimDriver) StopGrabbing() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.streaming = false
	d.triggerPending = false
	return nil
}

// IsStreaming は取り込みセッションが有効かを返す
func (d *SimDriver) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// FetchFrame はタイムアウト付きで1フレームを取得する
func (d *SimDriver) FetchFrame(timeout time.Duration) (*Frame, error) {
	d.mu.Lock()

	if !d.connected {
		d.mu.Unlock()
		return nil, ErrNotConnected
	}
	if !d.streaming {
		d.mu.Unlock()
		return nil, ErrNotStreaming
	}

	// トリガーモード有効時はトリガーが来るまでデータなし
	if d.enums[ParamTriggerMode] == 1 && !d.triggerPending {
		d.mu.Unlock()
		time.Sleep(timeout)
		return nil, ErrNoData
	}

	d.triggerPending = false
	frame := d.makeFrame()
	d.mu.Unlock()

	return frame, nil
}

// makeFrame は決定的なテストパターンを生成する（ロック済み前提）
// 横方向グラデーション + フレーム番号に応じて移動する縦バー
func (d *SimDriver) makeFrame() *Frame {
	w, h := d.width, d.height
	pix := make([]byte, w*h*3)
	bar := int(d.seq % uint64(w))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i+0] = byte(x * 255 / w)
			pix[i+1] = byte(y * 255 / h)
			if x == bar {
				pix[i+2] = 0xff
			}
		}
	}

	d.seq++

	return &Frame{
		Width:     w,
		Height:    h,
		Channels:  3,
		Pix:       pix,
		Timestamp: time.Now(),
	}
}

// SetFloat は浮動小数点パラメータを設定する
func (d *SimDriver) SetFloat(name FloatParam, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if _, ok := d.floats[name]; !ok {
		return statusError("MV_CC_SetFloatValue", StatusNotSupported)
	}

	d.floats[name] = value
	return nil
}

// GetFloat は浮動小数点パラメータを取得する
func (d *SimDriver) GetFloat(name FloatParam) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return 0, ErrNotConnected
	}
	value, ok := d.floats[name]
	if !ok {
		return 0, statusError("MV_CC_GetFloatValue", StatusNotSupported)
	}

	return value, nil
}

// SetEnum は列挙型パラメータを設定する
func (d *SimDriver) SetEnum(name EnumParam, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if _, ok := d.enums[name]; !ok {
		return statusError("MV_CC_SetEnumValue", StatusNotSupported)
	}

	d.enums[name] = value
	return nil
}

// GetEnum は列挙型パラメータを取得する
func (d *SimDriver) GetEnum(name EnumParam) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return 0, ErrNotConnected
	}
	value, ok := d.enums[name]
	if !ok {
		return 0, statusError("MV_CC_GetEnumValue", StatusNotSupported)
	}

	return value, nil
}

// SoftwareTrigger はソフトウェアトリガーを送信する
func (d *SimDriver) SoftwareTrigger() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if d.enums[ParamTriggerMode] != 1 {
		return statusError("MV_CC_SetCommandValue", StatusCallOrder)
	}

	d.triggerPending = true
	return nil
}

// SimEnumerator はシミュレーションデバイスの列挙を実装する
type SimEnumerator struct {
	count int
}

// NewSimEnumerator は指定台数のシミュレーションデバイスを列挙するEnumeratorを作成する
func NewSimEnumerator(count int) *SimEnumerator {
	if count < 0 {
		count = 0
	}
	return &SimEnumerator{count: count}
}

// Enumerate はシミュレーションデバイス一覧を返す
func (e *SimEnumerator) Enumerate(ctx context.Context) ([]DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	devices := make([]DeviceInfo, 0, e.count)
	for i := 0; i < e.count; i++ {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      fmt.Sprintf("MvCam Simulator %d", i),
			Serial:    fmt.Sprintf("SIM%06d", i),
			Transport: "USB3.0",
		})
	}

	return devices, nil
}
