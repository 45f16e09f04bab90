package driver

import (
	"context"
	"image"
	"time"
)

// FloatParam はカメラの浮動小数点パラメータ名を表す
type FloatParam string

// SDKが定義するGenICamパラメータ名
const (
	ParamExposureTime FloatParam = "ExposureTime"         // 露光時間（マイクロ秒）
	ParamGain         FloatParam = "Gain"                 // ゲイン（dB）
	ParamFrameRate    FloatParam = "AcquisitionFrameRate" // フレームレート（fps）
)

// EnumParam はカメラの列挙型パラメータ名を表す
type EnumParam string

// 列挙型パラメータ名
const (
	ParamExposureAuto  EnumParam = "ExposureAuto"  // 自動露光 (0=off, 1=on)
	ParamGainAuto      EnumParam = "GainAuto"      // 自動ゲイン (0=off, 1=on)
	ParamTriggerMode   EnumParam = "TriggerMode"   // トリガーモード (0=off, 1=on)
	ParamTriggerSource EnumParam = "TriggerSource" // トリガーソース
)

// トリガーソースの値
const (
	TriggerSourceSoftware uint32 = 0
	TriggerSourceLine1    uint32 = 1
	TriggerSourceLine2    uint32 = 2
	TriggerSourceLine3    uint32 = 3
)

// Frame はカメラから取得した1枚の画像スナップショット
// 生成後は不変として扱い、共有する場合は必ずCloneを使う
type Frame struct {
	Width     int       // 画像幅（ピクセル）
	Height    int       // 画像高さ（ピクセル）
	Channels  int       // チャンネル数（1=グレースケール, 3=RGB）
	Pix       []byte    // 画素データ（行優先、インターリーブ）
	Timestamp time.Time // 取得時刻
}

// Clone はフレームの完全なコピーを返す
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)

	return &Frame{
		Width:     f.Width,
		Height:    f.Height,
		Channels:  f.Channels,
		Pix:       pix,
		Timestamp: f.Timestamp,
	}
}

// ToImage はフレームを標準ライブラリのimage.Imageに変換する
func (f *Frame) ToImage() image.Image {
	if f.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
		copy(img.Pix, f.Pix)
		return img
	}

	// RGB -> RGBA に展開する
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i < f.Width*f.Height; i++ {
		img.Pix[i*4+0] = f.Pix[i*3+0]
		img.Pix[i*4+1] = f.Pix[i*3+1]
		img.Pix[i*4+2] = f.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// DeviceInfo は列挙されたカメラデバイスの情報を表す
type DeviceInfo struct {
	Index     int    // SDK上のデバイスインデックス
	Name      string // モデル名
	Serial    string // シリアル番号
	Transport string // 接続方式（例: USB3.0, GigE）
}

// Driver はベンダーSDKの機能面を抽象化したインターフェース
// 1つのハンドルは同時に1つの所有者のみが操作する
type Driver interface {
	// Connect は指定インデックスのデバイスへ接続する
	Connect(ctx context.Context, index int) error

	// Disconnect はデバイスから切断する（取り込み中なら停止してから）
	Disconnect() error

	// IsConnected は接続状態を返す
	IsConnected() bool

	// StartGrabbing は取り込みセッションを開始する
	StartGrabbing() error

	// StopGrabbing は取り込みセッションを停止する
	StopGrabbing() error

	// IsStreaming は取り込みセッションが有効かを返す
	IsStreaming() bool

	// FetchFrame はタイムアウト付きで1フレームを取得する
	// タイムアウトや空振りは ErrNoData を返す
	FetchFrame(timeout time.Duration) (*Frame, error)

	// SetFloat は浮動小数点パラメータを設定する
	SetFloat(name FloatParam, value float64) error

	// GetFloat は浮動小数点パラメータを取得する
	GetFloat(name FloatParam) (float64, error)

	// SetEnum は列挙型パラメータを設定する
	SetEnum(name EnumParam, value uint32) error

	// GetEnum は列挙型パラメータを取得する
	GetEnum(name EnumParam) (uint32, error)

	// SoftwareTrigger はソフトウェアトリガーを送信する
	SoftwareTrigger() error
}

// Enumerator はデバイスの列挙機能を提供する
type Enumerator interface {
	// Enumerate は利用可能なデバイス一覧を取得する
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
}
