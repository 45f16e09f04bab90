package camera

import (
	"context"
	"time"

	"mvcamd/internal/driver"
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中
	StatusError    Status = "error"    // カメラでエラーが発生
)

// TriggerMode はトリガーモードを表す
type TriggerMode string

const (
	TriggerModeOff      TriggerMode = "off"      // 連続取得
	TriggerModeSoftware TriggerMode = "software" // ソフトウェアトリガー
	TriggerModeHardware TriggerMode = "hardware" // ハードウェアトリガー（Line1）
)

// Camera は動的に管理されるカメラの情報を提供する
type Camera struct {
	ID        string    // カメラの一意識別子
	Name      string    // カメラの表示名（モデル名）
	Serial    string    // シリアル番号
	Index     int       // ドライバ上のデバイスインデックス
	Transport string    // 接続方式（例: USB3.0, GigE）
	Width     int       // 画像幅
	Height    int       // 画像高さ
	Status    Status    // 現在の状態
	LastSeen  time.Time // 最後に確認された時刻
}

// Settings はカメラの設定を表す
type Settings struct {
	ExposureTimeUS float64     // 露光時間（マイクロ秒）
	GainDB         float64     // ゲイン（dB）
	FrameRate      float64     // フレームレート（fps）
	AutoExposure   bool        // 自動露光
	AutoGain       bool        // 自動ゲイン
	TriggerMode    TriggerMode // トリガーモード
	Width          int         // 画像幅
	Height         int         // 画像高さ
}

// Manager はカメラの動的管理を担うインターフェース
type Manager interface {
	// Start はカメラマネージャーを開始する
	Start(ctx context.Context) error

	// Stop はカメラマネージャーを停止する
	Stop(ctx context.Context) error

	// GetCameras は現在管理されているカメラ一覧を取得する
	GetCameras() []Camera

	// GetCamera は指定されたIDのカメラを取得する
	GetCamera(id string) (*Camera, bool)

	// GetService は指定されたIDのカメラサービスを取得する
	GetService(id string) (Service, bool)

	// AddCamera はカメラを動的に追加する
	AddCamera(ctx context.Context, serial string, settings Settings) (*Camera, error)

	// RemoveCamera はカメラを削除する
	RemoveCamera(ctx context.Context, id string) error

	// StartCamera はカメラを開始する
	StartCamera(ctx context.Context, id string) error

	// StopCamera はカメラを停止する
	StopCamera(ctx context.Context, id string) error

	// DiscoverCameras はカメラデバイスを再検出する
	DiscoverCameras(ctx context.Context) ([]driver.DeviceInfo, error)
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices は利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]driver.DeviceInfo, error)

	// IsDeviceAvailable は指定されたシリアル番号のデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, serial string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, serial string) (*driver.DeviceInfo, error)
}

// Service は個別カメラの制御を担うインターフェース
type Service interface {
	// Start はカメラサービスを開始する
	Start(ctx context.Context) error

	// Stop はカメラサービスを停止する
	Stop(ctx context.Context) error

	// GetStatus は現在の状態を取得する
	GetStatus() Status

	// GetCamera は現在のカメラ情報のコピーを取得する
	GetCamera() Camera

	// GetSettings は現在の設定を取得する
	GetSettings() Settings

	// UpdateSettings は設定を更新する
	UpdateSettings(ctx context.Context, settings Settings) error

	// GetFrameChannel はJPEGエンコード済みフレームのチャンネルを返す
	GetFrameChannel() <-chan []byte

	// GetErrorChannel は取得ループのエラーチャンネルを返す
	GetErrorChannel() <-chan error

	// SnapshotJPEG は最新フレームをJPEGとして取得する
	SnapshotJPEG(ctx context.Context) ([]byte, error)

	// SnapshotPNG は最新フレームをPNGとして取得する
	SnapshotPNG(ctx context.Context) ([]byte, error)

	// SoftwareTrigger はソフトウェアトリガーを送信する
	SoftwareTrigger(ctx context.Context) error
}

// ServiceCreator はカメラサービスの作成を担うインターフェース
type ServiceCreator interface {
	// CreateService は指定されたカメラのServiceを作成する
	CreateService(camera *Camera) (Service, error)
}
