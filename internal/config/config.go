package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"mvcamd/internal/recorder"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Camera   CameraConfig    `yaml:"camera"`
	Recorder recorder.Config `yaml:"recorder"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	// ドライバ選択
	// シミュレーションは明示的なオプトインであり、
	// 実機接続の失敗時に暗黙で切り替わることはない
	Simulation bool   `yaml:"simulation"` // シミュレーションドライバを使用する
	Driver     string `yaml:"driver"`     // 実機ドライバ種別

	// 取得ループの設定
	PollInterval time.Duration `yaml:"poll_interval"` // ポーリング周期
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // フレーム取得タイムアウト

	// デフォルト設定
	DefaultExposureUS float64 `yaml:"default_exposure_us"` // 露光時間（マイクロ秒）
	DefaultGainDB     float64 `yaml:"default_gain_db"`     // ゲイン（dB）
	DefaultFPS        float64 `yaml:"default_fps"`         // フレームレート (fps)
	DefaultWidth      int     `yaml:"default_width"`       // 画像幅
	DefaultHeight     int     `yaml:"default_height"`      // 画像高さ
}

// Load は設定を読み込む
// 環境変数で上書き可能なデフォルト値を返す
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Simulation:        getEnvAsBoolOrDefault("MVCAM_SIMULATION", false),
			Driver:            getEnvOrDefault("MVCAM_DRIVER", ""),
			PollInterval:      50 * time.Millisecond,
			FetchTimeout:      100 * time.Millisecond,
			DefaultExposureUS: 10000,
			DefaultGainDB:     0,
			DefaultFPS:        20,
			DefaultWidth:      640,
			DefaultHeight:     480,
		},
		Recorder: recorder.DefaultConfig(),
	}

	cfg.Recorder.Enabled = getEnvAsBoolOrDefault("MVCAM_RECORDER", cfg.Recorder.Enabled)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// ドライバ設定の検証
	// シミュレーションと実機ドライバのどちらかが明示されている必要がある
	if !c.Camera.Simulation && c.Camera.Driver == "" {
		return fmt.Errorf("ドライバが設定されていません（実機は MVCAM_DRIVER、シミュレーションは MVCAM_SIMULATION=1 で指定）")
	}

	if c.Camera.PollInterval <= 0 {
		return fmt.Errorf("無効なポーリング周期: %v", c.Camera.PollInterval)
	}

	if c.Camera.FetchTimeout <= 0 {
		return fmt.Errorf("無効な取得タイムアウト: %v", c.Camera.FetchTimeout)
	}

	if c.Camera.DefaultFPS <= 0 {
		return fmt.Errorf("無効なフレームレート: %v", c.Camera.DefaultFPS)
	}

	if c.Camera.DefaultWidth <= 0 || c.Camera.DefaultHeight <= 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Camera.DefaultWidth, c.Camera.DefaultHeight)
	}

	return nil
}

// DriverKind は使用するドライバ種別を返す
func (c *Config) DriverKind() string {
	if c.Camera.Simulation {
		return "sim"
	}
	return c.Camera.Driver
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault は環境変数を真偽値として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
