package driver

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestSimDriver_Lifecycle(t *testing.T) {
	ctx := context.Background()
	drv := NewSimDriver(64, 48)

	if drv.IsConnected() {
		t.Error("Expected new driver to be disconnected")
	}

	// 未接続での取り込み開始は失敗
	if err := drv.StartGrabbing(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	if err := drv.Connect(ctx, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !drv.IsConnected() {
		t.Error("Expected driver to be connected")
	}

	// 二重接続は呼び出し順序エラー
	if err := drv.Connect(ctx, 0); err == nil {
		t.Error("Expected error for double connect")
	}

	if err := drv.StartGrabbing(); err != nil {
		t.Fatalf("StartGrabbing failed: %v", err)
	}

	if !drv.IsStreaming() {
		t.Error("Expected driver to be streaming")
	}

	if err := drv.StopGrabbing(); err != nil {
		t.Fatalf("StopGrabbing failed: %v", err)
	}

	if err := drv.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	if drv.IsConnected() {
		t.Error("Expected driver to be disconnected after Disconnect")
	}
}

func TestSimDriver_FetchFrame(t *testing.T) {
	ctx := context.Background()
	drv := NewSimDriver(64, 48)

	// 未接続でのフレーム取得
	if _, err := drv.FetchFrame(10 * time.Millisecond); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	if err := drv.Connect(ctx, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// 取り込みセッション外でのフレーム取得
	if _, err := drv.FetchFrame(10 * time.Millisecond); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("Expected ErrNotStreaming, got %v", err)
	}

	if err := drv.StartGrabbing(); err != nil {
		t.Fatalf("StartGrabbing failed: %v", err)
	}

	frame, err := drv.FetchFrame(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("FetchFrame failed: %v", err)
	}

	if frame.Width != 64 || frame.Height != 48 {
		t.Errorf("Expected 64x48 frame, got %dx%d", frame.Width, frame.Height)
	}

	if frame.Channels != 3 {
		t.Errorf("Expected 3 channels, got %d", frame.Channels)
	}

	if len(frame.Pix) != 64*48*3 {
		t.Errorf("Expected %d bytes, got %d", 64*48*3, len(frame.Pix))
	}

	if frame.Timestamp.IsZero() {
		t.Error("Expected frame timestamp to be set")
	}
}

func TestSimDriver_TriggerMode(t *testing.T) {
	ctx := context.Background()
	drv := NewSimDriver(32, 32)

	if err := drv.Connect(ctx, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// トリガーモード無効時のソフトウェアトリガーは失敗
	if err := drv.SoftwareTrigger(); err == nil {
		t.Error("Expected error for trigger without trigger mode")
	}

	if err := drv.SetEnum(ParamTriggerMode, 1); err != nil {
		t.Fatalf("SetEnum failed: %v", err)
	}

	if err := drv.StartGrabbing(); err != nil {
		t.Fatalf("StartGrabbing failed: %v", err)
	}

	// トリガーが来るまではデータなし
	if _, err := drv.FetchFrame(time.Millisecond); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData before trigger, got %v", err)
	}

	if err := drv.SoftwareTrigger(); err != nil {
		t.Fatalf("SoftwareTrigger failed: %v", err)
	}

	frame, err := drv.FetchFrame(time.Millisecond)
	if err != nil {
		t.Fatalf("FetchFrame after trigger failed: %v", err)
	}
	if frame == nil {
		t.Fatal("Expected frame after trigger")
	}

	// トリガーは1回で消費される
	if _, err := drv.FetchFrame(time.Millisecond); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData after trigger consumed, got %v", err)
	}
}

func TestSimDriver_Params(t *testing.T) {
	ctx := context.Background()
	drv := NewSimDriver(32, 32)

	// 未接続でのパラメータ操作
	if err := drv.SetFloat(ParamExposureTime, 5000); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	if err := drv.Connect(ctx, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := drv.SetFloat(ParamExposureTime, 5000); err != nil {
		t.Fatalf("SetFloat failed: %v", err)
	}

	value, err := drv.GetFloat(ParamExposureTime)
	if err != nil {
		t.Fatalf("GetFloat failed: %v", err)
	}
	if value != 5000 {
		t.Errorf("Expected exposure 5000, got %v", value)
	}

	if err := drv.SetEnum(ParamGainAuto, 0); err != nil {
		t.Fatalf("SetEnum failed: %v", err)
	}

	enumValue, err := drv.GetEnum(ParamGainAuto)
	if err != nil {
		t.Fatalf("GetEnum failed: %v", err)
	}
	if enumValue != 0 {
		t.Errorf("Expected gain auto 0, got %d", enumValue)
	}

	// 未知のパラメータ
	if err := drv.SetFloat(FloatParam("Unknown"), 1); err == nil {
		t.Error("Expected error for unknown float parameter")
	}

	if _, err := drv.GetEnum(EnumParam("Unknown")); err == nil {
		t.Error("Expected error for unknown enum parameter")
	}
}

func TestSimDriver_DeterministicPattern(t *testing.T) {
	ctx := context.Background()
	drv := NewSimDriver(16, 8)

	if err := drv.Connect(ctx, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := drv.StartGrabbing(); err != nil {
		t.Fatalf("StartGrabbing failed: %v", err)
	}

	first, err := drv.FetchFrame(time.Millisecond)
	if err != nil {
		t.Fatalf("FetchFrame failed: %v", err)
	}

	second, err := drv.FetchFrame(time.Millisecond)
	if err != nil {
		t.Fatalf("FetchFrame failed: %v", err)
	}

	// フレーム番号で移動バーの位置が変わる
	same := true
	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected consecutive frames to differ")
	}
}

func TestSimEnumerator(t *testing.T) {
	ctx := context.Background()
	enumerator := NewSimEnumerator(2)

	devices, err := enumerator.Enumerate(ctx)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}

	if devices[0].Serial != "SIM000000" {
		t.Errorf("Expected serial SIM000000, got %s", devices[0].Serial)
	}

	if devices[1].Index != 1 {
		t.Errorf("Expected index 1, got %d", devices[1].Index)
	}

	if devices[0].Transport != "USB3.0" {
		t.Errorf("Expected transport USB3.0, got %s", devices[0].Transport)
	}
}

func TestStatusError(t *testing.T) {
	if err := statusError("MV_CC_OpenDevice", StatusOK); err != nil {
		t.Errorf("Expected nil for StatusOK, got %v", err)
	}

	if err := statusError("MV_CC_GetImageBuffer", StatusNoData); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for StatusNoData, got %v", err)
	}

	err := statusError("MV_CC_OpenDevice", StatusInvalidHandle)
	if err == nil {
		t.Fatal("Expected error for StatusInvalidHandle")
	}
}

func TestFrame_Clone(t *testing.T) {
	frame := TestFrame(4, 4, 0x7f)
	clone := frame.Clone()

	clone.Pix[0] = 0x00
	if frame.Pix[0] != 0x7f {
		t.Error("Expected clone to not share pixel data")
	}

	if clone.Width != frame.Width || clone.Height != frame.Height {
		t.Error("Expected clone to keep dimensions")
	}
}

func TestFrame_ToImage(t *testing.T) {
	frame := TestFrame(4, 2, 0x10)

	img := frame.ToImage()
	bounds := img.Bounds()
	if bounds.Dx() != 4 || bounds.Dy() != 2 {
		t.Errorf("Expected 4x2 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// グレースケールフレーム
	gray := &Frame{Width: 2, Height: 2, Channels: 1, Pix: []byte{1, 2, 3, 4}}
	grayImg := gray.ToImage()
	if grayImg.Bounds().Dx() != 2 {
		t.Errorf("Expected 2x2 gray image, got %dx%d", grayImg.Bounds().Dx(), grayImg.Bounds().Dy())
	}
}
