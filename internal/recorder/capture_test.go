package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mvcamd/internal/camera"
)

func newTestCapture(t *testing.T) *Capture {
	t.Helper()

	manager := camera.NewDefaultCameraManager(
		camera.NewMockDiscovery(nil),
		camera.NewMockServiceCreator(),
		camera.Settings{},
	)

	config := DefaultConfig()
	config.RetentionDays = 7

	return NewCapture(t.TempDir(), config, manager)
}

func TestCapture_GenerateVideoFilename(t *testing.T) {
	capture := newTestCapture(t)

	date := time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)
	filename := capture.generateVideoFilename(date)

	if filename != "recording_2025-03-14.mp4" {
		t.Errorf("Expected recording_2025-03-14.mp4, got %s", filename)
	}
}

func TestCapture_DetermineStatus(t *testing.T) {
	capture := newTestCapture(t)
	capture.currentVideo = "recording_2025-03-14.mp4"

	if status := capture.determineStatus("recording_2025-03-14.mp4"); status != StatusRecording {
		t.Errorf("Expected recording status for current video, got %s", status)
	}

	if status := capture.determineStatus("recording_2025-03-13.mp4"); status != StatusCompleted {
		t.Errorf("Expected completed status for old video, got %s", status)
	}
}

func TestCapture_GetRecordings(t *testing.T) {
	capture := newTestCapture(t)

	// ディレクトリが空の場合
	recordings, err := capture.GetRecordings()
	if err != nil {
		t.Fatalf("GetRecordings failed: %v", err)
	}
	if len(recordings) != 0 {
		t.Errorf("Expected no recordings, got %d", len(recordings))
	}

	// 録画ファイルを作成
	videoPath := filepath.Join(capture.outputDir, "recording_2025-03-14.mp4")
	if err := os.WriteFile(videoPath, []byte("dummy"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// 対象外の拡張子は無視される
	otherPath := filepath.Join(capture.outputDir, "notes.txt")
	if err := os.WriteFile(otherPath, []byte("memo"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	recordings, err = capture.GetRecordings()
	if err != nil {
		t.Fatalf("GetRecordings failed: %v", err)
	}

	if len(recordings) != 1 {
		t.Fatalf("Expected 1 recording, got %d", len(recordings))
	}

	if recordings[0].FileSize != 5 {
		t.Errorf("Expected file size 5, got %d", recordings[0].FileSize)
	}
}

func TestCapture_CleanupOldRecordings(t *testing.T) {
	capture := newTestCapture(t)

	oldPath := filepath.Join(capture.outputDir, "recording_2024-01-01.mp4")
	if err := os.WriteFile(oldPath, []byte("old"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// 保持期間より古い更新時刻に変更
	oldTime := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	newPath := filepath.Join(capture.outputDir, "recording_2025-03-14.mp4")
	if err := os.WriteFile(newPath, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := capture.cleanupOldRecordings(); err != nil {
		t.Fatalf("cleanupOldRecordings failed: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Expected old recording to be removed")
	}

	if _, err := os.Stat(newPath); err != nil {
		t.Error("Expected recent recording to be kept")
	}
}

func TestCapture_CleanupKeepsCurrentVideo(t *testing.T) {
	capture := newTestCapture(t)
	capture.currentVideo = "recording_2024-01-01.mp4"

	currentPath := filepath.Join(capture.outputDir, capture.currentVideo)
	if err := os.WriteFile(currentPath, []byte("current"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	oldTime := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(currentPath, oldTime, oldTime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if err := capture.cleanupOldRecordings(); err != nil {
		t.Fatalf("cleanupOldRecordings failed: %v", err)
	}

	// 録画中のファイルは古くても削除しない
	if _, err := os.Stat(currentPath); err != nil {
		t.Error("Expected current video to be kept")
	}
}
