package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mvcamd/internal/camera"
	"mvcamd/internal/config"
	"mvcamd/internal/driver"
	"mvcamd/internal/recorder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer はモックカメラ1台を持つテスト用サーバーを作成する
func newTestServer(t *testing.T) (*Server, camera.Manager) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Camera: config.CameraConfig{
			Simulation:    true,
			PollInterval:  50 * time.Millisecond,
			FetchTimeout:  100 * time.Millisecond,
			DefaultFPS:    20,
			DefaultWidth:  640,
			DefaultHeight: 480,
		},
	}

	discovery := camera.NewMockDiscovery([]driver.DeviceInfo{
		{Index: 0, Name: "Test Camera", Serial: "SN000001", Transport: "USB3.0"},
	})

	manager := camera.NewDefaultCameraManager(discovery, camera.NewMockServiceCreator(), camera.Settings{
		ExposureTimeUS: 10000,
		FrameRate:      20,
		AutoExposure:   true,
		AutoGain:       true,
		TriggerMode:    camera.TriggerModeOff,
		Width:          640,
		Height:         480,
	})

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Manager start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := manager.Stop(ctx); err != nil {
			t.Errorf("Manager stop failed: %v", err)
		}
	})

	recorderConfig := recorder.DefaultConfig()
	recorderConfig.Enabled = false
	recorderManager := recorder.NewDefaultManager(manager, t.TempDir(), recorderConfig)

	srv := New(cfg, manager, recorderManager)
	srv.setupRoutes()

	return srv, manager
}

// testCameraID は登録済みカメラのIDを返す
func testCameraID(t *testing.T, manager camera.Manager) string {
	t.Helper()

	cameras := manager.GetCameras()
	if len(cameras) != 1 {
		t.Fatalf("Expected 1 camera, got %d", len(cameras))
	}
	return cameras[0].ID
}

// doRequest はテスト用のHTTPリクエストを実行する
func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)
	return w
}

func TestServer_HealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for health, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Invalid health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", health.Status)
	}

	w = doRequest(srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for status, got %d", w.Code)
	}

	var status StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid status response: %v", err)
	}
	if status.Cameras != 1 {
		t.Errorf("Expected 1 camera, got %d", status.Cameras)
	}
	if status.ActiveCameras != 0 {
		t.Errorf("Expected no active cameras, got %d", status.ActiveCameras)
	}
}

func TestServer_GetCameras(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	w := doRequest(srv, http.MethodGet, "/api/cameras", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var response CamerasResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Invalid cameras response: %v", err)
	}
	if len(response.Cameras) != 1 {
		t.Fatalf("Expected 1 camera, got %d", len(response.Cameras))
	}
	if response.Cameras[0].Serial != "SN000001" {
		t.Errorf("Expected serial SN000001, got %s", response.Cameras[0].Serial)
	}

	// 単一カメラ取得
	w = doRequest(srv, http.MethodGet, "/api/cameras/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for camera, got %d", w.Code)
	}

	// 存在しないカメラは404
	w = doRequest(srv, http.MethodGet, "/api/cameras/unknown-id", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown camera, got %d", w.Code)
	}
}

func TestServer_StartStopCamera(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	// 停止中のカメラへの停止要求は409
	w := doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/stop", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for stop while inactive, got %d", w.Code)
	}

	// 開始
	w = doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/start", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for start, got %d", w.Code)
	}

	// 二重開始は409
	w = doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for double start, got %d", w.Code)
	}

	// 停止
	w = doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/stop", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for stop, got %d", w.Code)
	}

	// 存在しないカメラは404
	w = doRequest(srv, http.MethodPost, "/api/cameras/unknown-id/start", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown camera, got %d", w.Code)
	}
}

func TestServer_Settings(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	w := doRequest(srv, http.MethodGet, "/api/cameras/"+id+"/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for settings, got %d", w.Code)
	}

	var settings SettingsPayload
	if err := json.Unmarshal(w.Body.Bytes(), &settings); err != nil {
		t.Fatalf("Invalid settings response: %v", err)
	}
	if settings.ExposureTimeUS != 10000 {
		t.Errorf("Expected exposure 10000, got %v", settings.ExposureTimeUS)
	}

	// 部分更新: 省略したフィールドは現在値を引き継ぐ
	w = doRequest(srv, http.MethodPut, "/api/cameras/"+id+"/settings", []byte(`{"frame_rate": 15}`))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for settings update, got %d", w.Code)
	}

	if err := json.Unmarshal(w.Body.Bytes(), &settings); err != nil {
		t.Fatalf("Invalid settings response: %v", err)
	}
	if settings.FrameRate != 15 {
		t.Errorf("Expected frame rate 15, got %v", settings.FrameRate)
	}
	if settings.ExposureTimeUS != 10000 {
		t.Errorf("Expected exposure to be preserved, got %v", settings.ExposureTimeUS)
	}

	// 不正なJSONは400
	w = doRequest(srv, http.MethodPut, "/api/cameras/"+id+"/settings", []byte(`{invalid`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestServer_SnapshotAndTrigger(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	// 非アクティブのカメラへのトリガーは409
	w := doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/trigger", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for trigger while inactive, got %d", w.Code)
	}

	if err := manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	service, _ := manager.GetService(id)
	mock := service.(*camera.MockCameraService)

	// スナップショット未取得の場合は503
	w = doRequest(srv, http.MethodGet, "/api/cameras/"+id+"/snapshot", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before first frame, got %d", w.Code)
	}

	mock.SetSnapshot([]byte("jpeg-data"), []byte("png-data"))

	w = doRequest(srv, http.MethodGet, "/api/cameras/"+id+"/snapshot", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for snapshot, got %d", w.Code)
	}
	if contentType := w.Header().Get("Content-Type"); contentType != "image/png" {
		t.Errorf("Expected image/png, got %s", contentType)
	}
	if w.Body.String() != "png-data" {
		t.Errorf("Unexpected snapshot body: %s", w.Body.String())
	}

	// トリガー送信
	w = doRequest(srv, http.MethodPost, "/api/cameras/"+id+"/trigger", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for trigger, got %d", w.Code)
	}
	if mock.TriggerCount() != 1 {
		t.Errorf("Expected 1 trigger, got %d", mock.TriggerCount())
	}
}

func TestServer_DiscoverCameras(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/cameras/discover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for discover, got %d", w.Code)
	}

	var response DiscoverResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Invalid discover response: %v", err)
	}
	if len(response.Devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(response.Devices))
	}
	if response.Devices[0].Serial != "SN000001" {
		t.Errorf("Expected serial SN000001, got %s", response.Devices[0].Serial)
	}
}

func TestServer_MJPEGStream(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	// 非アクティブのカメラは503
	w := doRequest(srv, http.MethodGet, "/api/cameras/"+id+"/stream", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for inactive camera, got %d", w.Code)
	}

	if err := manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	service, _ := manager.GetService(id)
	mock := service.(*camera.MockCameraService)
	mock.PushFrame([]byte("frame-data"))

	// クライアント切断まで配信が続くため、キャンセル付きでリクエストする
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/cameras/"+id+"/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.engine.ServeHTTP(rec, req)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stream handler did not stop after client disconnect")
	}

	if contentType := rec.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "multipart/x-mixed-replace") {
		t.Errorf("Expected multipart content type, got %s", contentType)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "--frame") {
		t.Error("Expected MJPEG boundary in body")
	}
	if !strings.Contains(body, "frame-data") {
		t.Error("Expected frame data in body")
	}
}

func TestServer_WebSocketStream(t *testing.T) {
	srv, manager := newTestServer(t)
	id := testCameraID(t, manager)

	if err := manager.StartCamera(context.Background(), id); err != nil {
		t.Fatalf("StartCamera failed: %v", err)
	}

	service, _ := manager.GetService(id)
	mock := service.(*camera.MockCameraService)

	ts := httptest.NewServer(srv.engine)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/cameras/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	mock.PushFrame([]byte("ws-frame"))

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Errorf("Expected binary message, got %d", messageType)
	}
	if string(data) != "ws-frame" {
		t.Errorf("Unexpected frame data: %s", data)
	}
}

func TestServer_Recordings(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/recordings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for recordings, got %d", w.Code)
	}

	var response RecordingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Invalid recordings response: %v", err)
	}
	if len(response.Recordings) != 0 {
		t.Errorf("Expected no recordings, got %d", len(response.Recordings))
	}

	w = doRequest(srv, http.MethodGet, "/api/recorder/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for recorder status, got %d", w.Code)
	}

	var status recorder.StatusInfo
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid recorder status response: %v", err)
	}
	if status.Enabled {
		t.Error("Expected recorder to be disabled")
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         18099,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Camera: config.CameraConfig{Simulation: true},
	}

	discovery := camera.NewMockDiscovery(nil)
	manager := camera.NewDefaultCameraManager(discovery, camera.NewMockServiceCreator(), camera.Settings{})

	recorderConfig := recorder.DefaultConfig()
	recorderConfig.Enabled = false
	recorderManager := recorder.NewDefaultManager(manager, t.TempDir(), recorderConfig)

	srv := New(cfg, manager, recorderManager)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// サーバーが起動するまで少し待つ
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("サーバーの起動/停止でエラーが発生しました: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}
}
