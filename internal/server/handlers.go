package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mvcamd/internal/camera"
	"mvcamd/internal/config"
	"mvcamd/internal/recorder"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバーの基本情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status        string     `json:"status"`
	Server        ServerInfo `json:"server"`
	Cameras       int        `json:"cameras"`
	ActiveCameras int        `json:"active_cameras"`
	Recorder      bool       `json:"recorder"`
	Timestamp     time.Time  `json:"timestamp"`
}

// CameraInfo はカメラ情報のレスポンス
type CameraInfo struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Serial    string          `json:"serial"`
	Transport string          `json:"transport"`
	Status    camera.Status   `json:"status"`
	Settings  SettingsPayload `json:"settings"`
	LastSeen  time.Time       `json:"last_seen"`
}

// CamerasResponse はカメラ一覧のレスポンス
type CamerasResponse struct {
	Cameras []CameraInfo `json:"cameras"`
}

// SettingsPayload はカメラ設定の入出力
type SettingsPayload struct {
	ExposureTimeUS float64 `json:"exposure_time_us"`
	GainDB         float64 `json:"gain_db"`
	FrameRate      float64 `json:"frame_rate"`
	AutoExposure   bool    `json:"auto_exposure"`
	AutoGain       bool    `json:"auto_gain"`
	TriggerMode    string  `json:"trigger_mode"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

// DeviceInfo は検出されたデバイス情報のレスポンス
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Serial    string `json:"serial"`
	Transport string `json:"transport"`
}

// DiscoverResponse はデバイス検出のレスポンス
type DiscoverResponse struct {
	Devices []DeviceInfo `json:"devices"`
}

// RecordingsResponse は録画ファイル一覧のレスポンス
type RecordingsResponse struct {
	Recordings []recorder.Recording `json:"recordings"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler はAPIエンドポイントの実装を提供する
type Handler struct {
	config          *config.Config
	cameraManager   camera.Manager
	recorderManager recorder.Manager
	upgrader        websocket.Upgrader
}

// NewHandler は新しいHandlerを作成する
func NewHandler(cfg *config.Config, cameraManager camera.Manager, recorderManager recorder.Manager) *Handler {
	return &Handler{
		config:          cfg,
		cameraManager:   cameraManager,
		recorderManager: recorderManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// ストリーミングはLAN内の任意のクライアントに公開する
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	cameras := h.cameraManager.GetCameras()

	active := 0
	for _, cam := range cameras {
		if cam.Status == camera.StatusActive {
			active++
		}
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Cameras:       len(cameras),
		ActiveCameras: active,
		Recorder:      h.recorderManager.GetConfig().Enabled,
		Timestamp:     time.Now(),
	})
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *Handler) GetCameras(c *gin.Context) {
	managedCameras := h.cameraManager.GetCameras()
	cameras := make([]CameraInfo, 0, len(managedCameras))

	for _, cam := range managedCameras {
		info := CameraInfo{
			ID:        cam.ID,
			Name:      cam.Name,
			Serial:    cam.Serial,
			Transport: cam.Transport,
			Status:    cam.Status,
			LastSeen:  cam.LastSeen,
		}

		if service, ok := h.cameraManager.GetService(cam.ID); ok {
			info.Settings = settingsPayloadFrom(service.GetSettings())
		}

		cameras = append(cameras, info)
	}

	c.JSON(http.StatusOK, CamerasResponse{Cameras: cameras})
}

// GetCamera は単一カメラ取得エンドポイントの実装
func (h *Handler) GetCamera(c *gin.Context) {
	cam, found := h.cameraManager.GetCamera(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	info := CameraInfo{
		ID:        cam.ID,
		Name:      cam.Name,
		Serial:    cam.Serial,
		Transport: cam.Transport,
		Status:    cam.Status,
		LastSeen:  cam.LastSeen,
	}

	if service, ok := h.cameraManager.GetService(cam.ID); ok {
		info.Settings = settingsPayloadFrom(service.GetSettings())
	}

	c.JSON(http.StatusOK, info)
}

// DiscoverCameras はデバイス再検出エンドポイントの実装
func (h *Handler) DiscoverCameras(c *gin.Context) {
	devices, err := h.cameraManager.DiscoverCameras(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "discover_failed", err.Error())
		return
	}

	result := make([]DeviceInfo, 0, len(devices))
	for _, device := range devices {
		result = append(result, DeviceInfo{
			Index:     device.Index,
			Name:      device.Name,
			Serial:    device.Serial,
			Transport: device.Transport,
		})
	}

	c.JSON(http.StatusOK, DiscoverResponse{Devices: result})
}

// StartCamera はカメラ開始エンドポイントの実装
func (h *Handler) StartCamera(c *gin.Context) {
	id := c.Param("id")

	if _, found := h.cameraManager.GetCamera(id); !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	if err := h.cameraManager.StartCamera(c.Request.Context(), id); err != nil {
		// 動作中のカメラへの開始要求は操作誤りとして扱う
		if errors.Is(err, camera.ErrAlreadyStarted) {
			respondError(c, http.StatusConflict, "camera_already_started", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "camera_start_failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// StopCamera はカメラ停止エンドポイントの実装
func (h *Handler) StopCamera(c *gin.Context) {
	id := c.Param("id")

	service, found := h.cameraManager.GetService(id)
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	// 停止中のカメラへの停止要求は操作誤りとして扱う
	if service.GetStatus() == camera.StatusInactive {
		respondError(c, http.StatusConflict, "camera_not_started", "カメラは開始されていません")
		return
	}

	if err := h.cameraManager.StopCamera(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusInternalServerError, "camera_stop_failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCameraSettings はカメラ設定取得エンドポイントの実装
func (h *Handler) GetCameraSettings(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	c.JSON(http.StatusOK, settingsPayloadFrom(service.GetSettings()))
}

// UpdateCameraSettings はカメラ設定更新エンドポイントの実装
// 省略されたフィールドは現在の設定値を引き継ぐ
func (h *Handler) UpdateCameraSettings(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	payload := settingsPayloadFrom(service.GetSettings())
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := service.UpdateSettings(c.Request.Context(), payload.toSettings()); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}

	c.JSON(http.StatusOK, settingsPayloadFrom(service.GetSettings()))
}

// TriggerCamera はソフトウェアトリガーエンドポイントの実装
func (h *Handler) TriggerCamera(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	if err := service.SoftwareTrigger(c.Request.Context()); err != nil {
		respondError(c, http.StatusConflict, "trigger_failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCameraSnapshot はスナップショット取得エンドポイントの実装
// 最新フレームをPNGとして返す
func (h *Handler) GetCameraSnapshot(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	data, err := service.SnapshotPNG(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "snapshot_unavailable", err.Error())
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

// GetCameraStream はMJPEGストリーミングエンドポイントの実装
func (h *Handler) GetCameraStream(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	// カメラがアクティブか確認
	if service.GetStatus() != camera.StatusActive {
		respondError(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}

	h.streamMJPEG(c, service)
}

// GetCameraWebSocket はWebSocketストリーミングエンドポイントの実装
// バイナリメッセージとしてJPEGフレームを配信する
func (h *Handler) GetCameraWebSocket(c *gin.Context) {
	service, found := h.cameraManager.GetService(c.Param("id"))
	if !found {
		respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return
	}

	if service.GetStatus() != camera.StatusActive {
		respondError(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgradeは失敗時に自身でエラーレスポンスを書き込む
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("WebSocket接続のクローズに失敗: %v", err)
		}
	}()

	// クライアント切断を検知する読み取りゴルーチン
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	frameChan := service.GetFrameChannel()

	for {
		select {
		case <-clientClosed:
			return

		case <-c.Request.Context().Done():
			return

		case frame, ok := <-frameChan:
			if !ok {
				return
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}
}

// GetRecordings は録画ファイル一覧取得エンドポイントの実装
func (h *Handler) GetRecordings(c *gin.Context) {
	recordings, err := h.recorderManager.GetRecordings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "recordings_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, RecordingsResponse{Recordings: recordings})
}

// GetRecorderStatus は録画状態取得エンドポイントの実装
func (h *Handler) GetRecorderStatus(c *gin.Context) {
	status, err := h.recorderManager.GetRecorderStatus()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "recorder_status_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, status)
}

// streamMJPEG はMJPEGストリームを配信する
func (h *Handler) streamMJPEG(c *gin.Context, service camera.Service) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// フレームチャンネルを取得
	frameChan := service.GetFrameChannel()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frameChan:
			if !ok {
				// チャンネルがクローズされた
				return
			}

			// MJPEGフレームを書き込み
			if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}
			if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}
			if _, err := writer.Write(frame); err != nil {
				return
			}
			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

// ヘルパー関数

// respondError はエラーレスポンスを返す
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// settingsPayloadFrom はカメラ設定をレスポンス形式に変換する
func settingsPayloadFrom(settings camera.Settings) SettingsPayload {
	return SettingsPayload{
		ExposureTimeUS: settings.ExposureTimeUS,
		GainDB:         settings.GainDB,
		FrameRate:      settings.FrameRate,
		AutoExposure:   settings.AutoExposure,
		AutoGain:       settings.AutoGain,
		TriggerMode:    string(settings.TriggerMode),
		Width:          settings.Width,
		Height:         settings.Height,
	}
}

// toSettings はリクエスト形式をカメラ設定に変換する
func (p SettingsPayload) toSettings() camera.Settings {
	return camera.Settings{
		ExposureTimeUS: p.ExposureTimeUS,
		GainDB:         p.GainDB,
		FrameRate:      p.FrameRate,
		AutoExposure:   p.AutoExposure,
		AutoGain:       p.AutoGain,
		TriggerMode:    camera.TriggerMode(p.TriggerMode),
		Width:          p.Width,
		Height:         p.Height,
	}
}
