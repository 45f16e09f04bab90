package recorder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sort"
	"time"

	"mvcamd/internal/camera"
)

// FrameComposer は複数カメラのスナップショットを1枚に結合する
type FrameComposer struct {
	outputWidth  int
	outputHeight int
	quality      int
}

// NewFrameComposer は新しいFrameComposerを作成する
func NewFrameComposer(outputWidth, outputHeight, quality int) *FrameComposer {
	return &FrameComposer{
		outputWidth:  outputWidth,
		outputHeight: outputHeight,
		quality:      quality,
	}
}

// ComposeFrames は各カメラのスナップショットを取得して結合する
// 非アクティブなカメラと取得に失敗したカメラはスキップする
func (fc *FrameComposer) ComposeFrames(ctx context.Context, manager camera.Manager) (CombinedFrame, error) {
	timestamp := time.Now()
	cameraFrames := make(map[string]CameraFrame)
	cameraNames := make(map[string]string)

	for _, cam := range manager.GetCameras() {
		if cam.Status != camera.StatusActive {
			continue
		}

		service, exists := manager.GetService(cam.ID)
		if !exists {
			continue
		}

		data, err := service.SnapshotJPEG(ctx)
		if err != nil {
			log.Printf("カメラ %s のスナップショット取得に失敗: %v", cam.ID, err)
			continue
		}

		if len(data) > 0 {
			cameraFrames[cam.ID] = CameraFrame{
				CameraID:  cam.ID,
				Timestamp: timestamp,
				Data:      data,
				Size:      len(data),
			}
			cameraNames[cam.ID] = cam.Name
		}
	}

	if len(cameraFrames) == 0 {
		return CombinedFrame{}, fmt.Errorf("有効なフレームが取得できませんでした")
	}

	composedData, err := fc.combineFrames(cameraFrames, cameraNames)
	if err != nil {
		return CombinedFrame{}, fmt.Errorf("フレーム結合に失敗: %w", err)
	}

	return CombinedFrame{
		Timestamp:    timestamp,
		CameraFrames: cameraFrames,
		ComposedData: composedData,
		Size:         len(composedData),
	}, nil
}

// combineFrames は複数のJPEGフレームをグリッド状に結合する
// カメラ名でソートして配置位置を固定する
func (fc *FrameComposer) combineFrames(cameraFrames map[string]CameraFrame, cameraNames map[string]string) ([]byte, error) {
	if len(cameraFrames) == 0 {
		return nil, fmt.Errorf("結合するフレームがありません")
	}

	grid := fc.calculateGrid(len(cameraFrames))
	outputImg := image.NewRGBA(image.Rect(0, 0, fc.outputWidth, fc.outputHeight))

	// カメラ名でソート、同じ名前の場合はIDでソート
	ids := make([]string, 0, len(cameraFrames))
	for id := range cameraFrames {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if cameraNames[ids[i]] == cameraNames[ids[j]] {
			return ids[i] < ids[j]
		}
		return cameraNames[ids[i]] < cameraNames[ids[j]]
	})

	tileIndex := 0
	for _, id := range ids {
		frame := cameraFrames[id]
		if len(frame.Data) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			log.Printf("JPEGデコードエラー (カメラ %s): %v", frame.CameraID, err)
			continue
		}

		fc.drawTile(outputImg, img, fc.tileRect(tileIndex, grid))
		tileIndex++
	}

	var buf bytes.Buffer
	encodeOptions := &jpeg.Options{Quality: fc.quality * 20} // 1-5 を 20-100 に変換

	if err := jpeg.Encode(&buf, outputImg, encodeOptions); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}

	return buf.Bytes(), nil
}

// gridInfo はグリッドレイアウト情報
type gridInfo struct {
	cols       int
	rows       int
	cellWidth  int
	cellHeight int
}

// calculateGrid はカメラ数に基づいてグリッドを計算する
func (fc *FrameComposer) calculateGrid(frameCount int) gridInfo {
	var cols, rows int

	switch frameCount {
	case 1:
		cols, rows = 1, 1
	case 2:
		cols, rows = 2, 1
	case 3, 4:
		cols, rows = 2, 2
	default:
		cols = int(float64(frameCount)*0.6) + 1 // 横を多めに
		rows = (frameCount + cols - 1) / cols
	}

	return gridInfo{
		cols:       cols,
		rows:       rows,
		cellWidth:  fc.outputWidth / cols,
		cellHeight: fc.outputHeight / rows,
	}
}

// tileRect は指定インデックスのタイル矩形を計算する
func (fc *FrameComposer) tileRect(index int, grid gridInfo) image.Rectangle {
	row := index / grid.cols
	col := index % grid.cols

	x := col * grid.cellWidth
	y := row * grid.cellHeight
	return image.Rect(x, y, x+grid.cellWidth, y+grid.cellHeight)
}

// drawTile は指定矩形に画像をリサイズして描画する（ニアレストネイバー法）
func (fc *FrameComposer) drawTile(dst *image.RGBA, src image.Image, rect image.Rectangle) {
	srcBounds := src.Bounds()
	srcWidth := srcBounds.Dx()
	srcHeight := srcBounds.Dy()
	width := rect.Dx()
	height := rect.Dy()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcX := x * srcWidth / width
			srcY := y * srcHeight / height

			if srcX < srcWidth && srcY < srcHeight {
				c := src.At(srcBounds.Min.X+srcX, srcBounds.Min.Y+srcY)
				dst.Set(rect.Min.X+x, rect.Min.Y+y, c)
			}
		}
	}
}
