package acquisition

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mvcamd/internal/driver"
)

// プレースホルダーフレームのラベル
const (
	labelNoCamera = "NO CAMERA"
	labelNoSignal = "NO SIGNAL"
)

var (
	placeholderBackground = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	placeholderForeground = color.RGBA{R: 0xc8, G: 0xc8, B: 0xc8, A: 0xff}
)

// newPlaceholder はラベル付きのプレースホルダーフレームを合成する
// 暗い背景の中央にラベル文字列を描画する
func newPlaceholder(width, height int, label string) *driver.Frame {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(placeholderForeground),
		Face: face,
	}

	textWidth := drawer.MeasureString(label)
	drawer.Dot = fixed.Point26_6{
		X: (fixed.I(width) - textWidth) / 2,
		Y: fixed.I((height + face.Height) / 2),
	}
	drawer.DrawString(label)

	// RGBA -> RGB に詰め直す
	pix := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		pix[i*3+0] = img.Pix[i*4+0]
		pix[i*3+1] = img.Pix[i*4+1]
		pix[i*3+2] = img.Pix[i*4+2]
	}

	return &driver.Frame{
		Width:     width,
		Height:    height,
		Channels:  3,
		Pix:       pix,
		Timestamp: time.Now(),
	}
}
