package camera

import (
	"fmt"

	"mvcamd/internal/acquisition"
	"mvcamd/internal/driver"
)

// DriverServiceCreator はドライバファクトリーを使うServiceCreator実装
type DriverServiceCreator struct {
	factory  driver.Factory
	kind     driver.Kind
	loopOpts acquisition.Options
}

// NewDriverServiceCreator は新しいDriverServiceCreatorを作成する
func NewDriverServiceCreator(factory driver.Factory, kind driver.Kind, loopOpts acquisition.Options) ServiceCreator {
	return &DriverServiceCreator{
		factory:  factory,
		kind:     kind,
		loopOpts: loopOpts,
	}
}

// CreateService はカメラ専用のドライバハンドルを持つServiceを作成する
// 1カメラにつき1ハンドルを割り当て、ハンドルの共有はしない
func (c *DriverServiceCreator) CreateService(camera *Camera) (Service, error) {
	drv, err := c.factory.Create(c.kind, driver.Config{
		Width:  camera.Width,
		Height: camera.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("ドライバの作成に失敗: %w", err)
	}

	return NewCameraService(camera, drv, c.loopOpts), nil
}

// MockServiceCreator はテスト用のServiceCreator実装
type MockServiceCreator struct{}

// NewMockServiceCreator は新しいMockServiceCreatorを作成する
func NewMockServiceCreator() ServiceCreator {
	return &MockServiceCreator{}
}

// CreateService はモックServiceを作成する
func (m *MockServiceCreator) CreateService(camera *Camera) (Service, error) {
	return NewMockCameraService(camera), nil
}
