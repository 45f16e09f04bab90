package camera

import (
	"context"
	"fmt"
	"sync"

	"mvcamd/internal/driver"
)

// DriverDiscovery はドライバの列挙機能を使うDiscovery実装
type DriverDiscovery struct {
	enumerator driver.Enumerator
}

// NewDriverDiscovery は新しいDriverDiscoveryを作成する
func NewDriverDiscovery(enumerator driver.Enumerator) Discovery {
	return &DriverDiscovery{
		enumerator: enumerator,
	}
}

// ScanDevices は利用可能なカメラデバイスをスキャンする
func (d *DriverDiscovery) ScanDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	devices, err := d.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイスの列挙に失敗: %w", err)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたシリアル番号のデバイスが利用可能かチェックする
func (d *DriverDiscovery) IsDeviceAvailable(ctx context.Context, serial string) bool {
	devices, err := d.enumerator.Enumerate(ctx)
	if err != nil {
		return false
	}

	for _, device := range devices {
		if device.Serial == serial {
			return true
		}
	}

	return false
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *DriverDiscovery) GetDeviceInfo(ctx context.Context, serial string) (*driver.DeviceInfo, error) {
	devices, err := d.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイスの列挙に失敗: %w", err)
	}

	for _, device := range devices {
		if device.Serial == serial {
			result := device
			return &result, nil
		}
	}

	return nil, fmt.Errorf("デバイスが見つかりません: %s", serial)
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices []driver.DeviceInfo
	mu      sync.RWMutex
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []driver.DeviceInfo) *MockDiscovery {
	copied := make([]driver.DeviceInfo, len(devices))
	copy(copied, devices)

	return &MockDiscovery{
		devices: copied,
	}
}

// ScanDevices は登録済みのデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]driver.DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]driver.DeviceInfo, len(m.devices))
	copy(devices, m.devices)
	return devices, nil
}

// IsDeviceAvailable は指定されたシリアル番号が登録済みかチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, serial string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, device := range m.devices {
		if device.Serial == serial {
			return true
		}
	}

	return false
}

// GetDeviceInfo は登録済みデバイスの情報を返す
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, serial string) (*driver.DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, device := range m.devices {
		if device.Serial == serial {
			result := device
			return &result, nil
		}
	}

	return nil, fmt.Errorf("デバイスが見つかりません: %s", serial)
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device driver.DeviceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.devices {
		if existing.Serial == device.Serial {
			return // 既に存在する
		}
	}

	m.devices = append(m.devices, device)
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(serial string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, device := range m.devices {
		if device.Serial == serial {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			return
		}
	}
}
