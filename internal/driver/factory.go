package driver

import (
	"fmt"
)

// Kind はドライバ種別を表す
type Kind string

const (
	// KindSimulation はシミュレーションドライバを表す
	KindSimulation Kind = "sim"
)

// Config はドライバ作成時の設定
type Config struct {
	Width  int // フレーム幅
	Height int // フレーム高さ
}

// Creator はドライバ作成関数の型
type Creator func(cfg Config) (Driver, error)

// Factory はドライバ種別ごとの作成と列挙を提供する
type Factory interface {
	// Create は指定種別のドライバを作成する
	Create(kind Kind, cfg Config) (Driver, error)

	// Enumerator は指定種別のEnumeratorを取得する
	Enumerator(kind Kind) (Enumerator, error)

	// SupportedKinds はサポートされている種別一覧を返す
	SupportedKinds() []Kind
}

// DefaultFactory はFactoryの標準実装
type DefaultFactory struct {
	creators    map[Kind]Creator
	enumerators map[Kind]Enumerator
}

// NewFactory は新しいDefaultFactoryを作成する
// シミュレーションドライバが登録済みの状態で返す
func NewFactory() *DefaultFactory {
	factory := &DefaultFactory{
		creators:    make(map[Kind]Creator),
		enumerators: make(map[Kind]Enumerator),
	}

	// シミュレーションドライバを登録
	factory.Register(KindSimulation,
		func(cfg Config) (Driver, error) {
			return NewSimDriver(cfg.Width, cfg.Height), nil
		},
		NewSimEnumerator(1),
	)

	return factory
}

// Register はドライバ種別を登録する
func (f *DefaultFactory) Register(kind Kind, creator Creator, enumerator Enumerator) {
	f.creators[kind] = creator
	f.enumerators[kind] = enumerator
}

// Create は指定種別のドライバを作成する
func (f *DefaultFactory) Create(kind Kind, cfg Config) (Driver, error) {
	creator, exists := f.creators[kind]
	if !exists {
		return nil, fmt.Errorf("サポートされていないドライバ種別: %s", kind)
	}

	return creator(cfg)
}

// Enumerator は指定種別のEnumeratorを取得する
func (f *DefaultFactory) Enumerator(kind Kind) (Enumerator, error) {
	enumerator, exists := f.enumerators[kind]
	if !exists {
		return nil, fmt.Errorf("サポートされていないドライバ種別: %s", kind)
	}

	return enumerator, nil
}

// SupportedKinds はサポートされている種別一覧を返す
func (f *DefaultFactory) SupportedKinds() []Kind {
	kinds := make([]Kind, 0, len(f.creators))
	for kind := range f.creators {
		kinds = append(kinds, kind)
	}
	return kinds
}
