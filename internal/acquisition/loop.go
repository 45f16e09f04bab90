package acquisition

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"mvcamd/internal/driver"
)

// State は取得ループの状態を表す
type State int

const (
	// StateIdle はループが停止している状態
	StateIdle State = iota
	// StateRunning はポーリングサイクルが動作中の状態
	StateRunning
	// StateStopping は停止要求から完全停止までの遷移中の状態
	StateStopping
	// StateFaulted はドライバエラーによりループが停止した状態
	StateFaulted
)

// String は状態の文字列表現を返す
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// 公開操作の前提条件違反
var (
	// ErrAlreadyRunning は実行中のループに対するStartを表す
	ErrAlreadyRunning = pkgerrors.New("取得ループは既に実行中です")

	// ErrNotRunning は停止中のループに対するStopを表す
	ErrNotRunning = pkgerrors.New("取得ループは実行されていません")
)

// 既定のループ設定
const (
	DefaultTickInterval      = 50 * time.Millisecond
	DefaultFetchTimeout      = 100 * time.Millisecond
	DefaultPlaceholderWidth  = 640
	DefaultPlaceholderHeight = 480

	frameBufferSize  = 8
	statusBufferSize = 4
	errorBufferSize  = 1
)

// Options は取得ループの設定
type Options struct {
	TickInterval      time.Duration // ポーリング周期
	FetchTimeout      time.Duration // 1フレーム取得のタイムアウト
	PlaceholderWidth  int           // プレースホルダーフレームの幅
	PlaceholderHeight int           // プレースホルダーフレームの高さ
}

// normalize は未指定の設定を既定値で埋める
func (o Options) normalize() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.PlaceholderWidth <= 0 {
		o.PlaceholderWidth = DefaultPlaceholderWidth
	}
	if o.PlaceholderHeight <= 0 {
		o.PlaceholderHeight = DefaultPlaceholderHeight
	}
	return o
}

// Loop はドライバに対するフレーム取得ループ
// 1つのドライバハンドルにつき同時に1つのLoopのみが動作する
type Loop struct {
	driver driver.Driver
	opts   Options

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	wg     sync.WaitGroup

	// 直近の取得成功フレーム。ループゴルーチンのみが書き込む
	lastFrame *driver.Frame

	// 合成済みプレースホルダー。発行時にCloneして使う
	noCamera *driver.Frame
	noSignal *driver.Frame

	frames   chan *driver.Frame
	statuses chan string
	errs     chan string
}

// NewLoop は新しい取得ループを作成する
func NewLoop(drv driver.Driver, opts Options) *Loop {
	opts = opts.normalize()

	return &Loop{
		driver:   drv,
		opts:     opts,
		state:    StateIdle,
		noCamera: newPlaceholder(opts.PlaceholderWidth, opts.PlaceholderHeight, labelNoCamera),
		noSignal: newPlaceholder(opts.PlaceholderWidth, opts.PlaceholderHeight, labelNoSignal),
		frames:   make(chan *driver.Frame, frameBufferSize),
		statuses: make(chan string, statusBufferSize),
		errs:     make(chan string, errorBufferSize),
	}
}

// Frames はフレームイベントのチャンネルを返す
func (l *Loop) Frames() <-chan *driver.Frame {
	return l.frames
}

// Statuses はステータスイベントのチャンネルを返す
func (l *Loop) Statuses() <-chan string {
	return l.statuses
}

// Errors はエラーイベントのチャンネルを返す
// エラーの発行はループのFaulted遷移を意味する
func (l *Loop) Errors() <-chan string {
	return l.errs
}

// State は現在のループ状態を返す
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start はポーリングサイクルを開始する
// 実行中・停止処理中の場合はErrAlreadyRunningを返し状態を変更しない
// Faultedからの再開時は前回のキャッシュを破棄してIdleに戻してから開始する
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	case StateFaulted:
		// 前回のループゴルーチンの終了を待ってから再開する
		l.wg.Wait()
		l.lastFrame = nil

		// 未読のまま残った前回のエラー通知を破棄する
		// 次のFaultが確実に1件のエラーとして観測できるようにする
		select {
		case <-l.errs:
		default:
		}
	}

	l.stopCh = make(chan struct{})
	l.state = StateRunning
	l.wg.Add(1)
	go l.run(l.stopCh)

	l.emitStatus("取得ループを開始しました")
	return nil
}

// Stop はポーリングサイクルを停止する
// ループゴルーチンの完全な終了を待ってから戻る（join）
// 戻った後にフレーム・ステータス・エラーが発行されることはない
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return ErrNotRunning
	}

	l.state = StateStopping
	l.emitStatus("取得ループを停止しています")
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()

	l.mu.Lock()
	l.state = StateIdle
	l.lastFrame = nil
	l.mu.Unlock()

	return nil
}

// run はポーリングサイクルの本体
func (l *Loop) run(stopCh chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !l.tick(stopCh) {
				return
			}
		}
	}
}

// tick は1回のポーリングを行う。ループを継続する場合はtrueを返す
func (l *Loop) tick(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}

	// 取り込みセッションが無い間は切断プレースホルダーを流し続ける
	if !l.driver.IsStreaming() {
		l.emitFrame(clonePlaceholder(l.noCamera))
		return true
	}

	frame, err := l.driver.FetchFrame(l.opts.FetchTimeout)
	switch {
	case err == nil:
		l.lastFrame = frame
		l.emitFrame(frame.Clone())

	case pkgerrors.Is(err, driver.ErrNoData):
		// 一過性の空振り。キャッシュがあれば再発行、なければプレースホルダー
		if l.lastFrame != nil {
			l.emitFrame(l.lastFrame.Clone())
		} else {
			l.emitFrame(clonePlaceholder(l.noSignal))
		}

	case pkgerrors.Is(err, driver.ErrNotStreaming):
		// ティック中にセッションが閉じられた場合
		l.emitFrame(clonePlaceholder(l.noCamera))

	default:
		// ドライバの致命的なエラー。リトライせずループを終了する
		l.fault(err)
		return false
	}

	return true
}

// fault はループをFaultedに遷移させ、エラーを1回だけ通知する
// Stopと競合した場合はStop側の遷移を優先する
func (l *Loop) fault(err error) {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return
	}
	l.state = StateFaulted
	l.mu.Unlock()

	select {
	case l.errs <- err.Error():
	default:
	}
}

// clonePlaceholder はプレースホルダーを発行時刻付きで複製する
func clonePlaceholder(frame *driver.Frame) *driver.Frame {
	clone := frame.Clone()
	clone.Timestamp = time.Now()
	return clone
}

// emitFrame はフレームを発行する。バッファが満杯の場合は最古を捨てる
func (l *Loop) emitFrame(frame *driver.Frame) {
	select {
	case l.frames <- frame:
	default:
		select {
		case <-l.frames:
		default:
		}
		select {
		case l.frames <- frame:
		default:
		}
	}
}

// emitStatus はステータスメッセージを発行する。ブロックはしない
func (l *Loop) emitStatus(message string) {
	select {
	case l.statuses <- message:
	default:
		select {
		case <-l.statuses:
		default:
		}
		select {
		case l.statuses <- message:
		default:
		}
	}
}
