package driver

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status はSDKのステータスコードを表す
type Status uint32

// MvCamCtrlSDK互換のステータスコード
const (
	StatusOK             Status = 0x00000000
	StatusInvalidHandle  Status = 0x80000000
	StatusNotSupported   Status = 0x80000001
	StatusBufferOverflow Status = 0x80000002
	StatusCallOrder      Status = 0x80000003
	StatusParameter      Status = 0x80000004
	StatusResource       Status = 0x80000006
	StatusNoData         Status = 0x80000007
	StatusPrecondition   Status = 0x80000008
	StatusVersion        Status = 0x80000009
	StatusBufferTooSmall Status = 0x8000000A
	StatusUnknown        Status = 0x800000FF
)

// statusText はステータスコードの可読メッセージ
var statusText = map[Status]string{
	StatusInvalidHandle:  "無効なハンドル",
	StatusNotSupported:   "サポートされていない機能",
	StatusBufferOverflow: "バッファオーバーフロー",
	StatusCallOrder:      "呼び出し順序が不正",
	StatusParameter:      "不正なパラメータ",
	StatusResource:       "リソースの確保に失敗",
	StatusNoData:         "データなし",
	StatusPrecondition:   "前提条件を満たしていない",
	StatusVersion:        "SDKバージョン不一致",
	StatusBufferTooSmall: "バッファサイズ不足",
	StatusUnknown:        "不明なエラー",
}

// String はステータスコードの文字列表現を返す
func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return fmt.Sprintf("%s (0x%08X)", text, uint32(s))
	}
	return fmt.Sprintf("ステータスコード 0x%08X", uint32(s))
}

// ErrNoData はフレーム取得のタイムアウト・空振りを表す
// 一過性の状態でありドライバ障害ではない
var ErrNoData = errors.New("フレームデータがありません")

// ErrNotConnected はデバイス未接続での操作を表す
var ErrNotConnected = errors.New("カメラが接続されていません")

// ErrNotStreaming は取り込みセッション外でのフレーム取得を表す
var ErrNotStreaming = errors.New("取り込みセッションが開始されていません")

// statusError はSDKステータスコードをGoのエラーに変換する
// StatusOK はnil、StatusNoData は ErrNoData となる
func statusError(op string, s Status) error {
	switch s {
	case StatusOK:
		return nil
	case StatusNoData:
		return ErrNoData
	default:
		return errors.Errorf("%s: %s", op, s)
	}
}
