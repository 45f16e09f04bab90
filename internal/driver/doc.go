// Package driver は産業用カメラのドライバ層を提供する
//
// # 責務
// - ベンダーSDK（MvCamCtrlSDK系）の機能面を抽象化したDriverインターフェースの定義
// - SDKステータスコードからGoエラーへの変換
// - シミュレーションドライバの提供（明示的なオプトイン設定でのみ有効）
// - ドライバ種別ごとのファクトリーとデバイス列挙
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 物理カメラまたはシミュレーションカメラへの接続・切断を行いたい
// - 取り込み（グラブ）セッションの開始・停止を制御したい
// - タイムアウト付きで1フレームを取得したい
// - 露光時間・ゲイン・フレームレート等のパラメータを設定したい
//
// # 仕様
// - 1つのドライバハンドルは同時に1つの所有者のみが操作する
// - フレーム取得のタイムアウトはエラーではなく ErrNoData として区別される
// - シミュレーションモードは設定による明示的な選択であり、
//   実機接続の失敗時に暗黙にフォールバックすることはない
package driver
