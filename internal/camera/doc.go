// Package camera は産業用カメラの動的管理を担う
//
// # 責務
// - カメラデバイスの検出と管理
// - カメラの動的な追加・削除機能
// - 個別カメラの取得ループの制御とJPEGストリーミング
// - 露光時間・ゲイン・トリガーモード等の設定管理
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - カメラデバイスを動的に管理したい
// - カメラの状態をリアルタイムで監視したい
// - カメラの追加・削除を実行時に行いたい
// - 取得したフレームをJPEG列としてストリーミングしたい
//
// # 仕様
// - Camera Manager: 複数カメラの統合管理（シリアル番号で同定）
// - Camera Discovery: ドライバ経由のデバイス列挙
// - Camera Service: 個別カメラの制御・状態管理・ストリーミング
// - 1カメラにつき1つのドライバハンドルと1つの取得ループ
// - Thread-safe な操作をサポート
package camera
