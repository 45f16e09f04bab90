// Package acquisition はフレーム取得ループを提供する
//
// # 責務
// - ドライバに対する一定周期（既定50ms）のポーリングサイクルの駆動
// - Idle/Running/Stopping/Faulted のライフサイクル状態管理
// - フレーム・ステータス・エラーの3種イベントのFIFO配信
// - 最新フレームのキャッシュとプレースホルダーフレームの合成
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - ドライバから連続的にフレームを取得して配信したい
// - 取得の開始・停止をブロッキングの結合（join）付きで制御したい
// - データなしのティックでもコンシューマー側を待たせたくない
//
// # 仕様
// - Start前・Stop完了後には一切イベントを発行しない
// - 取得のタイムアウトはエラーではなく、キャッシュまたは
//   プレースホルダーで吸収される
// - ドライバの致命的なエラーは1回だけ通知され、ループは
//   Faultedで停止する（内部リトライは行わない）
// - 1つのドライバハンドルを同時に操作するループは1つのみ
package acquisition
