// Package recorder はカメラ映像の常時録画を担う
//
// # 責務
// - アクティブな全カメラからの定期スナップショット取得
// - 複数カメラのフレームを1枚のグリッド画像に結合
// - ffmpegによる日次動画ファイルの生成・延長
// - 保持期間を過ぎた録画ファイルの削除
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - カメラ映像を低フレームレートで記録し続けたい
// - 複数カメラの映像を1つの動画にまとめたい
// - 録画ファイルを日単位でローテーションしたい
//
// # 前提要件
//   - ffmpeg: 動画の生成と結合に使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//     Red Hat/Fedora: sudo dnf install ffmpeg
package recorder
