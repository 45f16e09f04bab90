// Package server は、HTTP APIとストリーミング配信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// カメラ操作APIの提供、映像ストリームの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - カメラの一覧・開始・停止・設定変更・トリガーのAPI提供
//   - スナップショット（PNG）の配信
//   - MJPEGストリーミング（multipart/x-mixed-replace）の配信
//   - WebSocketストリーミング（バイナリJPEGフレーム）の配信
//   - 録画ファイル一覧と録画状態のAPI提供
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - WebSocketはgorilla/websocketを使用
//   - ストリーミングはカメラサービスのフレームチャンネルを購読する
//   - 複数クライアントの同時接続をサポート
package server
