// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 這個包包含了各種中間件函數，用於在 HTTP 請求處理過程中執行額外的操作。
// 目前只有 JWT 身份驗證，HTTP 與 WebSocket 端點共用同一個中間件。
package middleware
