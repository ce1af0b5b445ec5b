// Package logx configures hwbot's structured logging.
//
// It wraps zerolog behind a small value type (logx.Logger) so that:
//   - console output stays readable (short timestamp + short caller)
//   - file output is JSON lines
//   - WARN+ lines can optionally be mirrored to a Telegram log chat,
//     rate limited and sent from a background worker.
package logx
