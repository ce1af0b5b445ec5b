package config

// Config is the on-disk configuration. Every section is optional; Defaults
// fills what the file leaves out and environment variables win over both.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poll      PollConfig      `json:"poll"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Ops       OpsConfig       `json:"ops"`
}

type PracticumConfig struct {
	Token          string `json:"token,omitempty"` // do not log
	Endpoint       string `json:"endpoint,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"` // do not log
	ChatID   int64  `json:"chat_id,omitempty"`
	// ChatUsername is a public "@channel" target, used when ChatID is 0.
	ChatUsername string `json:"chat_username,omitempty"`
	ThreadID     int    `json:"thread_id,omitempty"`
	// LogChatID receives mirrored WARN+ log lines when logging.telegram is on.
	LogChatID int64  `json:"log_chat_id,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	// RatePerSec caps outbound messages. 0 means unlimited.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// PollConfig controls the poll loop.
//
// Schedule accepts a duration ("10m"), an HH:MM interval, a cron
// expression or descriptor ("*/10 * * * *", "@every 10m").
type PollConfig struct {
	Schedule string `json:"schedule"`
	// FromDate seeds the cursor instead of wall-clock now. Unix seconds.
	FromDate int64 `json:"from_date,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the delivery journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./hwbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "", "none", "file" or "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// OpsConfig controls the HTTP server exposing /healthz, /status, /metrics
// and optionally pprof.
//
// Prefer a loopback address; a non-loopback bind needs a token or
// allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Practicum: PracticumConfig{RequestTimeout: "30s"},
		Telegram:  TelegramConfig{Timeout: "10s"},
		Poll:      PollConfig{Schedule: "600s"},
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			Telegram: LoggingTelegram{MinLevel: "warn", RatePerSec: 1},
		},
		Ops: OpsConfig{Addr: "127.0.0.1:9108"},
	}
}
