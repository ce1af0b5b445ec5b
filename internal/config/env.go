package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

var ErrMissingCredentials = errors.New("missing required credentials")

// MissingCredentialsError names every required variable that is unset.
type MissingCredentialsError struct {
	Vars []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingCredentials, strings.Join(e.Vars, ", "))
}

func (e *MissingCredentialsError) Is(target error) bool { return target == ErrMissingCredentials }

// Overrides are the environment variables layered over the file. Empty
// values leave the file setting alone.
type Overrides struct {
	PracticumToken string `env:"PRACTICUM_TOKEN"`
	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`
	Endpoint       string `env:"PRACTICUM_ENDPOINT"`
	PollSchedule   string `env:"HWBOT_POLL_SCHEDULE"`
	LogLevel       string `env:"HWBOT_LOG_LEVEL"`
	OpsAddr        string `env:"HWBOT_OPS_ADDR"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// replacing variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ReadOverrides decodes Overrides from an environment set.
func ReadOverrides(es env.EnvSet) (Overrides, error) {
	var o Overrides
	if err := env.Unmarshal(es, &o); err != nil {
		return Overrides{}, fmt.Errorf("env overrides: %w", err)
	}
	return o, nil
}

// ProcessEnv returns the current process environment as an EnvSet.
func ProcessEnv() (env.EnvSet, error) {
	return env.EnvironToEnvSet(os.Environ())
}

func (o Overrides) apply(cfg *Config) error {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Practicum.Token, o.PracticumToken)
	set(&cfg.Telegram.Token, o.TelegramToken)
	set(&cfg.Practicum.Endpoint, o.Endpoint)
	set(&cfg.Poll.Schedule, o.PollSchedule)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Ops.Addr, o.OpsAddr)

	if s := strings.TrimSpace(o.TelegramChatID); s != "" {
		id, name, err := ParseChatRef(s)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID, cfg.Telegram.ChatUsername = id, name
	}
	return nil
}

// ParseChatRef accepts a numeric chat id or a public "@username" target.
func ParseChatRef(s string) (id int64, username string, err error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") {
		if !validUsername(s[1:]) {
			return 0, "", fmt.Errorf("invalid chat username %q", s)
		}
		return 0, s, nil
	}
	id, err = strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, "", fmt.Errorf("invalid chat id %q: want a number or @username", s)
	}
	return id, "", nil
}

func validUsername(name string) bool {
	if len(name) < 5 || len(name) > 32 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// CheckCredentials reports the required credentials that are still missing
// after the file and environment were merged.
func (c *Config) CheckCredentials() error {
	var missing []string
	if strings.TrimSpace(c.Practicum.Token) == "" {
		missing = append(missing, "PRACTICUM_TOKEN")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.Telegram.ChatID == 0 && strings.TrimSpace(c.Telegram.ChatUsername) == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Vars: missing}
	}
	return nil
}
