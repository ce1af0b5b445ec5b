package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
)

func staticEnv(kv map[string]string) func() (env.EnvSet, error) {
	return func() (env.EnvSet, error) { return env.EnvSet(kv), nil }
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseDefaultsWithoutFile(t *testing.T) {
	t.Parallel()
	m := NewManager("")
	m.SetEnviron(staticEnv(nil))

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(*cfg, want) {
		t.Fatalf("Parse() = %+v, want defaults %+v", *cfg, want)
	}
}

func TestParseYAMLKeepsDefaultsForOmittedFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "hwbot.yaml", `
practicum:
  token: file-token
telegram:
  token: tg
  chat_id: 42
poll:
  schedule: "*/5 * * * *"
storage:
  driver: sqlite
  path: ./hwbot.db
`)
	m := NewManager(p)
	m.SetEnviron(staticEnv(nil))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Practicum.Token != "file-token" || cfg.Telegram.ChatID != 42 || cfg.Poll.Schedule != "*/5 * * * *" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Practicum.RequestTimeout != "30s" || !cfg.Logging.Console {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.CheckCredentials(); err != nil {
		t.Fatalf("CheckCredentials() = %v", err)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{name: "unknown field", file: "a.json", body: `{"poll":{"schedule":"10m","jitter":"1s"}}`, want: "unknown field"},
		{name: "trailing data", file: "b.json", body: `{"poll":{}} {}`, want: "trailing data"},
		{name: "bad duration", file: "c.yaml", body: "practicum:\n  request_timeout: soon\n", want: "practicum.request_timeout"},
		{name: "negative duration", file: "d.yaml", body: "ops:\n  idle_timeout: -1s\n", want: "ops.idle_timeout"},
		{name: "bad driver", file: "e.yaml", body: "storage:\n  driver: redis\n", want: "storage.driver"},
		{name: "bad yaml", file: "f.yml", body: "poll: [", want: "yaml"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeFile(t, dir, tt.file, tt.body))
			m.SetEnviron(staticEnv(nil))
			_, err := m.Parse()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "hwbot.json", `{"practicum":{"token":"file"},"telegram":{"token":"file","chat_id":1}}`)
	m := NewManager(p)
	m.SetEnviron(staticEnv(map[string]string{
		"PRACTICUM_TOKEN":     "env-p",
		"TELEGRAM_TOKEN":      "env-t",
		"TELEGRAM_CHAT_ID":    "-100123",
		"HWBOT_POLL_SCHEDULE": "1m",
		"HWBOT_LOG_LEVEL":     "debug",
	}))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Practicum.Token != "env-p" || cfg.Telegram.Token != "env-t" || cfg.Telegram.ChatID != -100123 {
		t.Fatalf("credentials = %+v / %+v", cfg.Practicum, cfg.Telegram)
	}
	if cfg.Poll.Schedule != "1m" || cfg.Logging.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestChatIDForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		value    string
		wantID   int64
		wantUser string
		wantErr  bool
	}{
		{name: "user id", value: "777", wantID: 777},
		{name: "supergroup id", value: "-1001234567890", wantID: -1001234567890},
		{name: "channel username", value: "@hw_channel", wantUser: "@hw_channel"},
		{name: "bare word", value: "channel", wantErr: true},
		{name: "username too short", value: "@ab", wantErr: true},
		{name: "username bad char", value: "@hw-channel", wantErr: true},
		{name: "zero", value: "0", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager("")
			m.SetEnviron(staticEnv(map[string]string{"TELEGRAM_CHAT_ID": tt.value}))
			cfg, err := m.Parse()
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "TELEGRAM_CHAT_ID") {
					t.Fatalf("Parse() err = %v, want chat id error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if cfg.Telegram.ChatID != tt.wantID || cfg.Telegram.ChatUsername != tt.wantUser {
				t.Fatalf("chat = (%d, %q), want (%d, %q)", cfg.Telegram.ChatID, cfg.Telegram.ChatUsername, tt.wantID, tt.wantUser)
			}
			var mc *MissingCredentialsError
			if errors.As(cfg.CheckCredentials(), &mc) && slices.Contains(mc.Vars, "TELEGRAM_CHAT_ID") {
				t.Fatalf("CheckCredentials() reports chat missing: %v", mc)
			}
		})
	}
}

func TestParseRejectsBadChatUsername(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "hwbot.json", `{"telegram":{"chat_username":"channel"}}`)
	if _, err := NewManager(p).Parse(); err == nil || !strings.Contains(err.Error(), "chat_username") {
		t.Fatalf("Parse() err = %v, want chat_username error", err)
	}
}

func TestCheckCredentialsNamesMissingVars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "all missing", cfg: Config{}, want: []string{"PRACTICUM_TOKEN", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID"}},
		{name: "chat id missing", cfg: Config{Practicum: PracticumConfig{Token: "p"}, Telegram: TelegramConfig{Token: "t"}}, want: []string{"TELEGRAM_CHAT_ID"}},
		{name: "blank token", cfg: Config{Practicum: PracticumConfig{Token: "  "}, Telegram: TelegramConfig{Token: "t", ChatID: 5}}, want: []string{"PRACTICUM_TOKEN"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.CheckCredentials()
			if !errors.Is(err, ErrMissingCredentials) {
				t.Fatalf("CheckCredentials() = %v, want ErrMissingCredentials", err)
			}
			var mc *MissingCredentialsError
			if !errors.As(err, &mc) || !reflect.DeepEqual(mc.Vars, tt.want) {
				t.Fatalf("missing = %v, want %v", mc, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "HWBOT_TEST_DOTENV_VALUE"
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", key+"=from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("%s = %q, want from-file", key, got)
	}

	// Already-set variables are not replaced.
	_ = os.Setenv(key, "from-env")
	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Fatalf("%s = %q, want from-env", key, got)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "hwbot.yaml", "poll:\n  schedule: 10m\n")
	m := NewManager(p)
	m.SetEnviron(staticEnv(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ch := m.Subscribe(1)

	if ok, err := m.Reload(context.Background()); ok || err != nil {
		t.Fatalf("Reload(unchanged) = (%v, %v), want (false, nil)", ok, err)
	}

	writeFile(t, dir, "hwbot.yaml", "poll:\n  schedule: 5m\n")
	if ok, err := m.Reload(context.Background()); !ok || err != nil {
		t.Fatalf("Reload(changed) = (%v, %v), want (true, nil)", ok, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Poll.Schedule != "5m" {
			t.Fatalf("published schedule = %q", cfg.Poll.Schedule)
		}
	default:
		t.Fatal("no config published")
	}
	if m.Get().Poll.Schedule != "5m" {
		t.Fatalf("Get().Poll.Schedule = %q", m.Get().Poll.Schedule)
	}
}

func TestReloadValidatorRejects(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "hwbot.yaml", "poll:\n  schedule: 10m\n")
	m := NewManager(p)
	m.SetEnviron(staticEnv(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Poll.Schedule == "never" {
			return errors.New("bad schedule")
		}
		return nil
	})

	writeFile(t, dir, "hwbot.yaml", "poll:\n  schedule: never\n")
	if ok, err := m.Reload(context.Background()); ok || err == nil {
		t.Fatalf("Reload() = (%v, %v), want rejection", ok, err)
	}
	if m.Get().Poll.Schedule != "10m" {
		t.Fatalf("rejected config was committed: %q", m.Get().Poll.Schedule)
	}
}

func TestWatchPicksUpFileChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "hwbot.yaml", "logging:\n  level: info\n")
	m := NewManager(p)
	m.SetEnviron(staticEnv(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("level = %q, want debug", cfg.Logging.Level)
			}
			return
		case <-tick.C:
			// rewrite until the watcher is registered and sees it
			writeFile(t, dir, "hwbot.yaml", "logging:\n  level: debug\n")
		case <-deadline:
			t.Fatal("watcher did not publish the change")
		}
	}
}

func TestChanges(t *testing.T) {
	t.Parallel()
	a := Defaults()
	b := Defaults()
	b.Logging.Level = "debug"
	b.Telegram.ChatID = 7

	changed, restart := Changes(&a, &b)
	if !reflect.DeepEqual(changed, []string{"telegram", "logging"}) {
		t.Fatalf("changed = %v", changed)
	}
	if !reflect.DeepEqual(restart, []string{"telegram"}) {
		t.Fatalf("restart = %v", restart)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("empty = (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "0s", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("zero = (%v, %v)", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "250ms", 3*time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("250ms = (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "fast", time.Second); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
