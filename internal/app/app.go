package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/coreos/go-systemd/v22/daemon"

	"hwbot/internal/config"
	"hwbot/internal/notify"
	"hwbot/internal/observability"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	"hwbot/internal/transport"
	"hwbot/internal/transport/telegram"
	"hwbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	metrics *observability.Metrics
	gate    *notify.Gate
	loop    *poller.Loop
	ops     *observability.Server
	opsOn   bool

	// cycleBudget is the longest a healthy cycle can take: one request
	// plus one send.
	cycleBudget time.Duration

	sup       *supervisor.Supervisor
	startedAt time.Time
}

type options struct {
	sender  transport.Sender
	fetcher poller.Fetcher
	environ func() (env.EnvSet, error)
}

type Option func(*options)

// WithSender replaces the Telegram adapter.
func WithSender(s transport.Sender) Option { return func(o *options) { o.sender = s } }

// WithFetcher replaces the Practicum client.
func WithFetcher(f poller.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithEnviron replaces the process environment as the override source.
func WithEnviron(fn func() (env.EnvSet, error)) Option {
	return func(o *options) { o.environ = fn }
}

// New loads the config and builds every component. Missing credentials
// fail here, before anything is started.
func New(cfgPath string, opts ...Option) (_ *App, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	if o.environ != nil {
		cfgm.SetEnviron(o.environ)
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	schedule, err := poller.ParseSchedule(cfg.Poll.Schedule)
	if err != nil {
		return nil, fmt.Errorf("poll.schedule: %w", err)
	}

	sender := o.sender
	if sender == nil {
		bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
		ad, err := telegram.New(mapTelegramConfig(cfg), bootLog)
		if err != nil {
			return nil, err
		}
		sender = ad
	}

	logSvc, log := logx.New(mapLogConfig(cfg), sender)
	defer func() {
		if err != nil {
			_ = logSvc.Close()
		}
	}()
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err != nil && store != nil {
			_ = store.Close()
		}
	}()

	fetcher := o.fetcher
	if fetcher == nil {
		pc, err := practicum.New(mapPracticumConfig(cfg))
		if err != nil {
			return nil, err
		}
		fetcher = pc
	}

	metrics := observability.NewMetrics()
	gateOpts := []notify.Option{notify.WithMetrics(metrics)}
	if store != nil {
		gateOpts = append(gateOpts, notify.WithJournal(store))
	}
	gate := notify.NewGate(sender, chatTarget(cfg), log.With(logx.String("comp", "notify")), gateOpts...)

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		store:   store,
		metrics: metrics,
		gate:    gate,

		cycleBudget: mapPracticumConfig(cfg).Timeout + mapTelegramConfig(cfg).Timeout,
	}
	a.loop = poller.New(poller.Config{
		Schedule:    schedule,
		StartCursor: cfg.Poll.FromDate,
		Heartbeat:   a.onCycle,
	}, fetcher, gate, log.With(logx.String("comp", "poller")), metrics)

	opsCfg := mapOpsConfig(cfg)
	a.opsOn = opsCfg.Enabled
	a.ops = observability.NewServer(opsCfg, metrics, a.Status, log.With(logx.String("comp", "ops")))
	return a, nil
}

// Start launches the poll loop and its supporting goroutines.
func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := poller.ParseSchedule(cfg.Poll.Schedule)
		return err
	})

	a.sup.GoRestart("poll.loop", a.loop.Run,
		supervisor.WithRestartBackoff(time.Second, time.Minute),
		supervisor.WithPublishFirstError(true),
	)

	sub := a.cfgm.Subscribe(4)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go("config.apply", func(ctx context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(cfg)
			}
		}
	})

	// A failing ops server is retried in the background; it never stops polling.
	if a.opsOn {
		a.sup.GoRestart("ops.server", a.ops.Run, supervisor.WithRestartBackoff(time.Second, 5*time.Minute))
	}

	if wd, err := daemon.SdWatchdogEnabled(false); err == nil && wd > 0 {
		a.sup.Go("systemd.watchdog", func(ctx context.Context) error { return a.runWatchdog(ctx, wd) })
	}
	a.sdNotify(daemon.SdNotifyReady)

	cfg := a.cfgm.Get()
	a.log.Info("hwbot started",
		logx.String("schedule", cfg.Poll.Schedule),
		logx.Int64("chat_id", cfg.Telegram.ChatID),
		logx.String("chat_username", cfg.Telegram.ChatUsername),
		logx.Int64("cursor", a.loop.Cursor()),
		logx.Bool("ops", a.opsOn),
		logx.String("storage", cfg.Storage.Driver),
	)
	return nil
}

// applyConfig hot-applies the reloadable sections.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	s, err := poller.ParseSchedule(cfg.Poll.Schedule)
	if err != nil {
		a.log.Warn("ignoring invalid poll.schedule", logx.String("schedule", cfg.Poll.Schedule), logx.Err(err))
		return
	}
	a.loop.SetSchedule(s)
	a.log.Info("config applied", logx.String("schedule", cfg.Poll.Schedule), logx.String("log_level", cfg.Logging.Level))
}

// Done is closed when the app is stopping, including after a fatal error.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error reported by a supervised goroutine.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop cancels everything, waits for goroutines within ctx and releases
// the journal and log sinks.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.sdNotify(daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	var err error
	if a.sup != nil {
		if werr := a.sup.Stop(ctx); werr != nil {
			if errors.Is(werr, context.DeadlineExceeded) {
				a.log.Warn("goroutines still running at shutdown deadline")
			}
			err = werr
		}
	}
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("closing storage", logx.Err(cerr))
		}
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
