// Package poller runs the poll-validate-describe-notify cycle.
//
// A Loop owns the only mutable poll state: the from_date cursor. The last
// delivered message lives in the notification gate the loop sends through.
// Cycles never overlap; Run waits for the schedule between them.
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hwbot/internal/homework"
	"hwbot/internal/notify"
	"hwbot/internal/observability"
	"hwbot/pkg/logx"
)

// Fetcher performs one request against the status API.
type Fetcher interface {
	Fetch(ctx context.Context, cursor int64) (homework.RawResponse, error)
}

// Notifier is the gate a cycle routes its message through.
type Notifier interface {
	MaybeSend(ctx context.Context, candidate string, meta notify.Meta) (bool, error)
}

type Config struct {
	// Schedule decides when the next cycle starts. nil means DefaultInterval.
	Schedule cron.Schedule
	// StartCursor is the initial from_date. 0 means wall-clock now.
	StartCursor int64
	// Heartbeat, if set, is called after every finished cycle.
	Heartbeat func(Outcome)
}

// Outcome is the tagged result of one cycle.
type Outcome struct {
	Kind    homework.Kind
	Message string
	Err     error
	Sent    bool
	Cursor  int64
	At      time.Time
	Took    time.Duration
}

// Status is a point-in-time view for operators.
type Status struct {
	Cursor    int64     `json:"cursor"`
	Cycles    uint64    `json:"cycles"`
	LastKind  string    `json:"last_kind,omitempty"`
	LastAt    time.Time `json:"last_at"`
	LastError string    `json:"last_error,omitempty"`
	NextRunAt time.Time `json:"next_run_at"`
	// CycleStartedAt is set while a cycle is in flight and zero between cycles.
	CycleStartedAt time.Time `json:"cycle_started_at"`
}

type Loop struct {
	fetcher   Fetcher
	gate      Notifier
	log       logx.Logger
	metrics   *observability.Metrics
	heartbeat func(Outcome)

	mu       sync.Mutex
	schedule cron.Schedule
	cursor   int64
	cycles   uint64
	last     Outcome
	nextRun  time.Time
	running  time.Time
}

func New(cfg Config, fetcher Fetcher, gate Notifier, log logx.Logger, metrics *observability.Metrics) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	sched := cfg.Schedule
	if sched == nil {
		sched = Every(DefaultInterval)
	}
	cursor := cfg.StartCursor
	if cursor == 0 {
		cursor = time.Now().Unix()
	}
	metrics.SetCursor(cursor)
	return &Loop{
		fetcher:   fetcher,
		gate:      gate,
		log:       log,
		metrics:   metrics,
		heartbeat: cfg.Heartbeat,
		schedule:  sched,
		cursor:    cursor,
	}
}

// SetSchedule replaces the schedule; it takes effect after the current wait.
func (l *Loop) SetSchedule(s cron.Schedule) {
	if s == nil {
		return
	}
	l.mu.Lock()
	l.schedule = s
	l.mu.Unlock()
}

func (l *Loop) Cursor() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{Cursor: l.cursor, Cycles: l.cycles, NextRunAt: l.nextRun, CycleStartedAt: l.running}
	if l.cycles > 0 {
		st.LastKind = l.last.Kind.String()
		st.LastAt = l.last.At
		if l.last.Err != nil {
			st.LastError = l.last.Err.Error()
		}
	}
	return st
}

// Run executes a cycle immediately and then one per schedule tick until
// ctx is cancelled. Cycle failures never stop it.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("poll loop started", logx.Int64("cursor", l.Cursor()))
	for {
		l.RunOnce(ctx)
		if ctx.Err() != nil {
			return context.Canceled
		}

		wait := l.nextDelay(time.Now())
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			l.log.Info("poll loop stopped")
			return context.Canceled
		case <-t.C:
		}
	}
}

func (l *Loop) nextDelay(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.schedule.Next(now)
	if next.IsZero() || next.Before(now) {
		next = now
	}
	l.nextRun = next
	return next.Sub(now)
}

// RunOnce executes one full cycle and routes its message through the gate.
// If ctx is cancelled while the cycle runs, nothing is sent.
func (l *Loop) RunOnce(ctx context.Context) Outcome {
	start := time.Now()
	l.mu.Lock()
	l.running = start
	l.mu.Unlock()

	kind, msg, err := l.evaluate(ctx)
	out := Outcome{Kind: kind, Message: msg, Err: err, At: start}

	l.logOutcome(out)

	if ctx.Err() == nil {
		sent, _ := l.gate.MaybeSend(ctx, msg, notify.Meta{Kind: kind.String(), Cursor: l.Cursor()})
		out.Sent = sent
	}
	out.Cursor = l.Cursor()
	out.Took = time.Since(start)

	l.mu.Lock()
	l.cycles++
	l.last = out
	l.running = time.Time{}
	l.mu.Unlock()

	l.metrics.ObserveCycle(kind.String(), out.Took)
	if l.heartbeat != nil {
		l.heartbeat(out)
	}
	return out
}

// evaluate runs fetch, extract and describe. Panics are turned into an
// unclassified failure so a single bad cycle cannot end the loop.
func (l *Loop) evaluate(ctx context.Context) (kind homework.Kind, msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("poll cycle panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
			kind = homework.KindUnclassified
			msg = messageFor(kind, err)
		}
	}()

	raw, err := l.fetcher.Fetch(ctx, l.Cursor())
	if err != nil {
		return classify(err)
	}
	sub, err := homework.Extract(raw)
	if err != nil {
		return classify(err)
	}
	msg, err = homework.Describe(sub)
	if err != nil {
		return classify(err)
	}
	l.advance(raw)
	return homework.KindNone, msg, nil
}

func classify(err error) (homework.Kind, string, error) {
	kind := homework.Classify(err)
	return kind, messageFor(kind, err), err
}

// advance moves the cursor to the server's current_date. A missing or
// older value holds the cursor.
func (l *Loop) advance(raw homework.RawResponse) {
	ts, ok := homework.CurrentDate(raw)
	l.mu.Lock()
	prev := l.cursor
	if ok && ts > l.cursor {
		l.cursor = ts
	}
	cur := l.cursor
	l.mu.Unlock()

	switch {
	case !ok:
		l.log.Debug("response has no current_date; cursor held", logx.Int64("cursor", cur))
	case ts < prev:
		l.log.Warn("server current_date behind cursor; cursor held", logx.Int64("cursor", cur), logx.Int64("current_date", ts))
	}
	l.metrics.SetCursor(cur)
}

func (l *Loop) logOutcome(out Outcome) {
	switch out.Kind {
	case homework.KindNone:
		l.log.Info("homework status received", logx.String("message", out.Message))
	case homework.KindNoPending:
		l.log.Debug("no new statuses in response")
	case homework.KindTransport, homework.KindBadStatus:
		l.log.Error("status api unavailable", logx.String("kind", out.Kind.String()), logx.Err(out.Err))
	case homework.KindUnclassified:
		if errors.Is(out.Err, context.Canceled) {
			return
		}
		l.log.Error("poll cycle failed", logx.Err(out.Err))
	default:
		l.log.Error("poll cycle failed", logx.String("kind", out.Kind.String()), logx.Err(out.Err))
	}
}
