package app

import (
	"context"
	"time"

	"hwbot/internal/poller"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	"hwbot/pkg/logx"
)

const recentDeliveries = 10

// Status is the /status document.
type Status struct {
	StartedAt   time.Time           `json:"started_at"`
	Uptime      string              `json:"uptime"`
	Poll        poller.Status       `json:"poll"`
	LastMessage string              `json:"last_message,omitempty"`
	LastSentAt  *time.Time          `json:"last_sent_at,omitempty"`
	Recent      []storage.Delivery  `json:"recent,omitempty"`
	Supervisor  supervisor.Snapshot `json:"supervisor"`
}

func (a *App) Status(ctx context.Context) any {
	return a.snapshot(ctx)
}

func (a *App) snapshot(ctx context.Context) Status {
	st := Status{
		StartedAt: a.startedAt,
		Poll:      a.loop.Status(),
	}
	if !a.startedAt.IsZero() {
		st.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	if msg, at, ok := a.gate.Last(); ok {
		st.LastMessage = msg
		st.LastSentAt = &at
	}
	if a.store != nil {
		recent, err := a.store.Recent(ctx, recentDeliveries)
		if err != nil {
			a.log.Warn("reading recent deliveries", logx.Err(err))
		}
		st.Recent = recent
	}
	if a.sup != nil {
		st.Supervisor = a.sup.Snapshot()
	}
	return st
}
