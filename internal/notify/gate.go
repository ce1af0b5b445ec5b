// Package notify implements the notification gate: a candidate message is
// delivered only when it differs from the last message that was delivered.
package notify

import (
	"context"
	"sync"
	"time"

	"hwbot/internal/observability"
	"hwbot/internal/storage"
	"hwbot/internal/transport"
	"hwbot/pkg/logx"
)

// Journal receives every delivered notification. Optional.
type Journal interface {
	AppendDelivery(ctx context.Context, d storage.Delivery) error
}

// Gate suppresses consecutive duplicate notifications.
//
// LastMessage changes only after a successful send, so a failed send is
// retried the next time the same candidate comes up.
type Gate struct {
	sender  transport.Sender
	target  transport.ChatTarget
	log     logx.Logger
	journal Journal
	metrics *observability.Metrics

	mu      sync.Mutex
	last    string
	hasLast bool
	lastAt  time.Time
}

type Option func(*Gate)

func WithJournal(j Journal) Option { return func(g *Gate) { g.journal = j } }

func WithMetrics(m *observability.Metrics) Option { return func(g *Gate) { g.metrics = m } }

func NewGate(sender transport.Sender, target transport.ChatTarget, log logx.Logger, opts ...Option) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := &Gate{sender: sender, target: target, log: log}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Meta describes the cycle that produced a candidate; it only feeds the
// journal and logs.
type Meta struct {
	Kind   string
	Cursor int64
}

// MaybeSend delivers candidate unless it equals the last delivered message.
// It reports whether a message was sent. A send error is logged and returned;
// callers are not expected to act on it beyond that.
func (g *Gate) MaybeSend(ctx context.Context, candidate string, meta Meta) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasLast && candidate == g.last {
		g.log.Debug("notification suppressed (duplicate)", logx.String("kind", meta.Kind))
		g.metrics.IncNotification(observability.NotificationSuppressed)
		return false, nil
	}

	ref, err := g.sender.SendText(ctx, g.target, candidate, &transport.SendOptions{DisablePreview: true})
	if err != nil {
		g.log.Error("notification send failed", logx.String("kind", meta.Kind), logx.Err(err))
		g.metrics.IncNotification(observability.NotificationFailed)
		return false, err
	}

	g.last = candidate
	g.hasLast = true
	g.lastAt = time.Now()
	g.metrics.IncNotification(observability.NotificationSent)
	g.log.Info("notification sent", logx.String("kind", meta.Kind), logx.String("message", candidate))

	if g.journal != nil {
		// A username target is journaled under the id the API resolved.
		chatID := g.target.ChatID
		if ref.ChatID != 0 {
			chatID = ref.ChatID
		}
		d := storage.Delivery{At: g.lastAt, ChatID: chatID, Kind: meta.Kind, Cursor: meta.Cursor, Message: candidate}
		if err := g.journal.AppendDelivery(ctx, d); err != nil {
			g.log.Warn("delivery journal append failed", logx.Err(err))
		}
	}
	return true, nil
}

// Last returns the last delivered message and when it was sent.
// ok is false until the first successful send.
func (g *Gate) Last() (msg string, at time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.lastAt, g.hasLast
}
