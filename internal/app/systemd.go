package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"hwbot/internal/poller"
	"hwbot/pkg/logx"
)

// sdNotify is a no-op outside systemd (NOTIFY_SOCKET unset).
func (a *App) sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		a.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

// runWatchdog pings the systemd watchdog at half its interval unless the
// poll loop looks stuck.
func (a *App) runWatchdog(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if loopStalled(a.loop.Status(), time.Now(), interval, a.cycleBudget) {
				a.log.Warn("poll loop stalled; withholding watchdog ping")
				continue
			}
			a.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}

// loopStalled reports a cycle running longer than budget plus interval, or
// an idle loop overdue for its next cycle by more than interval.
func loopStalled(st poller.Status, now time.Time, interval, budget time.Duration) bool {
	if !st.CycleStartedAt.IsZero() {
		return now.Sub(st.CycleStartedAt) > budget+interval
	}
	if st.Cycles == 0 || st.NextRunAt.IsZero() {
		return false
	}
	return now.Sub(st.NextRunAt) > interval
}

// onCycle reports the latest outcome in systemctl status.
func (a *App) onCycle(out poller.Outcome) {
	a.sdNotify(fmt.Sprintf("STATUS=last cycle %s, cursor %d", out.Kind, out.Cursor))
}
