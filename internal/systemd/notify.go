// Package systemd reports service state to the service manager over the
// sd_notify protocol. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness, status and watchdog messages.
type Notifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier that logs failed sends to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready reports that startup has finished and starts the watchdog when the
// unit sets WatchdogSec.
func (n *Notifier) Ready(ctx context.Context) {
	n.send(daemon.SdNotifyReady)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.watchdog(ctx, interval/2)
	n.logger.Info("Systemd watchdog enabled", "interval", interval)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Stopping reports that shutdown has begun and stops the watchdog.
func (n *Notifier) Stopping() {
	if n.cancel != nil {
		n.cancel()
		n.wg.Wait()
	}
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) watchdog(ctx context.Context, every time.Duration) {
	defer n.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(state); err != nil {
		n.logger.Warn("Failed to notify service manager", "state", state, "error", err)
	}
}
