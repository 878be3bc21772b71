// Package systemd reports service state to systemd: readiness once the
// camera array is capturing, a status line, and watchdog keep-alives tied
// to completed rounds so a stalled array gets restarted.
package systemd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/camsync/internal/logging"
)

// notifyFunc matches daemon.SdNotify.
type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier sends sd_notify messages. Outside systemd every call is a no-op.
type Notifier struct {
	notify   notifyFunc
	logger   *slog.Logger
	watchdog time.Duration // zero when the unit has no WatchdogSec

	mu      sync.Mutex
	lastPet time.Time
}

// NewNotifier creates a notifier and reads the watchdog interval from the
// environment systemd set up.
func NewNotifier() *Notifier {
	n := &Notifier{notify: daemon.SdNotify, logger: logging.GetLogger("main")}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid systemd watchdog settings", "error", err)
	}
	n.watchdog = interval
	return n
}

// WatchdogInterval returns the interval systemd expects keep-alives in, or
// zero when the watchdog is off.
func (n *Notifier) WatchdogInterval() time.Duration { return n.watchdog }

// Ready reports that startup finished, with a status line.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// RoundCompleted pets the watchdog, at most twice per watchdog interval.
func (n *Notifier) RoundCompleted(now time.Time) {
	if n.watchdog <= 0 {
		return
	}
	n.mu.Lock()
	due := now.Sub(n.lastPet) >= n.watchdog/2
	if due {
		n.lastPet = now
	}
	n.mu.Unlock()
	if due {
		n.send(daemon.SdNotifyWatchdog)
	}
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(false, state); err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	}
}
