package systemd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/camsync/internal/logging"
)

type recorder struct {
	states []string
	err    error
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.states = append(r.states, state)
	return r.err == nil, r.err
}

func newTestNotifier(watchdog time.Duration) (*Notifier, *recorder) {
	rec := &recorder{}
	return &Notifier{notify: rec.notify, logger: logging.GetLogger("main"), watchdog: watchdog}, rec
}

func TestReadyAndStatus(t *testing.T) {
	n, rec := newTestNotifier(0)
	n.Ready("2 cameras, free-run")
	n.Status("round %d at %.1f fps", 42, 14.9)
	n.Stopping()

	want := []string{
		"READY=1\nSTATUS=2 cameras, free-run",
		"STATUS=round 42 at 14.9 fps",
		"STOPPING=1",
	}
	if len(rec.states) != len(want) {
		t.Fatalf("states = %q, want %q", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Errorf("states[%d] = %q, want %q", i, rec.states[i], want[i])
		}
	}
}

func TestRoundCompletedPetsWatchdog(t *testing.T) {
	n, rec := newTestNotifier(10 * time.Second)
	start := time.Now()

	n.RoundCompleted(start)                       // first round pets
	n.RoundCompleted(start.Add(time.Second))      // too soon
	n.RoundCompleted(start.Add(4 * time.Second))  // too soon
	n.RoundCompleted(start.Add(5 * time.Second))  // half interval elapsed
	n.RoundCompleted(start.Add(11 * time.Second)) // again

	pets := 0
	for _, s := range rec.states {
		if s == "WATCHDOG=1" {
			pets++
		}
	}
	if pets != 3 {
		t.Errorf("watchdog pets = %d, want 3 (states %q)", pets, rec.states)
	}
}

func TestRoundCompletedWithoutWatchdog(t *testing.T) {
	n, rec := newTestNotifier(0)
	n.RoundCompleted(time.Now())
	if len(rec.states) != 0 {
		t.Errorf("states = %q, want none", rec.states)
	}
}

func TestSendErrorIsLogged(t *testing.T) {
	n, rec := newTestNotifier(0)
	rec.err = errors.New("socket gone")
	n.Stopping()
	if len(rec.states) != 1 || !strings.HasPrefix(rec.states[0], "STOPPING") {
		t.Errorf("states = %q, want one STOPPING", rec.states)
	}
}
