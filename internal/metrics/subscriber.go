package metrics

import (
	"github.com/smazurov/camsync/internal/events"
)

// Subscribe keeps the metrics in step with acquisition events. Acquisition
// code only publishes events; it never touches metrics directly. The
// returned function unsubscribes.
func Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.SessionStartedEvent) {
			SetDecodeBackend(e.Decoder)
		}),
		bus.Subscribe(func(e events.RoundCompletedEvent) {
			RecordRound(e.Duration, e.FPS, e.ChannelFPS)
		}),
		bus.Subscribe(func(e events.RetrieveTimeoutEvent) {
			IncRetrieveTimeout(e.Channel)
		}),
		bus.Subscribe(func(e events.TriggerFailedEvent) {
			IncTriggerFailure(e.Channel)
		}),
		bus.Subscribe(func(events.PropertyDistributionFailedEvent) {
			IncDistributionFailure()
		}),
		bus.Subscribe(func(e events.DecoderFallbackEvent) {
			SetDecodeBackend(e.To)
		}),
		bus.Subscribe(func(events.FrameSavedEvent) {
			IncSnapshots()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
