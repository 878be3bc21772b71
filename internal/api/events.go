package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camsync/internal/events"
)

// registerSSERoutes registers the acquisition event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time acquisition events: rounds, timeouts, trigger and distribution failures, decoder fallback and snapshots",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"session-started":     events.SessionStartedEvent{},
		"session-stopped":     events.SessionStoppedEvent{},
		"round-completed":     events.RoundCompletedEvent{},
		"retrieve-timeout":    events.RetrieveTimeoutEvent{},
		"trigger-failed":      events.TriggerFailedEvent{},
		"distribution-failed": events.PropertyDistributionFailedEvent{},
		"decoder-fallback":    events.DecoderFallbackEvent{},
		"frame-saved":         events.FrameSavedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RoundCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RetrieveTimeoutEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TriggerFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PropertyDistributionFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DecoderFallbackEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameSavedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// A late subscriber still learns what it is connected to.
		st := s.acq.Session().Status()
		if err := send.Data(events.SessionStartedEvent{
			SessionID: st.SessionID,
			Cameras:   st.Cameras,
			Serials:   st.Serials,
			Trigger:   st.Trigger,
			Threaded:  s.acq.Threaded(),
			Decoder:   s.acq.Decoder().Backend(),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
