package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camsync/internal/api/models"
	"github.com/smazurov/camsync/internal/events"
	"github.com/smazurov/camsync/internal/logging"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// ForwardLogs publishes every new log entry on bus as a LogEntryEvent,
// which feeds /api/logs/stream. The returned function stops forwarding.
func ForwardLogs(bus *events.Bus) func() {
	logging.SetLogCallback(func(entry logging.LogEntry) {
		bus.Publish(toLogEvent(entry))
	})
	return func() { logging.SetLogCallback(nil) }
}

func toLogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// registerLogRoutes registers the log history, level and streaming endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Entries from the in-memory log buffer. Poll with since=last_seq to receive only new entries.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		minRank := levelRank[input.Level]
		entries := []logging.LogEntry{}
		lastSeq := input.Since
		for _, e := range logging.GetBuffer().Since(input.Since) {
			lastSeq = e.Seq
			if levelRank[e.Level] < minRank {
				continue
			}
			if input.Module != "" && e.Module != input.Module {
				continue
			}
			entries = append(entries, e)
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries), LastSeq: lastSeq},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Description: "Current level of every module logger",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LogLevelsResponse, error) {
		return &models.LogLevelsResponse{
			Body: models.LogLevelsData{Levels: logging.Levels()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels/{module}",
		Summary:     "Set Log Level",
		Description: "Change the level of one module logger until the next config reload",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.LogLevelInput) (*models.LogLevelsResponse, error) {
		if err := logging.SetLevel(input.Module, input.Body.Level); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		s.logger.Info("Log level changed", "target", input.Module, "level", input.Body.Level)
		return &models.LogLevelsResponse{
			Body: models.LogLevelsData{Levels: logging.Levels()},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then new ones.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing falls between the two; the
		// sequence number drops what the replay already sent.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var sent uint64
		for _, entry := range logging.GetBuffer().ReadAll() {
			if err := send.Data(toLogEvent(entry)); err != nil {
				return
			}
			sent = entry.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				entry, ok := ev.(events.LogEntryEvent)
				if !ok || entry.Seq <= sent {
					continue
				}
				if err := send.Data(entry); err != nil {
					return
				}
				sent = entry.Seq
			}
		}
	})
}
