package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionStopped
	TypeRoundCompleted
	TypeRetrieveTimeout
	TypeTriggerFailed
	TypePropertyDistributionFailed
	TypeDecoderFallback
	TypeFrameSaved
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published once the camera array is capturing.
type SessionStartedEvent struct {
	SessionID string   `json:"session_id" example:"1f0c3a52-8d7e-4c55-9a43-0b7f1e2d9c11" doc:"Session identifier"`
	Cameras   int      `json:"cameras" example:"4" doc:"Number of cameras in the array"`
	Serials   []uint32 `json:"serials" doc:"Camera serials in channel order"`
	Trigger   string   `json:"trigger" example:"software" doc:"Trigger mode"`
	Threaded  bool     `json:"threaded" example:"true" doc:"Whether acquisition runs on its own goroutine"`
	Decoder   string   `json:"decoder" example:"cpu" doc:"Pixel decoder backend"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionStoppedEvent is published after the array has been shut down.
type SessionStoppedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Rounds    uint64 `json:"rounds" example:"1200" doc:"Rounds completed during the session"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStoppedEvent.
func (e SessionStoppedEvent) Type() uint32 { return TypeSessionStopped }

// RoundCompletedEvent is published after every consumed round.
type RoundCompletedEvent struct {
	Round      uint64    `json:"round" example:"42" doc:"Round number, starting at 1"`
	Duration   float64   `json:"duration_seconds" example:"0.066" doc:"Wall time of the round"`
	FPS        float64   `json:"fps" example:"14.9" doc:"Smoothed round rate"`
	ChannelFPS []float64 `json:"channel_fps" doc:"Smoothed delivered frame rate per channel"`
	Timeouts   int       `json:"timeouts" example:"0" doc:"Cameras that timed out this round"`
	Timestamp  string    `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RoundCompletedEvent.
func (e RoundCompletedEvent) Type() uint32 { return TypeRoundCompleted }

// RetrieveTimeoutEvent reports a camera that delivered no frame in time.
type RetrieveTimeoutEvent struct {
	Round     uint64 `json:"round" doc:"Round number"`
	Channel   int    `json:"channel" example:"1" doc:"Logical channel"`
	Error     string `json:"error" doc:"Driver error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RetrieveTimeoutEvent.
func (e RetrieveTimeoutEvent) Type() uint32 { return TypeRetrieveTimeout }

// TriggerFailedEvent reports a software trigger that could not be fired.
type TriggerFailedEvent struct {
	Round     uint64 `json:"round" doc:"Round number"`
	Channel   int    `json:"channel" example:"0" doc:"Logical channel"`
	Error     string `json:"error" doc:"Register error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TriggerFailedEvent.
func (e TriggerFailedEvent) Type() uint32 { return TypeTriggerFailed }

// PropertyDistributionFailedEvent reports an aborted master to slave copy.
type PropertyDistributionFailedEvent struct {
	Round     uint64 `json:"round" doc:"Round number"`
	Master    int    `json:"master" example:"0" doc:"Master channel"`
	Error     string `json:"error" doc:"Property error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PropertyDistributionFailedEvent.
func (e PropertyDistributionFailedEvent) Type() uint32 {
	return TypePropertyDistributionFailed
}

// DecoderFallbackEvent is published once when decoding leaves the GPU.
type DecoderFallbackEvent struct {
	From      string `json:"from" example:"gpu:llvmpipe" doc:"Backend that failed"`
	To        string `json:"to" example:"cpu" doc:"Backend now in use"`
	Error     string `json:"error" doc:"Failure cause"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DecoderFallbackEvent.
func (e DecoderFallbackEvent) Type() uint32 { return TypeDecoderFallback }

// FrameSavedEvent reports a frame written to disk.
type FrameSavedEvent struct {
	Round     uint64 `json:"round" doc:"Round number"`
	Channel   int    `json:"channel" example:"0" doc:"Logical channel"`
	Path      string `json:"path" example:"/tmp/image-42_cam-0.jpg" doc:"File written"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameSavedEvent.
func (e FrameSavedEvent) Type() uint32 { return TypeFrameSaved }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"pipeline" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
