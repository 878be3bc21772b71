package models

import (
	"github.com/smazurov/camsync/internal/camarray"
	"github.com/smazurov/camsync/internal/logging"
)

// Health models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Health message"`
	Round   uint64 `json:"round" example:"1200" doc:"Rounds completed so far"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.25.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type StatusData struct {
	camarray.Status
	Round    uint64  `json:"round" example:"1200" doc:"Rounds completed so far"`
	FPS      float64 `json:"fps" example:"14.9" doc:"Smoothed round rate"`
	Threaded bool    `json:"threaded" example:"true" doc:"Whether acquisition runs on its own goroutine"`
	Decoder  string  `json:"decoder" example:"cpu" doc:"Pixel decoder backend in use"`
	Order    string  `json:"channel_order" example:"bgr" doc:"Channel order of 3-channel output"`
}

type StatusResponse struct {
	Body StatusData
}

// Camera models
type CameraData struct {
	Channel          int     `json:"channel" example:"0" doc:"Logical channel, cameras sorted by serial"`
	Slot             string  `json:"slot" example:"out1" doc:"Output slot name"`
	Serial           uint32  `json:"serial" example:"13142459" doc:"Camera serial number"`
	Model            string  `json:"model" example:"Grasshopper2 GS2-FW-14S5M" doc:"Camera model"`
	Vendor           string  `json:"vendor" example:"Point Grey Research" doc:"Camera vendor"`
	Sensor           string  `json:"sensor" doc:"Sensor description"`
	Resolution       string  `json:"resolution" example:"1384x1036" doc:"Sensor resolution"`
	Firmware         string  `json:"firmware" doc:"Firmware version"`
	FPS              float64 `json:"fps" example:"14.9" doc:"Smoothed delivered frame rate"`
	RetrieveTimeouts uint64  `json:"retrieve_timeouts" doc:"Grab timeouts since start"`
	TriggerFailures  uint64  `json:"trigger_failures" doc:"Failed software triggers since start"`
	TemperatureC     float64 `json:"temperature_c,omitempty" example:"41.5" doc:"Sensor temperature"`
	Drops            uint64  `json:"drops" doc:"Frames overwritten before a reader took them"`
	LastRound        uint64  `json:"last_round" doc:"Round of the latest published frame"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Cameras in channel order"`
	Count   int          `json:"count" example:"2" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

// ChannelInput selects a logical channel.
type ChannelInput struct {
	Channel int `path:"channel" minimum:"0" example:"0" doc:"Logical channel"`
}

type PropertiesData struct {
	Channel    int                        `json:"channel" example:"0" doc:"Logical channel"`
	Properties []camarray.PropertyReading `json:"properties" doc:"Present, readable properties"`
}

type PropertiesResponse struct {
	Body PropertiesData
}

type MetadataData struct {
	camarray.FrameMetadata
	Round uint64 `json:"round" example:"42" doc:"Round the frame belongs to"`
}

type MetadataResponse struct {
	Body MetadataData
}

type ModeData struct {
	Resolution string    `json:"resolution" example:"640x480" doc:"Frame size, empty for Format7"`
	Encoding   string    `json:"encoding" example:"mono8" doc:"Pixel encoding"`
	Rates      []float64 `json:"rates" example:"[3.75,7.5,15,30]" doc:"Supported frame rates"`
}

type ModesData struct {
	Channel int        `json:"channel" example:"0" doc:"Logical channel"`
	Modes   []ModeData `json:"modes" doc:"Supported video modes"`
}

type ModesResponse struct {
	Body ModesData
}

// FrameInput selects a channel and image format for a frame download.
type FrameInput struct {
	Channel int    `path:"channel" minimum:"0" example:"0" doc:"Logical channel"`
	Format  string `query:"format" enum:"jpg,png,bmp,tiff" default:"jpg" doc:"Image format"`
}

type FrameResponse struct {
	ContentType string `header:"Content-Type"`
	Round       string `header:"X-Camsync-Round"`
	Body        []byte
}

// Snapshot models
type SnapshotData struct {
	Round  uint64   `json:"round" example:"42" doc:"Round the saved frames belong to"`
	Paths  []string `json:"paths" doc:"Files written, in channel order"`
	Errors []string `json:"errors,omitempty" doc:"Channels that could not be saved"`
}

type SnapshotResponse struct {
	Body SnapshotData
}

// Log models
type LogsInput struct {
	Since  uint64 `query:"since" doc:"Only entries with a larger sequence number"`
	Level  string `query:"level" enum:"debug,info,warn,error" default:"debug" doc:"Minimum level"`
	Module string `query:"module" example:"pipeline" doc:"Only entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int                `json:"count" doc:"Number of entries returned"`
	LastSeq uint64             `json:"last_seq" doc:"Sequence number to pass as since on the next poll"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Level per module"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type LogLevelInput struct {
	Module string `path:"module" example:"pipeline" doc:"Logger module"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
