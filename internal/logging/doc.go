// Package logging provides structured logging with per-module log levels.
//
// Every component asks for its own logger once and keeps it:
//
//	logger := logging.GetLogger("trigger")
//	logger.Info("Camera armed", "camera", 2, "mode", "software")
//
// Records go to stdout (text or json), to the systemd journal when journald
// is reachable, and always to an in-memory ring buffer that backs the logs
// API and its SSE stream.
//
// # Configuration
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"trigger":  "debug",
//			"pipeline": "warn",
//		},
//	})
//
// In the TOML file every key of the [logging] table other than level and
// format is a module level:
//
//	[logging]
//	level = "info"
//	format = "text"
//	session = "debug"
//	decode = "warn"
//
// Levels can be changed while running with SetLevel or, for a whole
// [logging] table, Reconfigure. The config watcher calls Reconfigure when
// the file changes.
//
// # Modules
//
//	main, session, trigger, properties, pipeline, decode,
//	api, http, config, snapshot, host, metrics
//
// # Journal
//
// Entries carry SYSLOG_IDENTIFIER=camsync and one upper-case field per
// attribute:
//
//	journalctl -t camsync -f
//	journalctl -t camsync MODULE=trigger -p warning
package logging
