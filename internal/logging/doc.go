// Package logging hands out per-module slog loggers whose levels can change
// while camrig runs.
//
// Records go to stdout (text or JSON) when stdout is a terminal, pipe,
// socket or file, and to the systemd journal when journald is reachable.
// With both available a MultiHandler writes to each.
//
// Call Initialize once, after the configuration is loaded:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{logging.ModuleCapture: "debug"},
//	})
//
// and ask for a module logger where it is needed:
//
//	logger := logging.GetLogger(logging.ModuleMonitor).With("path", path)
//
// Loggers requested before Initialize keep working; Initialize gives them
// the configured format and level. UpdateLevels applies a reloaded
// [logging] table to every existing logger without replacing handlers,
// which is what the config watcher does on change.
//
// The configuration file carries the levels in the [logging] table; keys
// other than level and format name modules:
//
//	[logging]
//	level = "info"
//	format = "json"
//	hotplug = "debug"
//	api = "warn"
//
// Journal entries are tagged SYSLOG_IDENTIFIER=camrig and every attribute
// becomes an upper-case field, so a single camera or capture session can be
// selected:
//
//	journalctl -t camrig MODULE=monitor PATH=/dev/video0
//	journalctl -t camrig SESSION_ID=3f9c...
package logging
