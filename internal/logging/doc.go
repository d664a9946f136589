// Package logging assembles structured slog loggers and formatting helpers
// used across the daemon.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so session and upload code can tag log
// lines with artifact IDs, phases and correlation IDs. NewNop returns a
// logger for tests and wiring code that cannot fail.
package logging
