// Package notifications delivers recording lifecycle and upload progress
// events to pluggable sinks.
//
// The ntfy implementation publishes to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Progress events are bucketed so a
// long upload produces a handful of pushes rather than one per part. Multi
// fans an event out to several sinks, and NewLogService mirrors events into
// the daemon log.
package notifications
