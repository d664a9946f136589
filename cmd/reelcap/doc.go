// Package main hosts the reelcap CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: recording control, status, the recordings ledger and
// configuration scaffolding. `reelcap start` launches the daemon on demand.
// Heavy lifting lives in the internal packages; commands here only format
// requests and render replies.
package main
