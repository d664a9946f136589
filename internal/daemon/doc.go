// Package daemon coordinates the long-running reelcap process.
//
// It ties the capture agent, the session controller, the recordings ledger
// and the device watcher into a single lifecycle, with flock-based locking
// so only one daemon records at a time. Startup reconciles state left behind
// by a previous process: ledger rows stuck mid-recording or mid-upload and
// orphaned spool directories in the staging area.
//
// Recording semantics live in internal/session; this package only exposes
// them to the IPC layer and owns startup and shutdown.
package daemon
