// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and the
// conversion of session and ledger models into wire representations. Errors
// cross the socket tagged with their taxonomy code so the client can rebuild
// the sentinel and callers keep using errors.Is.
package ipc
