// Package recordings keeps a SQLite ledger of every recording the daemon has
// started: its status, the retained blob (if any), upload attempts and the
// share URL. The ledger is what makes RetryUpload possible after a failed
// upload or a daemon restart.
package recordings
