// Package logs tails the daemon log for `reelcap logs`.
//
// Reads go through the path on every poll, so when the daemon restarts and
// the reelcap.log pointer moves to a fresh run file, a follower picks up the
// new file from its beginning instead of stalling at the old offset.
package logs
