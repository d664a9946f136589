// Package media holds the recording artifact handed from the capture agent to
// the upload pipeline, and the capture format preference list.
package media
