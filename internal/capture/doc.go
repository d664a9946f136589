// Package capture owns recording devices and the incremental encoder.
//
// The Agent runs as a single goroutine and is reachable only through JSON
// envelopes (START_CAPTURE, STOP_CAPTURE, TOGGLE_PAUSE) sent by a Client.
// Encoder output is spooled into rotating segment files that are joined into
// one media.Blob when the capture stops. Device handles are released exactly
// once, on stop or on a failed start.
//
// FFmpegBackend provides the production Devices and EncoderFactory, Resolver
// maps a RecordingConfig to a StreamHandle (optionally via a picker command),
// and DeviceWatcher reports udev removal of devices held by the agent.
package capture
