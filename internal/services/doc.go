// Package services defines shared utilities consumed by the session
// controller, the capture agent and the remote API client.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper so failures keep their
//     classification (already recording, network failure, ...) across layers.
//   - Stable error codes that survive serialization between the controller,
//     the capture agent and the CLI.
//   - Context helpers that stamp artifact IDs, phases and correlation
//     identifiers for logging.
package services
