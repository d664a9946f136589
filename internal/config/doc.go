// Package config loads, normalizes and validates the reelcap TOML
// configuration.
//
// Load resolves the file path (explicit flag, ~/.config/reelcap/config.toml,
// then ./reelcap.toml), applies defaults, expands ~ in directory settings and
// folds in environment overrides such as REELCAP_SESSION_TOKEN before running
// Validate. CreateSample writes the annotated template used by
// `reelcap config init`.
package config
