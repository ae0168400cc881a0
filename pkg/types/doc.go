// Package types defines the shared domain types used across the speedometer:
// evaluation modes, output speed units with their conversion factors, the 4×4
// transform matrix and the tagged Sample variant returned by sampling sources.
// These are the canonical in-memory representations, separate from the YAML
// configuration and JSON API formats.
package types
