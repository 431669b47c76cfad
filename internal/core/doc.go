// Package core defines the shared vocabulary of the segmentation engine.
//
// # Design Principles
//
// Everything in this package is free of runtime-dependent data:
//
//  1. Errors carry a stable Kind so callers can classify failures with errors.Is
//  2. Fingerprints are computed from explicit, length-prefixed fields only
//  3. No timestamps, hostnames or pointer identities contribute to a fingerprint
//
// # Core Types
//
// Error: a classified failure with the operation and parameters that caused it.
// Fingerprint: a deterministic content digest used as an artifact cache key.
package core
