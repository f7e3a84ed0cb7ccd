// Package ir provides the canonical value tree that order snapshots are
// lowered into before diffing.
//
// This package contains value types only. Every other internal package may
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float kind - prices and quantities are int64
//   - Record keeps a fixed field order; Map iterates in UTF-16 key order
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing
package ir
