// Package types provides shared data structures for the module registry.
//
// Core Types:
//   - Descriptor: declarative module metadata (identity, permissions, tables, routes, navigation)
//   - Record: Store entry pairing a Descriptor with lifecycle state
//   - Package: portable export/import artifact with a manifest digest
//   - ValidationResult, Violation: security validator output
//   - Error: typed registry error (Kind, ModuleID, Violations)
//   - Event: lifecycle notification
//
// State Machine:
//
//	discovered -> validated -> active -> disabled -> removed
//	active -> discovered (content drift), disabled -> active (re-enable)
//
// Example Usage:
//
//	rec, err := store.Get("inventory")
//	if errors.Is(err, types.ErrNotFound) {
//	    ...
//	}
package types
