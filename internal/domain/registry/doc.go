// Package registry provides the Module Store, the single source of truth
// for module records.
//
// Components:
//   - Store: copy-on-write record table with lock-free snapshot reads
//   - Snapshot: consistent read-only view used by scans
//   - Filter: record selection helpers for List
//
// Concurrency:
//   - Reads load an immutable snapshot through an atomic pointer
//   - Writes copy the table under a short commit mutex and swap it in
//   - Transition is a compare-and-swap on state; losers get conflict
//   - Acquire hands out per-id operation leases that fail fast
//   - CommitBatch applies a scan diff in one swap, skipping moved records
//
// Example Usage:
//
//	store := registry.NewStore(logger)
//	release, err := store.Acquire("inventory")
//	defer release()
//	rec, err := store.Transition("inventory", types.StateValidated, types.StateActive)
package registry
