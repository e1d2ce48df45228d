// Package discovery reconciles the module source area with the Module Store.
//
// A scan reads every module directory in parallel, parses its descriptor and
// hashes its file set, then diffs the results against a snapshot of the store
// taken when the scan started:
//   - new directory            -> record created in state discovered
//   - same content hash        -> no-op
//   - different content hash   -> changed, record reverts to discovered
//   - directory gone           -> record flagged missing (removal pending)
//   - tombstone without record -> removed record rebuilt
//
// The diff is committed as one batch. A cancelled or failed scan commits
// nothing. Per-module failures are collected in the summary and never abort
// the scan.
package discovery
