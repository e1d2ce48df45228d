// Package modfs manages the module source area on disk.
//
// The area holds one directory per module id plus registry-owned dot
// entries (tombstones, staging and trash directories). This package is the
// only code that touches those directories.
//
// Features:
//   - Parallel tree reads with fastwalk, filtered by doublestar ignore globs
//   - Staged writes published with an atomic directory swap
//   - Per-module read/write exclusion so reads never see a swap in progress
//   - Tombstones for removed modules under .removed/<id>
//   - Startup recovery of interrupted swaps
//
// Swap protocol:
//
//	write files   -> .staging-<id>.<ulid>/
//	rename target -> .trash-<id>.<ulid>/     (only if the module exists)
//	rename staging -> <id>/
//	remove trash
//
// A crash between the two renames leaves a trash directory whose target is
// missing; Recover renames it back.
package modfs
