// Package packager turns modules into portable packages and back.
//
// Export reads a module's live tree under its read lock and returns the
// descriptor, a byte-exact file map and the manifest digest. Import verifies
// the digest, checks the import mode, runs the security validator and only
// then writes the files with an atomic directory swap and records the module
// as validated. Import never activates.
//
// Packages travel as JSON (files base64-encoded) or as a tar archive
// compressed with zstd:
//
//	MANIFEST.json     {"descriptor": {...}, "digest": "sha256:..."}
//	files/<path>      one entry per module file
package packager
