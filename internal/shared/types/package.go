package types

import "sort"

// ImportMode decides what import does when the id already exists
type ImportMode string

const (
	ModeReplaceExisting ImportMode = "replaceExisting"
	ModeRejectIfExists  ImportMode = "rejectIfExists"
)

// Valid reports whether m is a known import mode
func (m ImportMode) Valid() bool {
	return m == ModeReplaceExisting || m == ModeRejectIfExists
}

// Package is the portable export/import artifact of a module.
// Files maps slash-separated module-relative paths to raw content.
type Package struct {
	Descriptor Descriptor        `json:"descriptor"`
	Files      map[string][]byte `json:"files"`
	Digest     string            `json:"digest"`
}

// Paths returns the package file paths in sorted order
func (p *Package) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Size returns the total content size of the package in bytes
func (p *Package) Size() int64 {
	var n int64
	for _, content := range p.Files {
		n += int64(len(content))
	}
	return n
}

// ImportRequest is the body of the import operation
type ImportRequest struct {
	Package  Package    `json:"package"`
	Mode     ImportMode `json:"mode"`
	Override bool       `json:"override,omitempty"`
}

// RemoveOptions controls the destructive parts of removal
type RemoveOptions struct {
	DropTables bool   `json:"dropTables"`
	Confirm    string `json:"confirm,omitempty"`
}

// ScanIssue is a per-module problem reported in-band by rediscovery
type ScanIssue struct {
	ModuleID string `json:"module_id,omitempty"`
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
}

// ScanSummary is the result of a rediscovery pass
type ScanSummary struct {
	Discovered []string    `json:"discovered"`
	Removed    []string    `json:"removed"`
	Changed    []string    `json:"changed"`
	Restored   []string    `json:"restored,omitempty"`
	Skipped    []string    `json:"skipped,omitempty"` // revision moved during the scan
	Errors     []ScanIssue `json:"errors"`
}

// Empty reports whether the scan changed nothing
func (s *ScanSummary) Empty() bool {
	return len(s.Discovered) == 0 && len(s.Removed) == 0 && len(s.Changed) == 0 && len(s.Restored) == 0
}
