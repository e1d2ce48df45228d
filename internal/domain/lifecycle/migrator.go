package lifecycle

import (
	"context"
	"strings"
)

// Migrator is the storage collaborator that creates and drops module tables
type Migrator interface {
	// Apply runs upSQL and records moduleID as owner of tables. It fails with
	// a schema_conflict error when a table exists and is not owned by moduleID.
	Apply(ctx context.Context, moduleID string, tables []string, upSQL string) error
	// Drop runs downSQL (or drops each table) and forgets the ownership rows.
	Drop(ctx context.Context, moduleID string, tables []string, downSQL string) error
	// Owners maps every owned table to its module id.
	Owners(ctx context.Context) (map[string]string, error)
}

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// SplitMigration returns the Up and Down sections of a schema file.
// A file without markers is entirely Up.
func SplitMigration(content string) (up, down string) {
	upIdx := strings.Index(content, upMarker)
	downIdx := strings.Index(content, downMarker)

	switch {
	case upIdx == -1 && downIdx == -1:
		return strings.TrimSpace(content), ""
	case upIdx == -1:
		return strings.TrimSpace(content[:downIdx]), strings.TrimSpace(content[downIdx+len(downMarker):])
	case downIdx == -1:
		return strings.TrimSpace(content[upIdx+len(upMarker):]), ""
	case downIdx > upIdx:
		return strings.TrimSpace(content[upIdx+len(upMarker) : downIdx]), strings.TrimSpace(content[downIdx+len(downMarker):])
	default:
		return strings.TrimSpace(content[upIdx+len(upMarker):]), strings.TrimSpace(content[downIdx+len(downMarker) : upIdx])
	}
}

// nopMigrator is used when storage is disabled
type nopMigrator struct{}

func (nopMigrator) Apply(context.Context, string, []string, string) error { return nil }
func (nopMigrator) Drop(context.Context, string, []string, string) error  { return nil }
func (nopMigrator) Owners(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
