package registry

import (
	"errors"
	"sort"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
)

var errNothingApplied = errors.New("nothing applied")

// Change is one record mutation inside a batch commit.
// BaseRevision is the record revision the change was computed from;
// zero means the id must not exist yet.
type Change struct {
	Record       types.Record
	BaseRevision uint64
}

// BatchResult reports which changes a batch commit applied
type BatchResult struct {
	Applied  []string
	Skipped  []string
	Revision uint64
}

// CommitBatch applies every change whose base revision still matches the
// live record in one snapshot swap. Changes whose record moved since they
// were computed are skipped and reported, never merged.
func (s *Store) CommitBatch(changes []Change) BatchResult {
	var result BatchResult
	if len(changes) == 0 {
		result.Revision = s.Revision()
		return result
	}

	err := s.commit(func(records map[string]types.Record, rev uint64) error {
		for _, ch := range changes {
			id := ch.Record.ID()
			cur, exists := records[id]
			stale := (ch.BaseRevision == 0 && exists) ||
				(ch.BaseRevision != 0 && (!exists || cur.Revision != ch.BaseRevision))
			if stale {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			records[id] = s.stamp(ch.Record.Clone(), rev)
			result.Applied = append(result.Applied, id)
		}
		if len(result.Applied) == 0 {
			return errNothingApplied
		}
		result.Revision = rev
		return nil
	})
	if err != nil {
		result.Revision = s.Revision()
	}

	sort.Strings(result.Applied)
	sort.Strings(result.Skipped)
	if len(result.Skipped) > 0 {
		s.logger.Info("Batch commit skipped records changed concurrently",
			zap.Strings("modules", result.Skipped))
	}
	return result
}
