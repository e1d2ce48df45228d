package discovery

import (
	"sort"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
)

type outcome int

const (
	outcomeDiscovered outcome = iota
	outcomeChanged
	outcomeRemoved
	outcomeRestored
)

// plan is a computed scan diff waiting to be committed
type plan struct {
	changes  []registry.Change
	outcomes map[string]outcome
	issues   []types.ScanIssue
}

func (s *Scanner) diff(base registry.Snapshot, live, tombs []parsed, now time.Time) plan {
	p := plan{outcomes: make(map[string]outcome)}
	present := make(map[string]bool, len(live))
	tombstoned := make(map[string]bool, len(tombs))
	for _, res := range tombs {
		tombstoned[res.id] = true
	}

	for _, res := range live {
		present[res.id] = true
		cur, known := base.Get(res.id)

		if res.err != nil {
			// known modules keep their last good record
			p.issue(res.id, res.err)
			s.logger.Warn("Failed to load module", zap.String("module", res.id), zap.Error(res.err))
			continue
		}

		switch {
		case !known && tombstoned[res.id]:
			p.issue(res.id, types.NewError(types.KindConflict, res.id,
				"module has both a live directory and a tombstone; purge the tombstone or remove the directory"))

		case !known:
			p.add(registry.Change{Record: types.Record{
				Descriptor:    res.desc,
				State:         types.StateDiscovered,
				ContentHash:   res.hash,
				LastScannedAt: now,
			}}, res.id, outcomeDiscovered)

		case cur.State == types.StateRemoved:
			p.issue(res.id, types.NewError(types.KindConflict, res.id,
				"directory exists for a removed module; purge it or re-import with override"))

		case cur.ContentHash == res.hash:
			if cur.Missing {
				next := cur
				next.Missing = false
				next.LastScannedAt = now
				p.add(registry.Change{Record: next, BaseRevision: cur.Revision}, res.id, outcomeRestored)
			}

		default:
			next := cur
			next.Descriptor = res.desc
			next.ContentHash = res.hash
			next.State = types.StateDiscovered
			next.Missing = false
			next.LastScannedAt = now
			p.add(registry.Change{Record: next, BaseRevision: cur.Revision}, res.id, outcomeChanged)
		}
	}

	for _, cur := range base.List(registry.NotInState(types.StateRemoved)) {
		if present[cur.ID()] || cur.Missing {
			continue
		}
		next := cur
		next.Missing = true
		next.LastScannedAt = now
		p.add(registry.Change{Record: next, BaseRevision: cur.Revision}, cur.ID(), outcomeRemoved)
	}

	for _, res := range tombs {
		if res.err != nil {
			p.issue(res.id, res.err)
			continue
		}
		p.add(registry.Change{Record: types.Record{
			Descriptor:    res.desc,
			State:         types.StateRemoved,
			ContentHash:   res.hash,
			LastScannedAt: now,
		}}, res.id, outcomeRemoved)
	}

	return p
}

func (p *plan) add(ch registry.Change, id string, o outcome) {
	p.changes = append(p.changes, ch)
	p.outcomes[id] = o
}

func (p *plan) issue(id string, err error) {
	kind := types.KindOf(err)
	if kind == "" {
		kind = types.KindParseError
	}
	p.issues = append(p.issues, types.ScanIssue{ModuleID: id, Path: id, Kind: kind, Message: err.Error()})
}

// summarize reports only what the batch commit actually applied
func (p *plan) summarize(result registry.BatchResult) types.ScanSummary {
	summary := types.ScanSummary{
		Discovered: []string{},
		Removed:    []string{},
		Changed:    []string{},
		Errors:     p.issues,
		Skipped:    result.Skipped,
	}
	if summary.Errors == nil {
		summary.Errors = []types.ScanIssue{}
	}

	for _, id := range result.Applied {
		switch p.outcomes[id] {
		case outcomeDiscovered:
			summary.Discovered = append(summary.Discovered, id)
		case outcomeChanged:
			summary.Changed = append(summary.Changed, id)
		case outcomeRemoved:
			summary.Removed = append(summary.Removed, id)
		case outcomeRestored:
			summary.Restored = append(summary.Restored, id)
		}
	}

	sort.Slice(summary.Errors, func(i, j int) bool { return summary.Errors[i].ModuleID < summary.Errors[j].ModuleID })
	return summary
}
