package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
)

// snapshot is an immutable view of every record at one store revision
type snapshot struct {
	records  map[string]types.Record
	revision uint64
}

// Store is the in-memory table of module records.
// Reads load the current snapshot without locking; writers build a new
// snapshot under commitMu and publish it with a single pointer swap.
type Store struct {
	current  atomic.Pointer[snapshot]
	commitMu sync.Mutex
	leases   sync.Map // module id -> *sync.Mutex
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		now:    time.Now,
		logger: logger,
	}
	s.current.Store(&snapshot{records: map[string]types.Record{}})
	return s
}

// SetClock overrides the time source, for tests
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns a copy of the record for id
func (s *Store) Get(id string) (types.Record, error) {
	rec, ok := s.current.Load().records[id]
	if !ok {
		return types.Record{}, types.NewError(types.KindNotFound, id, "module not found")
	}
	return rec.Clone(), nil
}

// List returns copies of every record matching all filters, sorted by id
func (s *Store) List(filters ...Filter) []types.Record {
	return s.Snapshot().List(filters...)
}

// Revision returns the store-wide revision of the current snapshot
func (s *Store) Revision() uint64 {
	return s.current.Load().revision
}

// Snapshot returns a consistent read-only view of the store
func (s *Store) Snapshot() Snapshot {
	return Snapshot{snap: s.current.Load()}
}

// Counts returns the number of records in each state
func (s *Store) Counts() map[types.State]int {
	counts := make(map[types.State]int, len(types.States))
	for _, state := range types.States {
		counts[state] = 0
	}
	for _, rec := range s.current.Load().records {
		counts[rec.State]++
	}
	return counts
}

// Upsert atomically inserts or replaces the record keyed by its id
func (s *Store) Upsert(rec types.Record) (types.Record, error) {
	id := rec.ID()
	if id == "" {
		return types.Record{}, types.NewError(types.KindInvalid, "", "record has no module id")
	}
	if !rec.State.Valid() {
		return types.Record{}, types.NewError(types.KindInvalid, id, "unknown state %q", rec.State)
	}

	var out types.Record
	err := s.commit(func(records map[string]types.Record, rev uint64) error {
		out = s.stamp(rec.Clone(), rev)
		records[id] = out
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return out.Clone(), nil
}

// Transition moves id from one state to another with compare-and-swap
// semantics. The optional mutators run on the new record before it is
// published. Fails with conflict when the current state is not from.
func (s *Store) Transition(id string, from, to types.State, mutators ...func(*types.Record)) (types.Record, error) {
	var out types.Record
	err := s.commit(func(records map[string]types.Record, rev uint64) error {
		cur, ok := records[id]
		if !ok {
			return types.NewError(types.KindNotFound, id, "module not found")
		}
		if cur.State != from {
			return types.NewError(types.KindConflict, id, "expected state %s, found %s", from, cur.State)
		}

		next := cur.Clone()
		next.State = to
		for _, mutate := range mutators {
			mutate(&next)
		}
		out = s.stamp(next, rev)
		records[id] = out
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}

	s.logger.Debug("Module transitioned",
		zap.String("module", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint64("revision", out.Revision))
	return out.Clone(), nil
}

// CompareAndSwap replaces a record only if its revision is still rev
func (s *Store) CompareAndSwap(rec types.Record, rev uint64) (types.Record, error) {
	id := rec.ID()
	var out types.Record
	err := s.commit(func(records map[string]types.Record, next uint64) error {
		cur, ok := records[id]
		if !ok {
			return types.NewError(types.KindNotFound, id, "module not found")
		}
		if cur.Revision != rev {
			return types.NewError(types.KindConflict, id, "record changed concurrently (revision %d, expected %d)", cur.Revision, rev)
		}
		out = s.stamp(rec.Clone(), next)
		records[id] = out
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return out.Clone(), nil
}

// Delete drops a record that has reached the removed state
func (s *Store) Delete(id string) error {
	return s.commit(func(records map[string]types.Record, _ uint64) error {
		cur, ok := records[id]
		if !ok {
			return types.NewError(types.KindNotFound, id, "module not found")
		}
		if cur.State != types.StateRemoved {
			return types.NewError(types.KindConflict, id, "only removed modules can be deleted (state %s)", cur.State)
		}
		delete(records, id)
		return nil
	})
}

// Acquire takes the operation lease for id. Mutating operations hold the
// lease for their whole duration; a second operation on the same id fails
// fast with conflict instead of queueing behind the first.
func (s *Store) Acquire(id string) (release func(), err error) {
	v, _ := s.leases.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, types.NewError(types.KindConflict, id, "another operation is in progress")
	}

	var once sync.Once
	return func() { once.Do(mu.Unlock) }, nil
}

// commit applies fn to a private copy of the records and publishes it.
// Nothing is published when fn returns an error.
func (s *Store) commit(fn func(records map[string]types.Record, rev uint64) error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	cur := s.current.Load()
	records := make(map[string]types.Record, len(cur.records)+1)
	for id, rec := range cur.records {
		records[id] = rec
	}

	rev := cur.revision + 1
	if err := fn(records, rev); err != nil {
		return err
	}

	s.current.Store(&snapshot{records: records, revision: rev})
	return nil
}

func (s *Store) stamp(rec types.Record, rev uint64) types.Record {
	rec.Revision = rev
	rec.UpdatedAt = s.now()
	return rec
}

// Snapshot is a read-only view of the store at one revision
type Snapshot struct {
	snap *snapshot
}

// Revision returns the store revision the view was taken at
func (v Snapshot) Revision() uint64 {
	return v.snap.revision
}

// Get returns a copy of a record as of the snapshot
func (v Snapshot) Get(id string) (types.Record, bool) {
	rec, ok := v.snap.records[id]
	if !ok {
		return types.Record{}, false
	}
	return rec.Clone(), true
}

// Len returns the number of records in the snapshot
func (v Snapshot) Len() int {
	return len(v.snap.records)
}

// List returns copies of matching records sorted by id
func (v Snapshot) List(filters ...Filter) []types.Record {
	out := make([]types.Record, 0, len(v.snap.records))
	for _, rec := range v.snap.records {
		if matchAll(rec, filters) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
