package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sakif/spacesync/internal/apperror"
	"github.com/sakif/spacesync/internal/model"
	"github.com/sakif/spacesync/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeTable is an in-memory RecordStore with the same conditional-write
// semantics as the SQL store. Records are copied on the way in and out so
// tests can reuse and mutate their fixtures freely.
//
// Failure injection:
//   - getErr / saveErr: returned for the listed record IDs
//   - listErr: returned by ChangedSince and All
//   - sweepErr: returned by SoftDeleteAll
//   - beforeSave: runs just before Save applies, used to simulate a
//     concurrent writer sneaking in between Get and Save
type fakeTable[T model.Record] struct {
	mu    sync.Mutex
	rows  map[string]T // key: userID + "/" + id
	clone func(T) T

	getCalls int

	getErr     map[string]error
	saveErr    map[string]error
	listErr    error
	sweepErr   error
	beforeSave func(rec T)
}

func newFakeTable[T model.Record](clone func(T) T) *fakeTable[T] {
	return &fakeTable[T]{
		rows:    map[string]T{},
		clone:   clone,
		getErr:  map[string]error{},
		saveErr: map[string]error{},
	}
}

func rowKey(userID, id string) string { return userID + "/" + id }

func (f *fakeTable[T]) Get(ctx context.Context, userID, id string) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	var zero T
	if err := f.getErr[id]; err != nil {
		return zero, err
	}
	rec, ok := f.rows[rowKey(userID, id)]
	if !ok {
		return zero, apperror.NotFound(string(rec.Kind()), id)
	}
	return f.clone(rec), nil
}

func (f *fakeTable[T]) Save(ctx context.Context, rec T) (bool, error) {
	if f.beforeSave != nil {
		hook := f.beforeSave
		f.beforeSave = nil
		hook(rec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	m := rec.Meta()
	if err := f.saveErr[m.ID]; err != nil {
		return false, err
	}
	k := rowKey(m.UserID, m.ID)
	cp := f.clone(rec)
	if cur, ok := f.rows[k]; ok {
		if !cur.Meta().UpdatedAt.Before(m.UpdatedAt) {
			return false, nil
		}
		cp.Meta().CreatedAt = cur.Meta().CreatedAt
	}
	f.rows[k] = cp
	return true, nil
}

func (f *fakeTable[T]) ChangedSince(ctx context.Context, userID string, since time.Time, excludeDevice string) ([]T, error) {
	return f.filter(func(m *model.SyncMeta) bool {
		return m.UserID == userID && m.UpdatedAt.After(since) && m.DeviceID != excludeDevice
	})
}

func (f *fakeTable[T]) All(ctx context.Context, userID string) ([]T, error) {
	return f.filter(func(m *model.SyncMeta) bool { return m.UserID == userID })
}

func (f *fakeTable[T]) SoftDeleteAll(ctx context.Context, userID, deviceID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	var n int64
	for _, rec := range f.rows {
		m := rec.Meta()
		if m.UserID == userID && !m.Deleted {
			m.Deleted = true
			m.DeviceID = deviceID
			m.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (f *fakeTable[T]) filter(keep func(m *model.SyncMeta) bool) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []T{}
	for _, rec := range f.rows {
		if keep(rec.Meta()) {
			out = append(out, f.clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Meta(), out[j].Meta()
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// put stores rec directly, bypassing the conditional write.
func (f *fakeTable[T]) put(rec T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := rec.Meta()
	f.rows[rowKey(m.UserID, m.ID)] = f.clone(rec)
}

// peek returns the stored record or the zero value.
func (f *fakeTable[T]) peek(userID, id string) (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[rowKey(userID, id)]
	if !ok {
		return rec, false
	}
	return f.clone(rec), true
}

// fakeStore bundles four fakeTables. WithinTx just runs fn: there is no
// rollback, which the SQL store's own tests cover. afterTx, when set, runs
// once after the next successful transaction; restore tests use it to land a
// device write between the sweep and the replay.
type fakeStore struct {
	spaces      *fakeTable[*model.Space]
	categories  *fakeTable[*model.Category]
	items       *fakeTable[*model.Item]
	preferences *fakeTable[*model.Preferences]

	txCalls int
	afterTx func()
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		spaces:      newFakeTable(func(s *model.Space) *model.Space { c := *s; return &c }),
		categories:  newFakeTable(func(c *model.Category) *model.Category { cp := *c; return &cp }),
		items:       newFakeTable(func(it *model.Item) *model.Item { c := *it; return &c }),
		preferences: newFakeTable(func(p *model.Preferences) *model.Preferences { c := *p; return &c }),
	}
}

func (s *fakeStore) Spaces() repository.RecordStore[*model.Space] { return s.spaces }
func (s *fakeStore) Categories() repository.RecordStore[*model.Category] { return s.categories }
func (s *fakeStore) Items() repository.RecordStore[*model.Item] { return s.items }
func (s *fakeStore) Preferences() repository.RecordStore[*model.Preferences] { return s.preferences }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	s.txCalls++
	if err := fn(ctx, s); err != nil {
		return err
	}
	if s.afterTx != nil {
		hook := s.afterTx
		s.afterTx = nil
		hook()
	}
	return nil
}

// fakeArchiver records what it was asked to store.
type fakeArchiver struct {
	err    error
	calls  int
	userID string
	at     time.Time
	body   []byte
}

func (a *fakeArchiver) Archive(ctx context.Context, userID string, at time.Time, body []byte) (string, error) {
	a.calls++
	a.userID, a.at, a.body = userID, at, body
	if a.err != nil {
		return "", a.err
	}
	return "users/" + userID + "/backups/test.json", nil
}
