// Package memory keeps time-tracking state in process memory. It backs the
// service tests and STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

type txKey struct{}

// Store is the shared state behind the memory repositories.
type Store struct {
	mu    sync.RWMutex
	days  map[string]timetrack.DayRecord
	audit []timetrack.AuditEntry

	// txMu serializes transactions, the way row locks do for PostgreSQL.
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		days: make(map[string]timetrack.DayRecord),
	}
}

type snapshot struct {
	days  map[string]timetrack.DayRecord
	audit []timetrack.AuditEntry
}

// snapshot deep-copies the state. It MUST be called without holding s.mu.
func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make(map[string]timetrack.DayRecord, len(s.days))
	for k, v := range s.days {
		days[k] = v.Clone()
	}
	audit := make([]timetrack.AuditEntry, len(s.audit))
	copy(audit, s.audit)
	return snapshot{days: days, audit: audit}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = snap.days
	s.audit = snap.audit
}

type transactor struct {
	store *Store
}

// WithinTransaction implements timetrack.Transactor. The state is restored
// when fn fails; nested calls join the outer transaction.
func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); ok {
		return fn(ctx)
	}

	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.store.restore(snap)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func NewTransactor(store *Store) timetrack.Transactor {
	return &transactor{store: store}
}
