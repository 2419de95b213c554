package memory

import (
	"context"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
)

// AuditLog is the in-memory AuditSink. Entries can be read back.
type AuditLog struct {
	store *Store
}

// Record implements timetrack.AuditSink.
func (a *AuditLog) Record(ctx context.Context, entry timetrack.AuditEntry) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.audit = append(a.store.audit, entry)
	return nil
}

// Entries returns the recorded entries in insertion order.
func (a *AuditLog) Entries() []timetrack.AuditEntry {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	out := make([]timetrack.AuditEntry, len(a.store.audit))
	copy(out, a.store.audit)
	return out
}

func NewAuditLog(store *Store) *AuditLog {
	return &AuditLog{store: store}
}
