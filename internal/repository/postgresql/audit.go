package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/database"
)

type auditTrailRepositoryImpl struct {
	db *database.DB
}

type clockEventAuditValues struct {
	EmployeeID string     `json:"employee_id"`
	Date       string     `json:"date"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Record implements timetrack.AuditSink.
func (a *auditTrailRepositoryImpl) Record(ctx context.Context, entry timetrack.AuditEntry) error {
	q := GetQuerier(ctx, a.db)

	var oldValues []byte
	if entry.OldTimestamp != nil {
		b, err := json.Marshal(clockEventAuditValues{
			EmployeeID: entry.EmployeeID,
			Date:       entry.Date.Format("2006-01-02"),
			Timestamp:  entry.OldTimestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to encode old audit values: %w", err)
		}
		oldValues = b
	}

	newTimestamp := entry.NewTimestamp
	newValues, err := json.Marshal(clockEventAuditValues{
		EmployeeID: entry.EmployeeID,
		Date:       entry.Date.Format("2006-01-02"),
		Timestamp:  &newTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to encode new audit values: %w", err)
	}

	query := `
		INSERT INTO audit_trails (
			id, company_id, user_id, action, table_name, record_id, old_values, new_values, reason, created_at
		) VALUES ($1, $2, $3, $4, 'clock_events', $5, $6::jsonb, $7::jsonb, $8, $9)
	`

	_, err = q.Exec(ctx, query,
		entry.ID,
		entry.CompanyID,
		entry.Actor,
		string(entry.Action),
		entry.EventID,
		nullableJSON(oldValues),
		string(newValues),
		entry.Reason,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit trail: %w", err)
	}

	return nil
}

func nullableJSON(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

func NewAuditTrailRepository(db *database.DB) timetrack.AuditSink {
	return &auditTrailRepositoryImpl{db: db}
}
