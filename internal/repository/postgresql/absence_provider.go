package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type absenceProviderImpl struct {
	db *database.DB
}

// ClassifyDays implements timetrack.AbsenceProvider. Days covered by an
// approved leave request are justified; otherwise a day is unjustified when
// hours were expected and none when nothing was.
func (a *absenceProviderImpl) ClassifyDays(ctx context.Context, employeeID string, dates []time.Time, expected map[string]decimal.Decimal, companyID string) (map[string]timetrack.AbsenceKind, error) {
	result := make(map[string]timetrack.AbsenceKind, len(dates))
	if len(dates) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, a.db)

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = dateParam(d)
	}

	query := `
		SELECT to_char(d.day, 'YYYY-MM-DD')
		FROM unnest($3::text[]) AS k(day_key)
		CROSS JOIN LATERAL (SELECT k.day_key::date AS day) d
		WHERE EXISTS (
			SELECT 1
			FROM leave_requests lr
			JOIN employees e ON e.id = lr.employee_id
			WHERE lr.employee_id = $1
			  AND e.company_id = $2
			  AND lr.status = 'approved'
			  AND d.day BETWEEN lr.start_date AND lr.end_date
		)
	`

	rows, err := q.Query(ctx, query, employeeID, companyID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved leave: %w", err)
	}
	defer rows.Close()

	justified := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan approved leave day: %w", err)
		}
		justified[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approved leave days: %w", err)
	}

	for _, key := range keys {
		switch {
		case hasKey(justified, key):
			result[key] = timetrack.AbsenceJustified
		case expected[key].IsPositive():
			result[key] = timetrack.AbsenceUnjustified
		default:
			result[key] = timetrack.AbsenceNone
		}
	}

	return result, nil
}

func hasKey(m map[string]struct{}, key string) bool {
	_, ok := m[key]
	return ok
}

func NewAbsenceProvider(db *database.DB) timetrack.AbsenceProvider {
	return &absenceProviderImpl{db: db}
}
