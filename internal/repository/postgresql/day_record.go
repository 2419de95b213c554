package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type dayRecordRepositoryImpl struct {
	db *database.DB
}

const dayRecordColumns = `
	id, company_id, employee_id, date, status,
	worked_hours::text, paused_hours::text,
	mass_corrected, auto_completed, review_reason,
	approved_by, approved_at, created_at, updated_at`

type dayRecordRow struct {
	record      timetrack.DayRecord
	status      string
	workedHours *string
	pausedHours *string
}

func (r *dayRecordRow) targets() []any {
	return []any{
		&r.record.ID, &r.record.CompanyID, &r.record.EmployeeID, &r.record.Date, &r.status,
		&r.workedHours, &r.pausedHours,
		&r.record.MassCorrected, &r.record.AutoCompleted, &r.record.ReviewReason,
		&r.record.ApprovedBy, &r.record.ApprovedAt, &r.record.CreatedAt, &r.record.UpdatedAt,
	}
}

func (r *dayRecordRow) toEntity() (timetrack.DayRecord, error) {
	rec := r.record
	rec.Status = timetrack.DayStatus(r.status)

	var err error
	if rec.WorkedHours, err = parseHours(r.workedHours); err != nil {
		return timetrack.DayRecord{}, fmt.Errorf("invalid worked_hours: %w", err)
	}
	if rec.PausedHours, err = parseHours(r.pausedHours); err != nil {
		return timetrack.DayRecord{}, fmt.Errorf("invalid paused_hours: %w", err)
	}
	return rec, nil
}

// GetDayRecord implements timetrack.DayRecordRepository.
func (d *dayRecordRepositoryImpl) GetDayRecord(ctx context.Context, employeeID string, date time.Time, companyID string) (timetrack.DayRecord, error) {
	q := GetQuerier(ctx, d.db)

	query := `SELECT ` + dayRecordColumns + `
		FROM day_records
		WHERE employee_id = $1 AND date = $2::text::date AND company_id = $3`
	// serialize writers of the same day
	if _, inTx := txFromContext(ctx); inTx {
		query += ` FOR UPDATE`
	}

	var row dayRecordRow
	err := q.QueryRow(ctx, query, employeeID, dateParam(date), companyID).Scan(row.targets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timetrack.DayRecord{}, timetrack.ErrDayNotFound
		}
		return timetrack.DayRecord{}, fmt.Errorf("failed to get day record: %w", err)
	}

	record, err := row.toEntity()
	if err != nil {
		return timetrack.DayRecord{}, err
	}
	record.Date = date

	events, err := d.loadEvents(ctx, q, []string{record.ID})
	if err != nil {
		return timetrack.DayRecord{}, err
	}
	record.Events = events[record.ID]

	return record, nil
}

// SaveDayRecord implements timetrack.DayRecordRepository.
func (d *dayRecordRepositoryImpl) SaveDayRecord(ctx context.Context, record timetrack.DayRecord) (timetrack.DayRecord, error) {
	if _, inTx := txFromContext(ctx); !inTx {
		var saved timetrack.DayRecord
		err := WithTransaction(ctx, d.db, func(tx pgx.Tx) error {
			var err error
			saved, err = d.SaveDayRecord(ContextWithTx(ctx, tx), record)
			return err
		})
		return saved, err
	}

	q := GetQuerier(ctx, d.db)

	query := `
		INSERT INTO day_records (
			id, company_id, employee_id, date, status,
			worked_hours, paused_hours, mass_corrected, auto_completed,
			review_reason, approved_by, approved_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::text::date, $5,
			CAST($6::text AS NUMERIC), CAST($7::text AS NUMERIC), $8, $9,
			$10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			worked_hours = EXCLUDED.worked_hours,
			paused_hours = EXCLUDED.paused_hours,
			mass_corrected = EXCLUDED.mass_corrected,
			auto_completed = EXCLUDED.auto_completed,
			review_reason = EXCLUDED.review_reason,
			approved_by = EXCLUDED.approved_by,
			approved_at = EXCLUDED.approved_at,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		record.ID,
		record.CompanyID,
		record.EmployeeID,
		dateParam(record.Date),
		string(record.Status),
		formatHours(record.WorkedHours),
		formatHours(record.PausedHours),
		record.MassCorrected,
		record.AutoCompleted,
		record.ReviewReason,
		record.ApprovedBy,
		record.ApprovedAt,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on (company_id, employee_id, date)
			return timetrack.DayRecord{}, fmt.Errorf("%w: %s on %s", timetrack.ErrConcurrentUpdate, record.EmployeeID, dateParam(record.Date))
		}
		return timetrack.DayRecord{}, fmt.Errorf("failed to upsert day record: %w", err)
	}

	ids := make([]string, 0, len(record.Events))
	for _, ev := range record.Events {
		ids = append(ids, ev.ID)
	}

	var missing string
	err = q.QueryRow(ctx, `
		SELECT id::text FROM clock_events
		WHERE day_record_id = $1 AND NOT (id::text = ANY($2::text[]))
		LIMIT 1
	`, record.ID, ids).Scan(&missing)
	switch {
	case err == nil:
		return timetrack.DayRecord{}, fmt.Errorf("%w: %s", timetrack.ErrEventRemoved, missing)
	case !errors.Is(err, pgx.ErrNoRows):
		return timetrack.DayRecord{}, fmt.Errorf("failed to check stored clock events: %w", err)
	}

	eventQuery := `
		INSERT INTO clock_events (
			id, day_record_id, type, timestamp, original_timestamp, edited_by, edit_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			timestamp = EXCLUDED.timestamp,
			original_timestamp = EXCLUDED.original_timestamp,
			edited_by = EXCLUDED.edited_by,
			edit_reason = EXCLUDED.edit_reason
	`
	for _, ev := range record.Events {
		createdAt := ev.CreatedAt
		if createdAt.IsZero() {
			createdAt = record.UpdatedAt
		}
		_, err := q.Exec(ctx, eventQuery,
			ev.ID, record.ID, string(ev.Type), ev.Timestamp, ev.OriginalTimestamp,
			ev.EditedBy, ev.EditReason, createdAt,
		)
		if err != nil {
			return timetrack.DayRecord{}, fmt.Errorf("failed to upsert clock event %s: %w", ev.ID, err)
		}
	}

	return record, nil
}

// ListDayRecords implements timetrack.DayRecordRepository.
func (d *dayRecordRepositoryImpl) ListDayRecords(ctx context.Context, employeeID string, start, end time.Time, companyID string) ([]timetrack.DayRecord, error) {
	q := GetQuerier(ctx, d.db)

	query := `SELECT ` + dayRecordColumns + `
		FROM day_records
		WHERE employee_id = $1 AND company_id = $2
		  AND date BETWEEN $3::text::date AND $4::text::date
		ORDER BY date ASC`

	return d.queryRecords(ctx, q, start.Location(), query, employeeID, companyID, dateParam(start), dateParam(end))
}

// ListOpenDaysBefore implements timetrack.DayRecordRepository.
func (d *dayRecordRepositoryImpl) ListOpenDaysBefore(ctx context.Context, before time.Time) ([]timetrack.DayRecord, error) {
	q := GetQuerier(ctx, d.db)

	query := `SELECT ` + dayRecordColumns + `
		FROM day_records
		WHERE status = 'open' AND date < $1::text::date
		ORDER BY date ASC, company_id, employee_id`

	return d.queryRecords(ctx, q, before.Location(), query, dateParam(before))
}

func (d *dayRecordRepositoryImpl) queryRecords(ctx context.Context, q database.Querier, loc *time.Location, query string, args ...any) ([]timetrack.DayRecord, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query day records: %w", err)
	}
	defer rows.Close()

	var records []timetrack.DayRecord
	for rows.Next() {
		var row dayRecordRow
		if err := rows.Scan(row.targets()...); err != nil {
			return nil, fmt.Errorf("failed to scan day record: %w", err)
		}
		record, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		record.Date = dateInLocation(record.Date, loc)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day records: %w", err)
	}

	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	events, err := d.loadEvents(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Events = events[records[i].ID]
	}

	return records, nil
}

func (d *dayRecordRepositoryImpl) loadEvents(ctx context.Context, q database.Querier, dayIDs []string) (map[string][]timetrack.ClockEvent, error) {
	query := `
		SELECT id, day_record_id::text, type, timestamp, original_timestamp, edited_by, edit_reason, created_at
		FROM clock_events
		WHERE day_record_id::text = ANY($1::text[])
		ORDER BY timestamp ASC, created_at ASC
	`

	rows, err := q.Query(ctx, query, dayIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query clock events: %w", err)
	}
	defer rows.Close()

	events := make(map[string][]timetrack.ClockEvent, len(dayIDs))
	for rows.Next() {
		var ev timetrack.ClockEvent
		var dayID, eventType string
		if err := rows.Scan(
			&ev.ID, &dayID, &eventType, &ev.Timestamp, &ev.OriginalTimestamp,
			&ev.EditedBy, &ev.EditReason, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan clock event: %w", err)
		}
		ev.Type = timetrack.ClockEventType(eventType)
		events[dayID] = append(events[dayID], ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clock events: %w", err)
	}

	return events, nil
}

// dateParam sends the calendar day as text so the server never shifts it
// across time zones.
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

// dateInLocation reinterprets a DATE column, scanned as UTC midnight, as
// midnight in loc.
func dateInLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func parseHours(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	v, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatHours(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func NewDayRecordRepository(db *database.DB) timetrack.DayRecordRepository {
	return &dayRecordRepositoryImpl{db: db}
}
