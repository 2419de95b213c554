package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// scheduleSource picks the employee's schedule for a day: a dated
// assignment overrides the default schedule on the employee master.
const scheduleSource = `
	SELECT COALESCE(
		(
			SELECT esa.work_schedule_id
			FROM employee_schedule_assignments esa
			WHERE esa.employee_id = $1
			  AND days.day BETWEEN esa.start_date AND esa.end_date
			ORDER BY esa.start_date DESC
			LIMIT 1
		),
		(
			SELECT e.work_schedule_id
			FROM employees e
			WHERE e.id = $1 AND e.company_id = $2
		)
	) AS id`

type scheduleProviderImpl struct {
	db  *database.DB
	loc *time.Location
}

// ExpectedHours implements timetrack.ScheduleProvider.
func (s *scheduleProviderImpl) ExpectedHours(ctx context.Context, employeeID string, start, end time.Time, companyID string) (map[string]decimal.Decimal, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		WITH days AS (
			SELECT d::date AS day
			FROM generate_series($3::text::date, $4::text::date, INTERVAL '1 day') AS d
		)
		SELECT
			to_char(days.day, 'YYYY-MM-DD'),
			(
				EXTRACT(EPOCH FROM (wst.clock_out_time - wst.clock_in_time))
				+ CASE WHEN wst.is_next_day_checkout THEN 86400 ELSE 0 END
				- COALESCE(EXTRACT(EPOCH FROM (wst.break_end_time - wst.break_start_time)), 0)
			)::bigint AS expected_seconds
		FROM days
		JOIN LATERAL (` + scheduleSource + `) ts ON TRUE
		JOIN work_schedules ws ON ws.id = ts.id
			AND ws.company_id = $2
			AND ws.deleted_at IS NULL
		-- EXTRACT(ISODOW) mengembalikan 1 (Senin) s/d 7 (Minggu)
		JOIN work_schedule_times wst ON wst.work_schedule_id = ws.id
			AND wst.day_of_week = EXTRACT(ISODOW FROM days.day)::int
		ORDER BY days.day
	`

	rows, err := q.Query(ctx, query, employeeID, companyID, dateParam(start), dateParam(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query expected hours: %w", err)
	}
	defer rows.Close()

	expected := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day string
		var seconds int64
		if err := rows.Scan(&day, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan expected hours: %w", err)
		}
		if seconds < 0 {
			seconds = 0
		}
		expected[day] = decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)).Round(2)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expected hours: %w", err)
	}

	return expected, nil
}

// ScheduledEnd implements timetrack.ScheduleProvider.
func (s *scheduleProviderImpl) ScheduledEnd(ctx context.Context, employeeID string, date time.Time, companyID string) (*time.Time, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		WITH days AS (
			SELECT $3::text::date AS day
		)
		SELECT
			EXTRACT(HOUR FROM wst.clock_out_time)::int,
			EXTRACT(MINUTE FROM wst.clock_out_time)::int,
			wst.is_next_day_checkout
		FROM days
		JOIN LATERAL (` + scheduleSource + `) ts ON TRUE
		JOIN work_schedules ws ON ws.id = ts.id
			AND ws.company_id = $2
			AND ws.deleted_at IS NULL
		JOIN work_schedule_times wst ON wst.work_schedule_id = ws.id
			AND wst.day_of_week = EXTRACT(ISODOW FROM days.day)::int
	`

	var hour, minute int
	var nextDay bool
	err := q.QueryRow(ctx, query, employeeID, companyID, dateParam(date)).Scan(&hour, &minute, &nextDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scheduled end: %w", err)
	}

	local := date.In(s.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, s.loc)
	if nextDay {
		end = end.AddDate(0, 0, 1)
	}
	return &end, nil
}

func NewScheduleProvider(db *database.DB, loc *time.Location) timetrack.ScheduleProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &scheduleProviderImpl{db: db, loc: loc}
}
