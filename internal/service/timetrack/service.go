package timetrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/validator"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

const (
	defaultMaxBatchDays  = 62
	defaultMaxPeriodDays = 366
	defaultStaleAfter    = 2 * time.Hour
)

// Options tunes limits of the service. Non-positive limits and a negative
// StaleAfter fall back to defaults.
type Options struct {
	MaxBatchDays  int
	MaxPeriodDays int
	StaleAfter    time.Duration    // grace after the scheduled end before auto-completion
	Now           func() time.Time // clock, time.Now when nil
}

type TimeTrackServiceImpl struct {
	timetrack.DayRecordRepository
	timetrack.ScheduleProvider
	timetrack.AbsenceProvider
	audit      timetrack.AuditSink
	tx         timetrack.Transactor
	normalizer Normalizer
	opts       Options
}

func NewTimeTrackService(
	tx timetrack.Transactor,
	dayRecordRepository timetrack.DayRecordRepository,
	scheduleProvider timetrack.ScheduleProvider,
	absenceProvider timetrack.AbsenceProvider,
	auditSink timetrack.AuditSink,
	normalizer Normalizer,
	opts Options,
) *TimeTrackServiceImpl {
	if opts.MaxBatchDays <= 0 {
		opts.MaxBatchDays = defaultMaxBatchDays
	}
	if opts.MaxPeriodDays <= 0 {
		opts.MaxPeriodDays = defaultMaxPeriodDays
	}
	if opts.StaleAfter < 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TimeTrackServiceImpl{
		DayRecordRepository: dayRecordRepository,
		ScheduleProvider:    scheduleProvider,
		AbsenceProvider:     absenceProvider,
		audit:               auditSink,
		tx:                  tx,
		normalizer:          normalizer,
		opts:                opts,
	}
}

var _ timetrack.Service = (*TimeTrackServiceImpl)(nil)

// RecordEvent implements timetrack.Service.
func (s *TimeTrackServiceImpl) RecordEvent(ctx context.Context, req timetrack.RecordEventRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = claims.EmployeeID
	}
	if employeeID == "" {
		return timetrack.DayRecordResponse{}, user.ErrEmployeeIDRequired
	}
	if err := authorizeEmployee(claims, employeeID, user.PermissionTimetrackCorrect); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	eventType := timetrack.ClockEventType(req.Type)

	explicitDate := req.Date != nil && *req.Date != ""
	var date time.Time
	if explicitDate {
		date, err = s.normalizer.NormalizeDate(*req.Date)
		if err != nil {
			return timetrack.DayRecordResponse{}, err
		}
	}

	at := now
	if req.Timestamp != nil {
		raw := strings.TrimSpace(*req.Timestamp)
		if explicitDate {
			at, err = s.normalizer.NormalizeTime(raw, date)
		} else {
			at, err = s.normalizer.ParseInstant(raw)
		}
		if err != nil {
			return timetrack.DayRecordResponse{}, err
		}
	}
	if !explicitDate {
		date = s.normalizer.StartOfDay(at)
	}

	var saved timetrack.DayRecord
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		day, err := s.resolveClockingDay(ctx, employeeID, date, claims.CompanyID, eventType, explicitDate, now)
		if err != nil {
			return err
		}
		if day.Status != timetrack.DayStatusOpen {
			return fmt.Errorf("%w: %s is %s", timetrack.ErrDayClosed, s.normalizer.DayKey(day.Date), day.Status)
		}

		candidate := day.Clone()
		candidate.Events = append(candidate.Events, timetrack.ClockEvent{
			ID:        newID(),
			Type:      eventType,
			Timestamp: at,
			CreatedAt: now,
		})
		sortEventsInPlace(candidate.Events)
		if err := ValidateSequence(candidate.Events); err != nil {
			return err
		}
		candidate.UpdatedAt = now

		saved, err = s.SaveDayRecord(ctx, candidate)
		if err != nil {
			return fmt.Errorf("failed to save day record: %w", err)
		}
		return nil
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	slog.Info("Clock event recorded",
		"employee_id", employeeID, "date", s.normalizer.DayKey(saved.Date), "type", eventType)

	return s.toDayRecordResponse(saved), nil
}

// resolveClockingDay finds the day a new event belongs to. An entrada opens
// the day when no record exists; any other event without an explicit date
// may continue an overnight span left open on the previous day.
func (s *TimeTrackServiceImpl) resolveClockingDay(
	ctx context.Context,
	employeeID string,
	date time.Time,
	companyID string,
	eventType timetrack.ClockEventType,
	explicitDate bool,
	now time.Time,
) (timetrack.DayRecord, error) {
	day, err := s.GetDayRecord(ctx, employeeID, date, companyID)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, timetrack.ErrDayNotFound) {
		return timetrack.DayRecord{}, fmt.Errorf("failed to get day record: %w", err)
	}

	if eventType != timetrack.EventEntrada {
		if !explicitDate {
			prev, err := s.GetDayRecord(ctx, employeeID, date.AddDate(0, 0, -1), companyID)
			switch {
			case err == nil:
				if prev.Status == timetrack.DayStatusOpen && AggregateEvents(prev.Events).OpenSpan {
					return prev, nil
				}
			case !errors.Is(err, timetrack.ErrDayNotFound):
				return timetrack.DayRecord{}, fmt.Errorf("failed to get previous day record: %w", err)
			}
		}
		return timetrack.DayRecord{}, fmt.Errorf("%w: day cannot start with %s", timetrack.ErrInvalidSequence, eventType)
	}

	return timetrack.DayRecord{
		ID:         newID(),
		EmployeeID: employeeID,
		CompanyID:  companyID,
		Date:       date,
		Status:     timetrack.DayStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetDay implements timetrack.Service.
func (s *TimeTrackServiceImpl) GetDay(ctx context.Context, employeeID string, date string) (timetrack.DayRecordResponse, error) {
	if validator.IsEmpty(employeeID) {
		return timetrack.DayRecordResponse{}, validator.ValidationErrors{{
			Field:   "employee_id",
			Message: "employee_id is required",
		}}
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	if err := authorizeEmployee(claims, employeeID, user.PermissionTimetrackViewAll); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	day, err := s.normalizer.NormalizeDate(date)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	record, err := s.GetDayRecord(ctx, employeeID, day, claims.CompanyID)
	if err != nil {
		if errors.Is(err, timetrack.ErrDayNotFound) {
			return timetrack.DayRecordResponse{}, err
		}
		return timetrack.DayRecordResponse{}, fmt.Errorf("failed to get day record: %w", err)
	}

	return s.toDayRecordResponse(record), nil
}

// ListDays implements timetrack.Service.
func (s *TimeTrackServiceImpl) ListDays(ctx context.Context, req timetrack.DateRangeRequest) (timetrack.ListDayRecordsResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.ListDayRecordsResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.ListDayRecordsResponse{}, err
	}
	if err := authorizeEmployee(claims, req.EmployeeID, user.PermissionTimetrackViewAll); err != nil {
		return timetrack.ListDayRecordsResponse{}, err
	}

	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return timetrack.ListDayRecordsResponse{}, err
	}

	records, err := s.ListDayRecords(ctx, req.EmployeeID, start, end, claims.CompanyID)
	if err != nil {
		return timetrack.ListDayRecordsResponse{}, fmt.Errorf("failed to list day records: %w", err)
	}

	days := make([]timetrack.DayRecordResponse, 0, len(records))
	for _, r := range records {
		days = append(days, s.toDayRecordResponse(r))
	}

	return timetrack.ListDayRecordsResponse{
		EmployeeID: req.EmployeeID,
		StartDate:  s.normalizer.DayKey(start),
		EndDate:    s.normalizer.DayKey(end),
		Days:       days,
	}, nil
}

// CloseDay implements timetrack.Service.
func (s *TimeTrackServiceImpl) CloseDay(ctx context.Context, req timetrack.CloseDayRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	if err := authorizeEmployee(claims, req.EmployeeID, user.PermissionTimetrackCorrect); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	saved, err := s.mutateDay(ctx, req.EmployeeID, req.Date, claims.CompanyID, func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error) {
		return nil, Finalize(day, now)
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	slog.Info("Day record finalized", "employee_id", req.EmployeeID, "date", req.Date, "worked_hours", saved.WorkedHours)
	return s.toDayRecordResponse(saved), nil
}

// RequestReview implements timetrack.Service.
func (s *TimeTrackServiceImpl) RequestReview(ctx context.Context, req timetrack.ReviewRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	// employees may dispute their own days
	if err := authorizeEmployee(claims, req.EmployeeID, user.PermissionTimetrackCorrect); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	saved, err := s.mutateDay(ctx, req.EmployeeID, req.Date, claims.CompanyID, func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error) {
		return nil, RequestReview(day, req.Reason, now)
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	slog.Info("Day record put under review", "employee_id", req.EmployeeID, "date", req.Date, "requested_by", claims.UserID)
	return s.toDayRecordResponse(saved), nil
}

// ResolveReview implements timetrack.Service.
func (s *TimeTrackServiceImpl) ResolveReview(ctx context.Context, req timetrack.ResolveReviewRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	if err := requirePermission(claims, user.PermissionTimetrackApprove); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	saved, err := s.mutateDay(ctx, req.EmployeeID, req.Date, claims.CompanyID, func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error) {
		return nil, ResolveReview(day, now)
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	return s.toDayRecordResponse(saved), nil
}

// ApproveDay implements timetrack.Service.
func (s *TimeTrackServiceImpl) ApproveDay(ctx context.Context, req timetrack.ApproveDayRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	if err := requirePermission(claims, user.PermissionTimetrackApprove); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	saved, err := s.mutateDay(ctx, req.EmployeeID, req.Date, claims.CompanyID, func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error) {
		return nil, Approve(day, claims.UserID, now)
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	slog.Info("Day record approved", "employee_id", req.EmployeeID, "date", req.Date, "approved_by", claims.UserID, "notes", notes)
	return s.toDayRecordResponse(saved), nil
}

// CorrectEvent implements timetrack.Service.
func (s *TimeTrackServiceImpl) CorrectEvent(ctx context.Context, req timetrack.CorrectEventRequest) (timetrack.DayRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	mode := timetrack.CorrectionOrdinary
	permission := user.PermissionTimetrackCorrect
	if req.Mass {
		mode = timetrack.CorrectionMass
		permission = user.PermissionTimetrackMassCorrect
	}
	if err := requirePermission(claims, permission); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	date, err := s.normalizer.NormalizeDate(req.Date)
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}
	if _, err := s.correctionInstant(req.NewTime, &timetrack.DayRecord{Date: date}, req.EventID); err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	now := s.now()
	saved, err := s.mutateDay(ctx, req.EmployeeID, req.Date, claims.CompanyID, func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error) {
		newTimestamp, err := s.correctionInstant(req.NewTime, day, req.EventID)
		if err != nil {
			return nil, err
		}
		entry, err := CorrectEvent(day, timetrack.CorrectionRequest{
			EventID:      req.EventID,
			NewTimestamp: newTimestamp,
			Reason:       req.Reason,
			Actor:        claims.UserID,
		}, mode, now)
		if err != nil {
			return nil, err
		}
		return []timetrack.AuditEntry{entry}, nil
	})
	if err != nil {
		return timetrack.DayRecordResponse{}, err
	}

	slog.Info("Clock event corrected",
		"employee_id", req.EmployeeID, "date", req.Date, "event_id", req.EventID,
		"mass", req.Mass, "corrected_by", claims.UserID, "status", saved.Status)
	return s.toDayRecordResponse(saved), nil
}

type batchGroup struct {
	key         string
	date        time.Time
	corrections []timetrack.CorrectionRequest
	newTimes    []string // raw input per correction, resolved against the loaded day
}

// BatchCorrect implements timetrack.Service.
func (s *TimeTrackServiceImpl) BatchCorrect(ctx context.Context, req timetrack.BatchCorrectionRequest) (timetrack.BatchCorrectionResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.BatchCorrectionResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.BatchCorrectionResponse{}, err
	}

	mode := timetrack.CorrectionOrdinary
	permission := user.PermissionTimetrackCorrect
	if req.Mass {
		mode = timetrack.CorrectionMass
		permission = user.PermissionTimetrackMassCorrect
	}
	if err := requirePermission(claims, permission); err != nil {
		return timetrack.BatchCorrectionResponse{}, err
	}

	groups, err := s.groupBatch(req.Items, claims.UserID)
	if err != nil {
		return timetrack.BatchCorrectionResponse{}, err
	}
	if len(groups) > s.opts.MaxBatchDays {
		return timetrack.BatchCorrectionResponse{}, fmt.Errorf("%w: %d days, limit is %d",
			timetrack.ErrBatchTooLarge, len(groups), s.opts.MaxBatchDays)
	}

	now := s.now()
	var saved []timetrack.DayRecord
	var corrected int
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		days := make([]timetrack.DayRecord, len(groups))
		items := make([]timetrack.BatchItem, len(groups))
		for i, g := range groups {
			items[i] = timetrack.BatchItem{Date: g.date, Corrections: g.corrections}

			day, err := s.GetDayRecord(ctx, req.EmployeeID, g.date, claims.CompanyID)
			if err != nil {
				if errors.Is(err, timetrack.ErrDayNotFound) {
					continue
				}
				return fmt.Errorf("failed to get day record %s: %w", g.key, err)
			}
			days[i] = day
			items[i].Day = &days[i]

			for j := range items[i].Corrections {
				corr := &items[i].Corrections[j]
				corr.NewTimestamp, err = s.correctionInstant(g.newTimes[j], &days[i], corr.EventID)
				if err != nil {
					return err
				}
			}
		}

		entries, err := ApplyBatch(items, mode, now)
		if err != nil {
			return err
		}

		saved = make([]timetrack.DayRecord, 0, len(days))
		for _, day := range days {
			record, err := s.SaveDayRecord(ctx, day)
			if err != nil {
				return fmt.Errorf("failed to save day record: %w", err)
			}
			saved = append(saved, record)
		}
		corrected = len(entries)
		return s.recordAudit(ctx, entries)
	})
	if err != nil {
		var partial *timetrack.PartialBatchFailureError
		if errors.As(err, &partial) {
			slog.Warn("Batch correction rejected",
				"employee_id", req.EmployeeID, "failed_days", len(partial.Failed), "would_succeed", len(partial.WouldSucceed))
		}
		return timetrack.BatchCorrectionResponse{}, err
	}

	slog.Info("Batch correction applied",
		"employee_id", req.EmployeeID, "days", len(saved), "corrections", corrected, "mass", req.Mass, "corrected_by", claims.UserID)

	resp := timetrack.BatchCorrectionResponse{
		EmployeeID: req.EmployeeID,
		Mass:       req.Mass,
		Corrected:  corrected,
		Days:       make([]timetrack.DayRecordResponse, 0, len(saved)),
	}
	for _, day := range saved {
		resp.Days = append(resp.Days, s.toDayRecordResponse(day))
	}
	return resp, nil
}

// groupBatch collects items per day, keeping first-seen order.
func (s *TimeTrackServiceImpl) groupBatch(items []timetrack.BatchCorrectionItem, actor string) ([]batchGroup, error) {
	var groups []batchGroup
	index := make(map[string]int)

	for _, item := range items {
		date, err := s.normalizer.NormalizeDate(item.Date)
		if err != nil {
			return nil, err
		}
		newTimestamp, err := s.correctionInstant(item.NewTime, &timetrack.DayRecord{Date: date}, item.EventID)
		if err != nil {
			return nil, err
		}

		key := s.normalizer.DayKey(date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, batchGroup{key: key, date: date})
		}
		groups[i].corrections = append(groups[i].corrections, timetrack.CorrectionRequest{
			EventID:      item.EventID,
			NewTimestamp: newTimestamp,
			Reason:       item.Reason,
			Actor:        actor,
		})
		groups[i].newTimes = append(groups[i].newTimes, item.NewTime)
	}
	return groups, nil
}

// correctionInstant resolves the new time of a correction. A full date-time
// is taken as is. A bare clock time is placed on the day the edited event
// currently sits on, which is the next day for the end of an overnight shift.
func (s *TimeTrackServiceImpl) correctionInstant(raw string, day *timetrack.DayRecord, eventID string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if !validator.IsValidClockTime(raw) {
		return s.normalizer.ParseInstant(raw)
	}

	anchor := s.normalizer.StartOfDay(day.Date)
	if idx := day.EventByID(eventID); idx >= 0 {
		if eventDay := s.normalizer.StartOfDay(day.Events[idx].Timestamp); eventDay.After(anchor) {
			anchor = eventDay
		}
	}
	return s.normalizer.NormalizeTime(raw, anchor)
}

// SummarizePeriod implements timetrack.Service.
func (s *TimeTrackServiceImpl) SummarizePeriod(ctx context.Context, req timetrack.DateRangeRequest) (timetrack.PeriodSummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return timetrack.PeriodSummaryResponse{}, err
	}

	claims, err := claimsFromContext(ctx)
	if err != nil {
		return timetrack.PeriodSummaryResponse{}, err
	}
	if err := authorizeEmployee(claims, req.EmployeeID, user.PermissionTimetrackViewAll); err != nil {
		return timetrack.PeriodSummaryResponse{}, err
	}

	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return timetrack.PeriodSummaryResponse{}, err
	}

	records, err := s.ListDayRecords(ctx, req.EmployeeID, start, end, claims.CompanyID)
	if err != nil {
		return timetrack.PeriodSummaryResponse{}, fmt.Errorf("failed to list day records: %w", err)
	}

	expected, err := s.ExpectedHours(ctx, req.EmployeeID, start, end, claims.CompanyID)
	if err != nil {
		return timetrack.PeriodSummaryResponse{}, fmt.Errorf("failed to get expected hours: %w", err)
	}

	clocked := make(map[string]struct{}, len(records))
	for _, r := range records {
		clocked[s.normalizer.DayKey(r.Date)] = struct{}{}
	}
	var unclocked []time.Time
	for _, d := range s.normalizer.EnumerateDays(start, end) {
		if _, ok := clocked[s.normalizer.DayKey(d)]; !ok {
			unclocked = append(unclocked, d)
		}
	}

	absences := map[string]timetrack.AbsenceKind{}
	if len(unclocked) > 0 {
		absences, err = s.ClassifyDays(ctx, req.EmployeeID, unclocked, expected, claims.CompanyID)
		if err != nil {
			return timetrack.PeriodSummaryResponse{}, fmt.Errorf("failed to classify absences: %w", err)
		}
	}

	summary := s.normalizer.SummarizePeriod(PeriodInput{
		EmployeeID: req.EmployeeID,
		RangeStart: start,
		RangeEnd:   end,
		Records:    records,
		Expected:   expected,
		Absences:   absences,
	})

	return s.toPeriodSummaryResponse(summary), nil
}

// FinalizeStaleDays implements timetrack.Service. Each day runs in its own
// transaction; a failing day is logged and left open.
func (s *TimeTrackServiceImpl) FinalizeStaleDays(ctx context.Context, asOf time.Time) (int, error) {
	today := s.normalizer.StartOfDay(asOf)

	stale, err := s.ListOpenDaysBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to list open days: %w", err)
	}

	finalized := 0
	for _, candidate := range stale {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}

		done, err := s.finalizeStaleDay(ctx, candidate, asOf)
		if err != nil {
			slog.Error("Failed to finalize stale day",
				"employee_id", candidate.EmployeeID, "date", s.normalizer.DayKey(candidate.Date), "error", err)
			continue
		}
		if done {
			finalized++
		}
	}

	return finalized, nil
}

func (s *TimeTrackServiceImpl) finalizeStaleDay(ctx context.Context, candidate timetrack.DayRecord, asOf time.Time) (bool, error) {
	done := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		day, err := s.GetDayRecord(ctx, candidate.EmployeeID, candidate.Date, candidate.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to get day record: %w", err)
		}
		if day.Status != timetrack.DayStatusOpen {
			return nil
		}

		now := s.now()
		var entries []timetrack.AuditEntry
		if AggregateEvents(day.Events).OpenSpan {
			end, err := s.ScheduledEnd(ctx, day.EmployeeID, day.Date, day.CompanyID)
			if err != nil {
				return fmt.Errorf("failed to get scheduled end: %w", err)
			}
			if end == nil {
				slog.Warn("Open day has no scheduled end, leaving it open",
					"employee_id", day.EmployeeID, "date", s.normalizer.DayKey(day.Date))
				return nil
			}
			if asOf.Before(end.Add(s.opts.StaleAfter)) {
				return nil
			}
			entry, err := AutoComplete(&day, newID(), *end, now)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if err := Finalize(&day, now); err != nil {
			return err
		}
		if _, err := s.SaveDayRecord(ctx, day); err != nil {
			return fmt.Errorf("failed to save day record: %w", err)
		}
		if err := s.recordAudit(ctx, entries); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

// mutateDay loads one day under lock, applies fn and persists the result
// together with its audit entries.
func (s *TimeTrackServiceImpl) mutateDay(
	ctx context.Context,
	employeeID string,
	date string,
	companyID string,
	fn func(day *timetrack.DayRecord) ([]timetrack.AuditEntry, error),
) (timetrack.DayRecord, error) {
	day, err := s.normalizer.NormalizeDate(date)
	if err != nil {
		return timetrack.DayRecord{}, err
	}

	var saved timetrack.DayRecord
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		record, err := s.GetDayRecord(ctx, employeeID, day, companyID)
		if err != nil {
			if errors.Is(err, timetrack.ErrDayNotFound) {
				return err
			}
			return fmt.Errorf("failed to get day record: %w", err)
		}

		entries, err := fn(&record)
		if err != nil {
			return err
		}

		saved, err = s.SaveDayRecord(ctx, record)
		if err != nil {
			return fmt.Errorf("failed to save day record: %w", err)
		}
		return s.recordAudit(ctx, entries)
	})
	return saved, err
}

func (s *TimeTrackServiceImpl) recordAudit(ctx context.Context, entries []timetrack.AuditEntry) error {
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = newID()
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
	}
	return nil
}

func (s *TimeTrackServiceImpl) parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := s.normalizer.NormalizeDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := s.normalizer.NormalizeDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is before %s", timetrack.ErrInvalidRange, endDate, startDate)
	}

	days := int(math.Round(end.Sub(start).Hours()/24)) + 1
	if days > s.opts.MaxPeriodDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days, limit is %d",
			timetrack.ErrInvalidRange, days, s.opts.MaxPeriodDays)
	}
	return start, end, nil
}

func (s *TimeTrackServiceImpl) now() time.Time {
	return s.opts.Now().In(s.normalizer.Location())
}

func claimsFromContext(ctx context.Context) (user.Claims, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return user.Claims{}, fmt.Errorf("%w: %v", timetrack.ErrMissingClaims, err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return user.Claims{}, timetrack.ErrMissingClaims
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return user.Claims{}, timetrack.ErrMissingClaims
	}

	employeeID, _ := claims["employee_id"].(string)
	role, _ := claims["role"].(string)

	return user.Claims{
		UserID:     userID,
		CompanyID:  companyID,
		EmployeeID: employeeID,
		Role:       user.Role(role),
	}, nil
}

// authorizeEmployee lets callers act on their own records and requires
// permission for anyone else's.
func authorizeEmployee(claims user.Claims, employeeID string, permission user.Permission) error {
	if employeeID != "" && employeeID == claims.EmployeeID {
		return nil
	}
	return requirePermission(claims, permission)
}

func requirePermission(claims user.Claims, permission user.Permission) error {
	if !user.HasPermission(claims.Role, permission) {
		return fmt.Errorf("%w: %s", user.ErrInsufficientPermissions, permission)
	}
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
