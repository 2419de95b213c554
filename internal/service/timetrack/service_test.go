package timetrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/repository/memory"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc    *TimeTrackServiceImpl
	repo   timetrack.DayRecordRepository
	audit  *memory.AuditLog
	leave  *memory.LeaveCalendar
	tokens *jwtauth.JWTAuth
}

func newServiceFixture(t *testing.T, opts Options) *serviceFixture {
	t.Helper()

	store := memory.NewStore()
	repo := memory.NewDayRecordRepository(store)
	audit := memory.NewAuditLog(store)
	leave := memory.NewLeaveCalendar()

	if opts.Now == nil {
		now := clock(date(2024, 3, 5), "10:00")
		opts.Now = func() time.Time { return now }
	}

	svc := NewTimeTrackService(
		memory.NewTransactor(store),
		repo,
		memory.OfficeWeek(madrid),
		leave,
		audit,
		NewNormalizer(madrid),
		opts,
	)

	return &serviceFixture{
		svc:    svc,
		repo:   repo,
		audit:  audit,
		leave:  leave,
		tokens: jwtauth.New("HS256", []byte("test-secret"), nil),
	}
}

func (f *serviceFixture) ctxAs(t *testing.T, userID, employeeID string, role user.Role) context.Context {
	t.Helper()
	token, _, err := f.tokens.Encode(map[string]interface{}{
		"user_id":     userID,
		"company_id":  "co-1",
		"employee_id": employeeID,
		"role":        string(role),
		"type":        "access",
	})
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), token, nil)
}

func (f *serviceFixture) employeeCtx(t *testing.T) context.Context {
	return f.ctxAs(t, "user-1", "emp-1", user.RoleEmployee)
}

func (f *serviceFixture) managerCtx(t *testing.T) context.Context {
	return f.ctxAs(t, "user-mgr", "emp-mgr", user.RoleManager)
}

func strPtr(s string) *string { return &s }

func (f *serviceFixture) clockDay(t *testing.T, ctx context.Context, day string, entries ...[2]string) timetrack.DayRecordResponse {
	t.Helper()
	var resp timetrack.DayRecordResponse
	for _, e := range entries {
		var err error
		resp, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
			Type:      e[0],
			Timestamp: strPtr(e[1]),
			Date:      strPtr(day),
		})
		require.NoError(t, err, "recording %s at %s", e[0], e[1])
	}
	return resp
}

var officeDay = [][2]string{
	{"entrada", "09:00"},
	{"pausa_inicio", "13:00"},
	{"pausa_fin", "14:00"},
	{"salida", "18:00"},
}

func TestService_RecordAndCloseDay(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := f.employeeCtx(t)

	resp := f.clockDay(t, ctx, "2024-03-04", officeDay...)
	assert.Equal(t, "open", resp.Status)
	assert.Equal(t, "8.00", resp.WorkedHours)
	assert.Equal(t, "1.00", resp.PausedHours)
	assert.False(t, resp.Cached)
	assert.Len(t, resp.Events, 4)
	assert.Equal(t, []string{"entrada"}, resp.NextAllowed)

	closed, err := f.svc.CloseDay(ctx, timetrack.CloseDayRequest{
		DayRef: timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-04"},
	})
	require.NoError(t, err)
	assert.Equal(t, "finalized", closed.Status)
	assert.True(t, closed.Cached)
	assert.Equal(t, "8.00", closed.WorkedHours)
	assert.Empty(t, closed.NextAllowed)

	_, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
		Type: "entrada", Timestamp: strPtr("19:00"), Date: strPtr("2024-03-04"),
	})
	assert.ErrorIs(t, err, timetrack.ErrDayClosed)
}

func TestService_RecordEvent_Rejections(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := f.employeeCtx(t)

	_, err := f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
		Type: "salida", Timestamp: strPtr("18:00"), Date: strPtr("2024-03-04"),
	})
	assert.ErrorIs(t, err, timetrack.ErrInvalidSequence)

	f.clockDay(t, ctx, "2024-03-04", [2]string{"entrada", "09:00"})
	_, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
		Type: "salida", Timestamp: strPtr("08:00"), Date: strPtr("2024-03-04"),
	})
	assert.ErrorIs(t, err, timetrack.ErrInvalidSequence)

	_, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
		Type: "salida", Timestamp: strPtr("25:00"), Date: strPtr("2024-03-04"),
	})
	assert.ErrorIs(t, err, timetrack.ErrInvalidFormat)

	_, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{Type: "lunch"})
	assert.Error(t, err)

	_, err = f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{
		EmployeeID: "emp-2", Type: "entrada", Timestamp: strPtr("09:00"), Date: strPtr("2024-03-04"),
	})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	_, err = f.svc.RecordEvent(context.Background(), timetrack.RecordEventRequest{Type: "entrada"})
	assert.ErrorIs(t, err, timetrack.ErrMissingClaims)
}

func TestService_RecordEvent_DefaultsToNow(t *testing.T) {
	f := newServiceFixture(t, Options{})

	resp, err := f.svc.RecordEvent(f.employeeCtx(t), timetrack.RecordEventRequest{Type: "entrada"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", resp.Date)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, clock(date(2024, 3, 5), "10:00").Format(time.RFC3339), resp.Events[0].Timestamp)
}

func TestService_RecordEvent_DateWithoutTimestamp(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := f.employeeCtx(t)

	_, err := f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{Type: "entrada", Date: strPtr("2024-03-01")})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "timestamp", verrs[0].Field)

	_, err = f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 1), "co-1")
	assert.ErrorIs(t, err, timetrack.ErrDayNotFound)
	_, err = f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 5), "co-1")
	assert.ErrorIs(t, err, timetrack.ErrDayNotFound)
}

func TestService_RecordEvent_OvernightShift(t *testing.T) {
	f := newServiceFixture(t, Options{})
	ctx := f.employeeCtx(t)

	_, err := f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{Type: "entrada", Timestamp: strPtr("2024-03-04T22:00:00")})
	require.NoError(t, err)

	resp, err := f.svc.RecordEvent(ctx, timetrack.RecordEventRequest{Type: "salida", Timestamp: strPtr("2024-03-05T06:00:00")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", resp.Date)
	assert.Equal(t, "8.00", resp.WorkedHours)

	_, err = f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 5), "co-1")
	assert.ErrorIs(t, err, timetrack.ErrDayNotFound)
}

func TestService_CorrectEvent_OvernightShift(t *testing.T) {
	for _, newTime := range []string{"06:30", "2024-03-05T06:30:00"} {
		t.Run(newTime, func(t *testing.T) {
			f := newServiceFixture(t, Options{})
			emp, mgr := f.employeeCtx(t), f.managerCtx(t)

			_, err := f.svc.RecordEvent(emp, timetrack.RecordEventRequest{Type: "entrada", Timestamp: strPtr("2024-03-04T22:00:00")})
			require.NoError(t, err)
			recorded, err := f.svc.RecordEvent(emp, timetrack.RecordEventRequest{Type: "salida", Timestamp: strPtr("2024-03-05T06:00:00")})
			require.NoError(t, err)
			require.Len(t, recorded.Events, 2)

			resp, err := f.svc.CorrectEvent(mgr, timetrack.CorrectEventRequest{
				DayRef:  timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-04"},
				EventID: recorded.Events[1].ID,
				NewTime: newTime,
				Reason:  "left after handover",
			})
			require.NoError(t, err)
			assert.Equal(t, "open", resp.Status)
			assert.Equal(t, "8.50", resp.WorkedHours)
			assert.Equal(t, clock(date(2024, 3, 5), "06:30").Format(time.RFC3339), resp.Events[1].Timestamp)
			require.NotNil(t, resp.Events[1].OriginalTimestamp)
			assert.Equal(t, clock(date(2024, 3, 5), "06:00").Format(time.RFC3339), *resp.Events[1].OriginalTimestamp)
		})
	}
}

func TestService_CorrectEvent_OutsideDay(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp, mgr := f.employeeCtx(t), f.managerCtx(t)
	ref := timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-04"}

	day := f.clockDay(t, emp, "2024-03-04", officeDay...)

	_, err := f.svc.CorrectEvent(mgr, timetrack.CorrectEventRequest{
		DayRef: ref, EventID: day.Events[3].ID, NewTime: "2024-03-07T18:00:00", Reason: "wrong week",
	})
	assert.ErrorIs(t, err, timetrack.ErrInvalidSequence)
	assert.Empty(t, f.audit.Entries())
}

func TestService_BatchCorrect_OvernightShift(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp, mgr := f.employeeCtx(t), f.managerCtx(t)

	_, err := f.svc.RecordEvent(emp, timetrack.RecordEventRequest{Type: "entrada", Timestamp: strPtr("2024-03-04T22:00:00")})
	require.NoError(t, err)
	recorded, err := f.svc.RecordEvent(emp, timetrack.RecordEventRequest{Type: "salida", Timestamp: strPtr("2024-03-05T06:00:00")})
	require.NoError(t, err)

	resp, err := f.svc.BatchCorrect(mgr, timetrack.BatchCorrectionRequest{
		EmployeeID: "emp-1",
		Items: []timetrack.BatchCorrectionItem{
			{Date: "2024-03-04", EventID: recorded.Events[0].ID, NewTime: "21:30", Reason: "cuadre"},
			{Date: "2024-03-04", EventID: recorded.Events[1].ID, NewTime: "06:30", Reason: "cuadre"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Days, 1)
	assert.Equal(t, "9.00", resp.Days[0].WorkedHours)
	assert.Equal(t, clock(date(2024, 3, 4), "21:30").Format(time.RFC3339), resp.Days[0].Events[0].Timestamp)
	assert.Equal(t, clock(date(2024, 3, 5), "06:30").Format(time.RFC3339), resp.Days[0].Events[1].Timestamp)
}

func TestService_ReviewAndApprove(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp, mgr := f.employeeCtx(t), f.managerCtx(t)
	ref := timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-04"}

	f.clockDay(t, emp, "2024-03-04", officeDay...)
	_, err := f.svc.CloseDay(emp, timetrack.CloseDayRequest{DayRef: ref})
	require.NoError(t, err)

	resp, err := f.svc.RequestReview(emp, timetrack.ReviewRequest{DayRef: ref, Reason: "left at 19:00"})
	require.NoError(t, err)
	assert.Equal(t, "under_review", resp.Status)
	assert.False(t, resp.Cached)

	_, err = f.svc.ResolveReview(emp, timetrack.ResolveReviewRequest{DayRef: ref})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	resp, err = f.svc.ResolveReview(mgr, timetrack.ResolveReviewRequest{DayRef: ref})
	require.NoError(t, err)
	assert.Equal(t, "finalized", resp.Status)
	assert.True(t, resp.Cached)

	resp, err = f.svc.ApproveDay(mgr, timetrack.ApproveDayRequest{DayRef: ref})
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)
	require.NotNil(t, resp.ApprovedBy)
	assert.Equal(t, "user-mgr", *resp.ApprovedBy)

	_, err = f.svc.ApproveDay(mgr, timetrack.ApproveDayRequest{DayRef: ref})
	assert.ErrorIs(t, err, timetrack.ErrInvalidTransition)

	_, err = f.svc.CloseDay(emp, timetrack.CloseDayRequest{DayRef: timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-08"}})
	assert.ErrorIs(t, err, timetrack.ErrDayNotFound)
}

func TestService_CorrectEvent(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp, mgr := f.employeeCtx(t), f.managerCtx(t)
	ref := timetrack.DayRef{EmployeeID: "emp-1", Date: "2024-03-04"}

	f.clockDay(t, emp, "2024-03-04", officeDay...)
	closed, err := f.svc.CloseDay(emp, timetrack.CloseDayRequest{DayRef: ref})
	require.NoError(t, err)
	salidaID := closed.Events[3].ID

	req := timetrack.CorrectEventRequest{DayRef: ref, EventID: salidaID, NewTime: "19:00", Reason: "meeting ran late"}

	_, err = f.svc.CorrectEvent(emp, req)
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)

	resp, err := f.svc.CorrectEvent(mgr, req)
	require.NoError(t, err)
	assert.Equal(t, "under_review", resp.Status)
	assert.Equal(t, "9.00", resp.WorkedHours)
	require.NotNil(t, resp.Events[3].OriginalTimestamp)
	assert.Equal(t, clock(date(2024, 3, 4), "18:00").Format(time.RFC3339), *resp.Events[3].OriginalTimestamp)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "user-mgr", entries[0].Actor)
	assert.Equal(t, salidaID, entries[0].EventID)
	assert.Equal(t, timetrack.AuditActionCorrection, entries[0].Action)

	req.NewTime = "08:00"
	_, err = f.svc.CorrectEvent(mgr, req)
	assert.ErrorIs(t, err, timetrack.ErrInvalidSequence)
	assert.Len(t, f.audit.Entries(), 1)

	req.EventID = "missing"
	req.NewTime = "19:30"
	_, err = f.svc.CorrectEvent(mgr, req)
	assert.ErrorIs(t, err, timetrack.ErrEventNotFound)
}

func TestService_BatchCorrect(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp, mgr := f.employeeCtx(t), f.managerCtx(t)

	d1 := f.clockDay(t, emp, "2024-03-04", officeDay...)
	d2 := f.clockDay(t, emp, "2024-03-05", officeDay...)

	failing := timetrack.BatchCorrectionRequest{
		EmployeeID: "emp-1",
		Mass:       true,
		Items: []timetrack.BatchCorrectionItem{
			{Date: "2024-03-04", EventID: d1.Events[3].ID, NewTime: "17:00", Reason: "cuadre"},
			{Date: "2024-03-05", EventID: d2.Events[3].ID, NewTime: "08:00", Reason: "cuadre"},
		},
	}
	_, err := f.svc.BatchCorrect(mgr, failing)
	var partial *timetrack.PartialBatchFailureError
	require.True(t, errors.As(err, &partial))
	assert.Len(t, partial.Failed, 1)
	assert.Len(t, partial.WouldSucceed, 1)

	untouched, err := f.svc.GetDay(mgr, "emp-1", "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, "8.00", untouched.WorkedHours)
	assert.False(t, untouched.MassCorrected)
	assert.Empty(t, f.audit.Entries())

	ok := timetrack.BatchCorrectionRequest{
		EmployeeID: "emp-1",
		Mass:       true,
		Items: []timetrack.BatchCorrectionItem{
			{Date: "2024-03-04", EventID: d1.Events[0].ID, NewTime: "08:00", Reason: "cuadre"},
			{Date: "2024-03-05", EventID: d2.Events[3].ID, NewTime: "19:00", Reason: "cuadre"},
			{Date: "2024-03-04", EventID: d1.Events[3].ID, NewTime: "17:00", Reason: "cuadre"},
		},
	}
	resp, err := f.svc.BatchCorrect(mgr, ok)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Corrected)
	require.Len(t, resp.Days, 2)
	assert.Equal(t, "2024-03-04", resp.Days[0].Date)
	assert.Equal(t, "8.00", resp.Days[0].WorkedHours)
	assert.True(t, resp.Days[0].MassCorrected)
	assert.Equal(t, "9.00", resp.Days[1].WorkedHours)
	assert.Len(t, f.audit.Entries(), 3)
}

func TestService_BatchCorrect_TooLarge(t *testing.T) {
	f := newServiceFixture(t, Options{MaxBatchDays: 1})

	_, err := f.svc.BatchCorrect(f.managerCtx(t), timetrack.BatchCorrectionRequest{
		EmployeeID: "emp-1",
		Items: []timetrack.BatchCorrectionItem{
			{Date: "2024-03-04", EventID: "a", NewTime: "09:00", Reason: "x"},
			{Date: "2024-03-05", EventID: "b", NewTime: "09:00", Reason: "x"},
		},
	})
	assert.ErrorIs(t, err, timetrack.ErrBatchTooLarge)
}

func TestService_SummarizePeriod(t *testing.T) {
	f := newServiceFixture(t, Options{})
	emp := f.employeeCtx(t)

	f.clockDay(t, emp, "2024-03-04", officeDay...)
	f.clockDay(t, emp, "2024-03-05", [2]string{"entrada", "09:00"})
	f.leave.AddLeave("emp-1", date(2024, 3, 6), date(2024, 3, 6))

	resp, err := f.svc.SummarizePeriod(emp, timetrack.DateRangeRequest{
		EmployeeID: "emp-1",
		StartDate:  "2024-03-04",
		EndDate:    "2024-03-10",
	})
	require.NoError(t, err)

	assert.Equal(t, "8.00", resp.TotalWorkedHours)
	assert.Equal(t, "40.00", resp.TotalExpectedHours)
	assert.Equal(t, "-32.00", resp.BalanceHours)
	assert.Equal(t, 5, resp.DaysWithoutClocking)
	assert.Equal(t, 2, resp.OpenDays)
	assert.Equal(t, 1, resp.JustifiedAbsenceDays)
	assert.Equal(t, 2, resp.UnjustifiedAbsenceDays)
	require.Len(t, resp.Days, 7)
	require.NotNil(t, resp.Days[6].Absence)
	assert.Equal(t, "none", *resp.Days[6].Absence)

	_, err = f.svc.SummarizePeriod(f.ctxAs(t, "user-2", "emp-2", user.RoleEmployee), timetrack.DateRangeRequest{
		EmployeeID: "emp-1", StartDate: "2024-03-04", EndDate: "2024-03-10",
	})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)
}

func TestService_RangeLimits(t *testing.T) {
	f := newServiceFixture(t, Options{MaxPeriodDays: 31})
	emp := f.employeeCtx(t)

	_, err := f.svc.ListDays(emp, timetrack.DateRangeRequest{EmployeeID: "emp-1", StartDate: "2024-01-01", EndDate: "2024-03-01"})
	assert.ErrorIs(t, err, timetrack.ErrInvalidRange)

	resp, err := f.svc.ListDays(emp, timetrack.DateRangeRequest{EmployeeID: "emp-1", StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)
	assert.Empty(t, resp.Days)
}

func TestService_FinalizeStaleDays(t *testing.T) {
	f := newServiceFixture(t, Options{StaleAfter: 2 * time.Hour})
	emp := f.employeeCtx(t)

	// Monday, forgot to clock out
	f.clockDay(t, emp, "2024-03-04", [2]string{"entrada", "09:00"})
	// Friday, complete but never closed
	f.clockDay(t, emp, "2024-03-08", officeDay...)
	// Saturday, no schedule to complete against
	f.clockDay(t, emp, "2024-03-09", [2]string{"entrada", "10:00"})
	// today stays open
	f.clockDay(t, emp, "2024-03-11", [2]string{"entrada", "09:00"})

	n, err := f.svc.FinalizeStaleDays(context.Background(), clock(date(2024, 3, 11), "10:00"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	monday, err := f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 4), "co-1")
	require.NoError(t, err)
	assert.Equal(t, timetrack.DayStatusFinalized, monday.Status)
	assert.True(t, monday.AutoCompleted)
	require.NotNil(t, monday.WorkedHours)
	assert.Equal(t, "9.00", monday.WorkedHours.StringFixed(2))

	friday, err := f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 8), "co-1")
	require.NoError(t, err)
	assert.Equal(t, timetrack.DayStatusFinalized, friday.Status)
	assert.False(t, friday.AutoCompleted)

	saturday, err := f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 9), "co-1")
	require.NoError(t, err)
	assert.Equal(t, timetrack.DayStatusOpen, saturday.Status)

	today, err := f.repo.GetDayRecord(context.Background(), "emp-1", date(2024, 3, 11), "co-1")
	require.NoError(t, err)
	assert.Equal(t, timetrack.DayStatusOpen, today.Status)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, timetrack.AuditActionAutoComplete, entries[0].Action)
	assert.Equal(t, SystemActor, entries[0].Actor)
}

func TestService_FinalizeStaleDays_GracePeriod(t *testing.T) {
	f := newServiceFixture(t, Options{StaleAfter: 24 * time.Hour})
	f.clockDay(t, f.employeeCtx(t), "2024-03-04", [2]string{"entrada", "09:00"})

	n, err := f.svc.FinalizeStaleDays(context.Background(), clock(date(2024, 3, 5), "10:00"))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.FinalizeStaleDays(context.Background(), clock(date(2024, 3, 5), "18:30"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
