package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/repository/memory"
	timeTrackService "github.com/cmlabs-hris/timetrack-backend-go/internal/service/timetrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	handlerTestAccessExp = "1h"
	handlerTestSecret    = "test-secret-key-for-jwt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type handlerFixture struct {
	router     http.Handler
	jwtService jwt.Service
}

func newHandlerFixture(t *testing.T, health HealthCheck) *handlerFixture {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	store := memory.NewStore()
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, loc)
	service := timeTrackService.NewTimeTrackService(
		memory.NewTransactor(store),
		memory.NewDayRecordRepository(store),
		memory.OfficeWeek(loc),
		memory.NewLeaveCalendar(),
		memory.NewAuditLog(store),
		timeTrackService.NewNormalizer(loc),
		timeTrackService.Options{Now: func() time.Time { return now }},
	)

	jwtService := jwt.NewJWTService(handlerTestSecret, handlerTestAccessExp)
	router := NewRouter(jwtService, NewTimeTrackHandler(service), RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Health:         health,
	})

	return &handlerFixture{router: router, jwtService: jwtService}
}

func (f *handlerFixture) token(t *testing.T, userID, employeeID string, role user.Role) string {
	t.Helper()
	token, _, err := f.jwtService.GenerateAccessToken(user.Claims{
		UserID:     userID,
		CompanyID:  "co-1",
		EmployeeID: employeeID,
		Role:       role,
	})
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) employeeToken(t *testing.T) string {
	return f.token(t, "user-1", "emp-1", user.RoleEmployee)
}

func (f *handlerFixture) managerToken(t *testing.T) string {
	return f.token(t, "user-mgr", "emp-mgr", user.RoleManager)
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (f *handlerFixture) clockOfficeDay(t *testing.T, token, day string) timetrack.DayRecordResponse {
	t.Helper()

	var last timetrack.DayRecordResponse
	for _, e := range [][2]string{
		{"entrada", "09:00"},
		{"pausa_inicio", "13:00"},
		{"pausa_fin", "14:00"},
		{"salida", "18:00"},
	} {
		rec, env := f.do(t, http.MethodPost, "/api/v1/timetrack/events", token, map[string]string{
			"type":      e[0],
			"timestamp": e[1],
			"date":      day,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &last))
	}
	return last
}

func TestTimeTrackHandler_RequiresToken(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-1/2024-03-04", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestTimeTrackHandler_RecordGetAndClose(t *testing.T) {
	f := newHandlerFixture(t, nil)
	token := f.employeeToken(t)

	day := f.clockOfficeDay(t, token, "2024-03-04")
	assert.Equal(t, "open", day.Status)
	assert.Equal(t, "8.00", day.WorkedHours)
	assert.Equal(t, []string{"entrada"}, day.NextAllowed)

	rec, env := f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-1/2024-03-04", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Len(t, fetched.Events, 4)
	assert.Equal(t, "2024-03-04T09:00:00+01:00", fetched.Events[0].Timestamp)

	rec, env = f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/close", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var closed timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, "finalized", closed.Status)
	assert.True(t, closed.Cached)
	assert.Equal(t, "8.00", closed.WorkedHours)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/close", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTimeTrackHandler_ErrorMapping(t *testing.T) {
	f := newHandlerFixture(t, nil)
	token := f.employeeToken(t)

	t.Run("invalid sequence", func(t *testing.T) {
		rec, env := f.do(t, http.MethodPost, "/api/v1/timetrack/events", token, map[string]string{
			"type":      "salida",
			"timestamp": "18:00",
			"date":      "2024-03-01",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_SEQUENCE", env.Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		rec, env := f.do(t, http.MethodPost, "/api/v1/timetrack/events", token, map[string]string{
			"type": "lunch",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Details, "type")
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/timetrack/events", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("day not found", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-1/2024-02-01", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other employee", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-2/2024-03-04", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("range too long", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/timetrack/summary/emp-1?start=2022-01-01&end=2024-03-01", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTimeTrackHandler_ReviewAndApprove(t *testing.T) {
	f := newHandlerFixture(t, nil)
	employee := f.employeeToken(t)
	manager := f.managerToken(t)

	f.clockOfficeDay(t, employee, "2024-03-04")
	rec, _ := f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/close", employee, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/approve", employee, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/review", employee,
		map[string]string{"reason": "forgot to clock the pause"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reviewed timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &reviewed))
	assert.Equal(t, "under_review", reviewed.Status)

	rec, env = f.do(t, http.MethodPost, "/api/v1/timetrack/days/emp-1/2024-03-04/approve", manager, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "user-mgr", *approved.ApprovedBy)
}

func TestTimeTrackHandler_CorrectEvent(t *testing.T) {
	f := newHandlerFixture(t, nil)
	employee := f.employeeToken(t)
	manager := f.managerToken(t)

	day := f.clockOfficeDay(t, employee, "2024-03-04")
	salida := day.Events[3]

	path := "/api/v1/timetrack/days/emp-1/2024-03-04/events/" + salida.ID
	body := map[string]string{"new_time": "17:30", "reason": "left early"}

	rec, _ := f.do(t, http.MethodPatch, path, employee, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := f.do(t, http.MethodPatch, path, manager, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var corrected timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &corrected))
	assert.Equal(t, "7.50", corrected.WorkedHours)
	require.NotNil(t, corrected.Events[3].OriginalTimestamp)
	assert.Equal(t, "2024-03-04T18:00:00+01:00", *corrected.Events[3].OriginalTimestamp)
}

func TestTimeTrackHandler_BatchPartialFailure(t *testing.T) {
	f := newHandlerFixture(t, nil)
	employee := f.employeeToken(t)
	manager := f.managerToken(t)

	day := f.clockOfficeDay(t, employee, "2024-03-04")

	rec, env := f.do(t, http.MethodPost, "/api/v1/timetrack/corrections/batch", manager, map[string]any{
		"employee_id": "emp-1",
		"items": []map[string]string{
			{"date": "2024-03-04", "event_id": day.Events[0].ID, "new_time": "08:30", "reason": "badge reader down"},
			{"date": "2024-03-01", "event_id": "missing", "new_time": "09:00", "reason": "badge reader down"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PARTIAL_BATCH_FAILURE", env.Error.Code)
	assert.Len(t, env.Error.Details, 1)

	// nothing was applied
	rec, env = f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-1/2024-03-04", employee, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unchanged timetrack.DayRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &unchanged))
	assert.Equal(t, "2024-03-04T09:00:00+01:00", unchanged.Events[0].Timestamp)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/timetrack/corrections/batch", employee, map[string]any{
		"employee_id": "emp-1",
		"items": []map[string]string{
			{"date": "2024-03-04", "event_id": day.Events[0].ID, "new_time": "08:30", "reason": "x"},
		},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTimeTrackHandler_ListAndSummary(t *testing.T) {
	f := newHandlerFixture(t, nil)
	token := f.employeeToken(t)

	f.clockOfficeDay(t, token, "2024-03-04")

	rec, env := f.do(t, http.MethodGet, "/api/v1/timetrack/days/emp-1?start=2024-03-01&end=2024-03-05", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list timetrack.ListDayRecordsResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Days, 1)

	rec, env = f.do(t, http.MethodGet, "/api/v1/timetrack/summary/emp-1?start=2024-03-04&end=2024-03-05", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary timetrack.PeriodSummaryResponse
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "8.00", summary.TotalWorkedHours)
	assert.Equal(t, "16.00", summary.TotalExpectedHours)
	assert.Equal(t, "-8.00", summary.BalanceHours)
	assert.Equal(t, 1, summary.DaysWithoutClocking)
	assert.Len(t, summary.Days, 2)
}

func TestRouter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newHandlerFixture(t, func(ctx context.Context) error { return nil })
		rec, env := f.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
	})

	t.Run("storage down", func(t *testing.T) {
		f := newHandlerFixture(t, func(ctx context.Context) error { return errors.New("connection refused") })
		rec, _ := f.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
