package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type TimeTrackHandler interface {
	RecordEvent(w http.ResponseWriter, r *http.Request)
	GetDay(w http.ResponseWriter, r *http.Request)
	ListDays(w http.ResponseWriter, r *http.Request)
	CloseDay(w http.ResponseWriter, r *http.Request)
	RequestReview(w http.ResponseWriter, r *http.Request)
	ResolveReview(w http.ResponseWriter, r *http.Request)
	ApproveDay(w http.ResponseWriter, r *http.Request)
	CorrectEvent(w http.ResponseWriter, r *http.Request)
	BatchCorrect(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
}

type timeTrackHandlerImpl struct {
	timeTrackService timetrack.Service
}

func NewTimeTrackHandler(timeTrackService timetrack.Service) TimeTrackHandler {
	return &timeTrackHandlerImpl{
		timeTrackService: timeTrackService,
	}
}

func dayRefFromURL(r *http.Request) timetrack.DayRef {
	return timetrack.DayRef{
		EmployeeID: chi.URLParam(r, "employeeID"),
		Date:       chi.URLParam(r, "date"),
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves dst as is.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// RecordEvent implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req timetrack.RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode clock event", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.timeTrackService.RecordEvent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Clock event recorded", result)
}

// GetDay implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) GetDay(w http.ResponseWriter, r *http.Request) {
	ref := dayRefFromURL(r)

	result, err := h.timeTrackService.GetDay(r.Context(), ref.EmployeeID, ref.Date)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ListDays implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) ListDays(w http.ResponseWriter, r *http.Request) {
	req := timetrack.DateRangeRequest{
		EmployeeID: chi.URLParam(r, "employeeID"),
		StartDate:  r.URL.Query().Get("start"),
		EndDate:    r.URL.Query().Get("end"),
	}

	result, err := h.timeTrackService.ListDays(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// CloseDay implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) CloseDay(w http.ResponseWriter, r *http.Request) {
	req := timetrack.CloseDayRequest{DayRef: dayRefFromURL(r)}

	result, err := h.timeTrackService.CloseDay(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Day finalized", result)
}

// RequestReview implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) RequestReview(w http.ResponseWriter, r *http.Request) {
	var req timetrack.ReviewRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Error("Failed to decode review request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.DayRef = dayRefFromURL(r)

	result, err := h.timeTrackService.RequestReview(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Day put under review", result)
}

// ResolveReview implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) ResolveReview(w http.ResponseWriter, r *http.Request) {
	req := timetrack.ResolveReviewRequest{DayRef: dayRefFromURL(r)}

	result, err := h.timeTrackService.ResolveReview(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Review resolved", result)
}

// ApproveDay implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) ApproveDay(w http.ResponseWriter, r *http.Request) {
	var req timetrack.ApproveDayRequest
	if err := decodeBody(r, &req); err != nil {
		slog.Error("Failed to decode approve request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.DayRef = dayRefFromURL(r)

	result, err := h.timeTrackService.ApproveDay(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Day approved", result)
}

// CorrectEvent implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) CorrectEvent(w http.ResponseWriter, r *http.Request) {
	var req timetrack.CorrectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode correction", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.DayRef = dayRefFromURL(r)
	req.EventID = chi.URLParam(r, "eventID")

	result, err := h.timeTrackService.CorrectEvent(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Clock event corrected", result)
}

// BatchCorrect implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) BatchCorrect(w http.ResponseWriter, r *http.Request) {
	var req timetrack.BatchCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode batch correction", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.timeTrackService.BatchCorrect(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Batch correction applied", result)
}

// Summary implements TimeTrackHandler.
func (h *timeTrackHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	req := timetrack.DateRangeRequest{
		EmployeeID: chi.URLParam(r, "employeeID"),
		StartDate:  r.URL.Query().Get("start"),
		EndDate:    r.URL.Query().Get("end"),
	}

	result, err := h.timeTrackService.SummarizePeriod(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
