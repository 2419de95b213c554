package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/timetrack"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Batch corrections report every failed day
	var partial *timetrack.PartialBatchFailureError
	if errors.As(err, &partial) {
		UnprocessableEntity(w, "PARTIAL_BATCH_FAILURE", partial.Error(), partial.Details())
		return
	}

	switch {
	// Time-tracking input errors
	case errors.Is(err, timetrack.ErrInvalidFormat):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, timetrack.ErrInvalidRange):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, timetrack.ErrBatchTooLarge):
		BadRequest(w, err.Error(), nil)

	// Time-tracking state errors
	case errors.Is(err, timetrack.ErrInvalidSequence):
		UnprocessableEntity(w, "INVALID_SEQUENCE", err.Error(), nil)
	case errors.Is(err, timetrack.ErrInvalidTransition):
		Conflict(w, err.Error())
	case errors.Is(err, timetrack.ErrDayClosed):
		Conflict(w, err.Error())
	case errors.Is(err, timetrack.ErrConcurrentUpdate):
		Conflict(w, err.Error())
	case errors.Is(err, timetrack.ErrDayNotFound):
		NotFound(w, "Day record not found")
	case errors.Is(err, timetrack.ErrEventNotFound):
		NotFound(w, "Clock event not found")

	// Access errors
	case errors.Is(err, timetrack.ErrMissingClaims):
		Unauthorized(w, "Invalid token claims")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())
	case errors.Is(err, user.ErrManagerAccessRequired):
		Forbidden(w, "Manager access required")
	case errors.Is(err, user.ErrOwnerAccessRequired):
		Forbidden(w, "Owner access required")
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company membership required")
	case errors.Is(err, user.ErrEmployeeIDRequired):
		BadRequest(w, "employee_id is required", nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
