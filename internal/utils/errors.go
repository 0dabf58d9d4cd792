package utils

import (
	"errors"
	"net/http"
)

/*
   Sentinel errors for the completion/settlement domain logic.
   The controller can do: if errors.Is(err, ErrXYZ) { ... }
*/
var (
	// Validation errors — rejected synchronously, no state change.
	ErrNotAssigned        = errors.New("not_assigned")
	ErrPaymentNotCaptured = errors.New("payment_not_captured")
	ErrEvidenceRequired   = errors.New("evidence_required")
	ErrTimingNotAllowed   = errors.New("timing_not_allowed")
	ErrForbidden          = errors.New("forbidden")

	// Conflict errors — the transition was already applied or is illegal
	// from the current status. Idempotent callers may treat these as
	// success-equivalent.
	ErrAlreadySubmitted = errors.New("already_submitted")
	ErrAlreadyApproved  = errors.New("already_approved")
	ErrNotApprovable    = errors.New("not_approvable")
	ErrWrongStatus      = errors.New("wrong_status")

	// Solo-completion offer errors.
	ErrNoSoloOffer      = errors.New("no_solo_offer")
	ErrSoloOfferExpired = errors.New("solo_offer_expired")

	// Concurrency / persistence.
	ErrRowVersionConflict = errors.New("row_version_conflict")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
