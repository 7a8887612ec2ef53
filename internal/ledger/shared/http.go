package shared

import (
	"errors"
	"net/http"
)

// HTTPStatus maps a domain error to an HTTP status code. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	var de *Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Code {
	case ErrDocumentNotFound.Code, ErrJournalNotFound.Code:
		return http.StatusNotFound
	case ErrAlreadyPosted.Code, ErrAlreadyReversed.Code, ErrInvalidStatus.Code,
		ErrPeriodLocked.Code, ErrFxRateLocked.Code:
		return http.StatusConflict
	case ErrValidation.Code, ErrInvalidDate.Code, ErrNoPeriodFound.Code,
		ErrMissingFxRate.Code, ErrParityRateMismatch.Code,
		ErrPostingAccountsNotConfigured.Code, ErrControlOffsetCollision.Code,
		ErrUnbalanced.Code, ErrEmptyJournal.Code:
		return http.StatusUnprocessableEntity
	case "TRANSIENT":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode extracts the stable machine code, or INTERNAL for unknown
// errors.
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL"
}
