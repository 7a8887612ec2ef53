package shared

import (
	"errors"
	"fmt"
)

// Error is a domain error with a stable machine code.
// Retryable marks infrastructure-level failures that are safe to retry
// because no partial commit is possible.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger: %s (%s)", e.Message, e.Code)
}

// Is matches two domain errors by code so sentinel comparisons via
// errors.Is survive wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	// ErrValidation covers malformed input caught before any write.
	ErrValidation = &Error{Code: "VALIDATION", Message: "invalid input"}
	// ErrInvalidDate indicates the fiscal year cannot be derived from the date.
	ErrInvalidDate = &Error{Code: "INVALID_DATE", Message: "date outside supported fiscal range"}
	// ErrNoPeriodFound indicates no fiscal period contains the posting date.
	ErrNoPeriodFound = &Error{Code: "NO_PERIOD_FOUND", Message: "no fiscal period covers the date"}
	// ErrPeriodLocked indicates the target period is not OPEN.
	ErrPeriodLocked = &Error{Code: "PERIOD_LOCKED", Message: "fiscal period is not open for posting"}
	// ErrMissingFxRate indicates neither a document rate nor a table rate exists.
	ErrMissingFxRate = &Error{Code: "MISSING_FX_RATE", Message: "no exchange rate available for the document date"}
	// ErrFxRateLocked indicates a locked reference rate was deviated from without an override.
	ErrFxRateLocked = &Error{Code: "FX_RATE_LOCKED", Message: "exchange rate is locked; override required"}
	// ErrParityRateMismatch indicates a non-1 rate supplied for a same-currency document.
	ErrParityRateMismatch = &Error{Code: "PARITY_RATE_MISMATCH", Message: "same-currency document must use rate 1"}
	// ErrPostingAccountsNotConfigured indicates missing control/offset account setup.
	ErrPostingAccountsNotConfigured = &Error{Code: "POSTING_ACCOUNTS_NOT_CONFIGURED", Message: "posting accounts are not configured"}
	// ErrControlOffsetCollision indicates control and offset resolved to the same account.
	ErrControlOffsetCollision = &Error{Code: "CONTROL_OFFSET_COLLISION", Message: "control and offset accounts are identical"}
	// ErrAlreadyPosted indicates the document left DRAFT before this call got the lock.
	ErrAlreadyPosted = &Error{Code: "ALREADY_POSTED", Message: "document is already posted"}
	// ErrAlreadyReversed indicates a reversal already exists for the document.
	ErrAlreadyReversed = &Error{Code: "ALREADY_REVERSED", Message: "document is already reversed"}
	// ErrEmptyJournal indicates a posted journal without lines; data-integrity fault.
	ErrEmptyJournal = &Error{Code: "EMPTY_JOURNAL", Message: "posted journal has no lines"}
	// ErrUnbalanced indicates debit and credit totals diverge beyond epsilon.
	ErrUnbalanced = &Error{Code: "UNBALANCED", Message: "journal lines must balance"}
	// ErrDocumentNotFound indicates the document id does not exist in the tenant scope.
	ErrDocumentNotFound = &Error{Code: "DOCUMENT_NOT_FOUND", Message: "document not found"}
	// ErrJournalNotFound indicates the journal entry does not exist.
	ErrJournalNotFound = &Error{Code: "JOURNAL_NOT_FOUND", Message: "journal entry not found"}
	// ErrInvalidStatus indicates the requested transition is not allowed.
	ErrInvalidStatus = &Error{Code: "INVALID_STATUS", Message: "invalid status transition"}
)

// Validationf builds a VALIDATION error with a specific message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps an infrastructure failure (lock timeout, deadlock,
// connection loss) as a retryable error.
func Transient(err error) *Error {
	return &Error{Code: "TRANSIENT", Message: err.Error(), Retryable: true}
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}
