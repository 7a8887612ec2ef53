package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values. Entries are created POSTED
// by the posting orchestrator; manual entries may start DRAFT.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// Entry is one balanced GL posting. Never mutated line-by-line after
// posting; the only transition is POSTED -> REVERSED via a paired
// reversal entry.
type Entry struct {
	ID              int64
	TenantID        int64
	LegalEntityID   int64
	BookID          int64
	FiscalPeriodID  int64
	JournalNo       int64
	JournalDate     time.Time
	SourceType      string
	SourceID        uuid.UUID
	Memo            string
	Status          Status
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	ReversalEntryID *int64
	ReversedAt      *time.Time
	ReverseReason   string
	PostedBy        int64
	PostedAt        time.Time
	CreatedAt       time.Time
	Lines           []Line
}

// Line is one debit or credit leg. Exactly one of DebitBase/CreditBase is
// positive; AmountTxn carries the signed transaction-currency amount,
// negative on the credit leg, so the pair reconstructs the original
// signed amount.
type Line struct {
	ID           int64
	EntryID      int64
	LineNo       int
	AccountID    int64
	AmountTxn    decimal.Decimal
	DebitBase    decimal.Decimal
	CreditBase   decimal.Decimal
	Currency     string
	SubledgerRef string
	Description  string
}

// LineInput describes a line to be inserted with its parent entry.
type LineInput struct {
	LineNo       int
	AccountID    int64
	AmountTxn    decimal.Decimal
	DebitBase    decimal.Decimal
	CreditBase   decimal.Decimal
	Currency     string
	SubledgerRef string
	Description  string
}

// EntryInput groups the fields required to insert an entry.
type EntryInput struct {
	TenantID       int64
	LegalEntityID  int64
	BookID         int64
	FiscalPeriodID int64
	JournalNo      int64
	JournalDate    time.Time
	SourceType     string
	SourceID       uuid.UUID
	Memo           string
	Status         Status
	PostedBy       int64
	Lines          []LineInput
}
