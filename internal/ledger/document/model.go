package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/fx"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// Status enumerates document lifecycle values. Settlement transitions
// (PARTIALLY_SETTLED, SETTLED) are driven by allocation outside this
// engine.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusPosted           Status = "POSTED"
	StatusPartiallySettled Status = "PARTIALLY_SETTLED"
	StatusSettled          Status = "SETTLED"
	StatusCancelled        Status = "CANCELLED"
	StatusReversed         Status = "REVERSED"
)

// Document is a business-facing AR/AP transaction in the subledger,
// distinct from its GL journal entry.
type Document struct {
	ID            int64
	TenantID      int64
	LegalEntityID int64
	ExternalRef   uuid.UUID
	Direction     shared.Direction
	Type          shared.DocumentType
	Status        Status
	CounterpartyID int64
	DocumentDate  time.Time
	DueDate       *time.Time
	Currency      string
	AmountTxn     decimal.Decimal
	AmountBase    decimal.Decimal
	OpenAmountTxn decimal.Decimal
	OpenAmountBase decimal.Decimal
	FiscalYear    int
	SequenceNo    int64
	DocumentNo    string
	Description   string

	FxRate         decimal.Decimal
	FxSource       fx.Source
	FxOverrideUsed bool

	BookID               *int64
	FiscalPeriodID       *int64
	PostedJournalEntryID *int64
	ReversalOfDocumentID *int64
	PostedAt             *time.Time
	PostedBy             *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenItemStatus enumerates outstanding-balance states.
type OpenItemStatus string

const (
	OpenItemOpen             OpenItemStatus = "OPEN"
	OpenItemPartiallySettled OpenItemStatus = "PARTIALLY_SETTLED"
	OpenItemSettled          OpenItemStatus = "SETTLED"
	OpenItemWrittenOff       OpenItemStatus = "WRITTEN_OFF"
	OpenItemCancelled        OpenItemStatus = "CANCELLED"
)

// OpenItem tracks the unsettled balance of a posted document. Mutated
// only by settlement allocation outside this engine, and cancelled when
// the document is reversed.
type OpenItem struct {
	ID             int64
	TenantID       int64
	DocumentID     int64
	Direction      shared.Direction
	Currency       string
	OriginalAmount decimal.Decimal
	ResidualAmount decimal.Decimal
	SettledAmount  decimal.Decimal
	Status         OpenItemStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FormatDocumentNo renders the user-facing number for a document in a
// numbering scope, e.g. AR-INVOICE-2024-000042.
func FormatDocumentNo(direction shared.Direction, namespace string, fiscalYear int, seq int64) string {
	return fmt.Sprintf("%s-%s-%d-%06d", direction, namespace, fiscalYear, seq)
}
