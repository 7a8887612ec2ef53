package document

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/accounts"
	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/fx"
	"github.com/mrcaglayan/cariledger/internal/ledger/journal"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// Repository persists documents and open items. WithTx runs fn inside one
// database transaction; every repository obtained from the Tx shares it.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetDocument(ctx context.Context, tenantID, documentID int64) (Document, error)
	ListDocuments(ctx context.Context, tenantID int64, f ListFilter) ([]Document, error)
	GetOpenItem(ctx context.Context, tenantID, documentID int64) (OpenItem, error)
}

// Tx is the transactional surface of the posting and reversal protocols.
// The document row lock acquired by LockDocument is held until commit.
type Tx interface {
	// LockDocument loads the row FOR UPDATE. Status checks after this
	// call are authoritative.
	LockDocument(ctx context.Context, tenantID, documentID int64) (Document, error)
	InsertDocument(ctx context.Context, in DocumentInput) (Document, error)
	UpdateDraft(ctx context.Context, u DraftUpdate) error
	MarkPosted(ctx context.Context, u PostedUpdate) error
	MarkCancelled(ctx context.Context, tenantID, documentID int64) error
	// MarkReversed flips a POSTED or PARTIALLY_SETTLED document to REVERSED
	// and zeroes its open amounts; 0 affected rows means a racing reversal won.
	MarkReversed(ctx context.Context, tenantID, documentID int64, at time.Time) error
	// HasReversal reports whether any document references documentID as
	// reversal_of_document_id.
	HasReversal(ctx context.Context, tenantID, documentID int64) (bool, error)
	InsertOpenItem(ctx context.Context, in OpenItemInput) (OpenItem, error)
	CancelOpenItem(ctx context.Context, tenantID, documentID int64) error

	Calendar() calendar.Repository
	Sequences() sequence.Repository
	FxRates() fx.Repository
	Accounts() accounts.Repository
	Journals() journal.Repository
	Audit() internalShared.AuditWriter
}

// ListFilter narrows document listings.
type ListFilter struct {
	Direction shared.Direction
	Status    Status
	Limit     int
}

// DocumentInput groups the fields required to insert a document row.
type DocumentInput struct {
	TenantID             int64
	LegalEntityID        int64
	ExternalRef          uuid.UUID
	Direction            shared.Direction
	Type                 shared.DocumentType
	Status               Status
	CounterpartyID       int64
	DocumentDate         time.Time
	DueDate              *time.Time
	Currency             string
	AmountTxn            decimal.Decimal
	AmountBase           decimal.Decimal
	OpenAmountTxn        decimal.Decimal
	OpenAmountBase       decimal.Decimal
	FiscalYear           int
	SequenceNo           int64
	DocumentNo           string
	Description          string
	FxRate               decimal.Decimal
	FxSource             fx.Source
	FxOverrideUsed       bool
	BookID               *int64
	FiscalPeriodID       *int64
	PostedJournalEntryID *int64
	ReversalOfDocumentID *int64
	PostedAt             *time.Time
	PostedBy             *int64
}

// DraftUpdate amends a DRAFT document, optionally renumbering it.
type DraftUpdate struct {
	TenantID       int64
	DocumentID     int64
	Direction      shared.Direction
	Type           shared.DocumentType
	CounterpartyID int64
	DocumentDate   time.Time
	DueDate        *time.Time
	Currency       string
	AmountTxn      decimal.Decimal
	Description    string
	FiscalYear     int
	SequenceNo     int64
	DocumentNo     string
}

// PostedUpdate flips a DRAFT document to POSTED with its final number,
// journal link and FX snapshot.
type PostedUpdate struct {
	TenantID       int64
	DocumentID     int64
	SequenceNo     int64
	DocumentNo     string
	FiscalYear     int
	AmountBase     decimal.Decimal
	OpenAmountTxn  decimal.Decimal
	OpenAmountBase decimal.Decimal
	FxRate         decimal.Decimal
	FxSource       fx.Source
	FxOverrideUsed bool
	BookID         int64
	FiscalPeriodID int64
	JournalEntryID int64
	PostedAt       time.Time
	PostedBy       int64
}

// OpenItemInput creates the outstanding balance record at posting time.
type OpenItemInput struct {
	TenantID       int64
	DocumentID     int64
	Direction      shared.Direction
	Currency       string
	OriginalAmount decimal.Decimal
}
