package document

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// CreateDocumentRequest creates a DRAFT document.
type CreateDocumentRequest struct {
	LegalEntityID  int64            `json:"legal_entity_id" validate:"required,gt=0"`
	Direction      string           `json:"direction" validate:"required,oneof=AR AP"`
	Type           string           `json:"type" validate:"required"`
	CounterpartyID int64            `json:"counterparty_id" validate:"required,gt=0"`
	DocumentDate   string           `json:"document_date" validate:"required"`
	DueDate        string           `json:"due_date,omitempty"`
	Currency       string           `json:"currency" validate:"required,len=3"`
	AmountTxn      decimal.Decimal  `json:"amount_txn" validate:"required"`
	FxRate         *decimal.Decimal `json:"fx_rate,omitempty"`
	Description    string           `json:"description,omitempty" validate:"max=500"`
}

// UpdateDocumentRequest amends a DRAFT document.
type UpdateDocumentRequest struct {
	Direction      string          `json:"direction" validate:"required,oneof=AR AP"`
	Type           string          `json:"type" validate:"required"`
	CounterpartyID int64           `json:"counterparty_id" validate:"required,gt=0"`
	DocumentDate   string          `json:"document_date" validate:"required"`
	DueDate        string          `json:"due_date,omitempty"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	AmountTxn      decimal.Decimal `json:"amount_txn" validate:"required"`
	Description    string          `json:"description,omitempty" validate:"max=500"`
}

// PostDocumentRequest posts a DRAFT document.
type PostDocumentRequest struct {
	PreferredBookID *int64 `json:"preferred_book_id,omitempty"`
	UseFxOverride   bool   `json:"use_fx_override,omitempty"`
	OverrideReason  string `json:"override_reason,omitempty" validate:"max=500"`
}

// ReverseDocumentRequest reverses a POSTED document.
type ReverseDocumentRequest struct {
	Reason       string `json:"reason,omitempty" validate:"max=500"`
	ReversalDate string `json:"reversal_date,omitempty"`
}

// DocumentResponse is the JSON projection of a document.
type DocumentResponse struct {
	ID             int64           `json:"id"`
	ExternalRef    string          `json:"external_ref"`
	LegalEntityID  int64           `json:"legal_entity_id"`
	Direction      string          `json:"direction"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	CounterpartyID int64           `json:"counterparty_id"`
	DocumentDate   string          `json:"document_date"`
	DueDate        string          `json:"due_date,omitempty"`
	Currency       string          `json:"currency"`
	AmountTxn      decimal.Decimal `json:"amount_txn"`
	AmountBase     decimal.Decimal `json:"amount_base"`
	OpenAmountTxn  decimal.Decimal `json:"open_amount_txn"`
	OpenAmountBase decimal.Decimal `json:"open_amount_base"`
	FiscalYear     int             `json:"fiscal_year"`
	DocumentNo     string          `json:"document_no"`
	Description    string          `json:"description,omitempty"`
	FxRate         decimal.Decimal `json:"fx_rate"`
	FxSource       string          `json:"fx_source,omitempty"`
	FxOverrideUsed bool            `json:"fx_override_used"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	ReversalOfID   *int64          `json:"reversal_of_document_id,omitempty"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OpenItemResponse is the JSON projection of an open item.
type OpenItemResponse struct {
	ID             int64           `json:"id"`
	DocumentID     int64           `json:"document_id"`
	Direction      string          `json:"direction"`
	Currency       string          `json:"currency"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	ResidualAmount decimal.Decimal `json:"residual_amount"`
	SettledAmount  decimal.Decimal `json:"settled_amount"`
	Status         string          `json:"status"`
}

func toDocumentResponse(d Document) DocumentResponse {
	resp := DocumentResponse{
		ID:             d.ID,
		ExternalRef:    d.ExternalRef.String(),
		LegalEntityID:  d.LegalEntityID,
		Direction:      string(d.Direction),
		Type:           string(d.Type),
		Status:         string(d.Status),
		CounterpartyID: d.CounterpartyID,
		DocumentDate:   shared.FormatAccountingDate(d.DocumentDate),
		Currency:       d.Currency,
		AmountTxn:      d.AmountTxn,
		AmountBase:     d.AmountBase,
		OpenAmountTxn:  d.OpenAmountTxn,
		OpenAmountBase: d.OpenAmountBase,
		FiscalYear:     d.FiscalYear,
		DocumentNo:     d.DocumentNo,
		Description:    d.Description,
		FxRate:         d.FxRate,
		FxSource:       string(d.FxSource),
		FxOverrideUsed: d.FxOverrideUsed,
		JournalEntryID: d.PostedJournalEntryID,
		ReversalOfID:   d.ReversalOfDocumentID,
		PostedAt:       d.PostedAt,
		CreatedAt:      d.CreatedAt,
	}
	if d.DueDate != nil {
		resp.DueDate = shared.FormatAccountingDate(*d.DueDate)
	}
	return resp
}

func toOpenItemResponse(oi OpenItem) OpenItemResponse {
	return OpenItemResponse{
		ID:             oi.ID,
		DocumentID:     oi.DocumentID,
		Direction:      string(oi.Direction),
		Currency:       oi.Currency,
		OriginalAmount: oi.OriginalAmount,
		ResidualAmount: oi.ResidualAmount,
		SettledAmount:  oi.SettledAmount,
		Status:         string(oi.Status),
	}
}
