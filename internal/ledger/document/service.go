package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
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

// baseScale matches the DECIMAL(20,6) base-amount columns.
const baseScale = 6

// Validator is the pluggable business-rule check run before posting
// (counterparty standing, payment terms, due-date rules). Implementations
// live outside this engine.
type Validator interface {
	ValidateForPosting(ctx context.Context, doc Document) error
}

// Recorder receives domain metrics. Implemented by observability.Metrics.
type Recorder interface {
	PostingRecorded(direction, docType string)
	ReversalRecorded(direction string)
	FxOverrideRecorded()
	PostingFailed(code string)
}

type nopRecorder struct{}

func (nopRecorder) PostingRecorded(string, string) {}
func (nopRecorder) ReversalRecorded(string)        {}
func (nopRecorder) FxOverrideRecorded()            {}
func (nopRecorder) PostingFailed(string)           {}

// Service is the document lifecycle orchestrator: DRAFT creation and
// amendment, the transactional posting path, and reversal.
type Service struct {
	repo      Repository
	access    internalShared.AccessChecker
	validator Validator
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. validator and metrics may be nil.
func NewService(repo Repository, access internalShared.AccessChecker, validator Validator, metrics Recorder, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{repo: repo, access: access, validator: validator, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get loads one document.
func (s *Service) Get(ctx context.Context, tenantID, documentID int64) (Document, error) {
	return s.repo.GetDocument(ctx, tenantID, documentID)
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, tenantID int64, f ListFilter) ([]Document, error) {
	return s.repo.ListDocuments(ctx, tenantID, f)
}

// GetOpenItem loads the outstanding balance for a posted document.
func (s *Service) GetOpenItem(ctx context.Context, tenantID, documentID int64) (OpenItem, error) {
	return s.repo.GetOpenItem(ctx, tenantID, documentID)
}

// CreateDraftInput carries a new DRAFT document.
type CreateDraftInput struct {
	TenantID       int64
	LegalEntityID  int64
	Direction      shared.Direction
	Type           shared.DocumentType
	CounterpartyID int64
	DocumentDate   time.Time
	DueDate        *time.Time
	Currency       string
	AmountTxn      decimal.Decimal
	FxRate         *decimal.Decimal
	Description    string
	UserID         int64
}

// validateDraftFields holds the field rules shared by draft creation and
// amendment.
func validateDraftFields(direction shared.Direction, docType shared.DocumentType, counterpartyID int64, documentDate time.Time, dueDate *time.Time, currency string, amountTxn decimal.Decimal) error {
	if !direction.Valid() {
		return shared.Validationf("unknown direction %q", direction)
	}
	if !docType.Valid() {
		return shared.Validationf("unknown document type %q", docType)
	}
	if counterpartyID == 0 {
		return shared.Validationf("counterparty required")
	}
	if documentDate.IsZero() {
		return shared.Validationf("document date required")
	}
	if dueDate != nil && dueDate.Before(documentDate) {
		return shared.Validationf("due date before document date")
	}
	if len(currency) != 3 {
		return shared.Validationf("currency must be a 3-letter code")
	}
	if amountTxn.Sign() <= 0 {
		return shared.Validationf("amount must be positive")
	}
	return nil
}

func (in CreateDraftInput) validate() error {
	if in.TenantID == 0 || in.LegalEntityID == 0 {
		return shared.Validationf("tenant and legal entity required")
	}
	if err := validateDraftFields(in.Direction, in.Type, in.CounterpartyID, in.DocumentDate, in.DueDate, in.Currency, in.AmountTxn); err != nil {
		return err
	}
	if in.FxRate != nil && in.FxRate.Sign() <= 0 {
		return shared.Validationf("fx rate must be positive")
	}
	return nil
}

// CreateDraft allocates a provisional number in the DRAFT namespace and
// inserts the document with status DRAFT.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (Document, error) {
	if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, in.LegalEntityID, "document.create"); err != nil {
		return Document{}, err
	}
	if err := in.validate(); err != nil {
		return Document{}, err
	}
	fiscalYear, err := shared.FiscalYearOf(in.DocumentDate)
	if err != nil {
		return Document{}, err
	}
	draftRate := decimal.Zero
	if in.FxRate != nil {
		draftRate = *in.FxRate
	}

	var doc Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		seq, err := sequence.NewAllocator(tx.Sequences()).Allocate(ctx, sequence.Scope{
			TenantID:      in.TenantID,
			LegalEntityID: in.LegalEntityID,
			Direction:     in.Direction,
			Namespace:     shared.NamespaceDraft,
		}, fiscalYear)
		if err != nil {
			return err
		}
		doc, err = tx.InsertDocument(ctx, DocumentInput{
			TenantID:       in.TenantID,
			LegalEntityID:  in.LegalEntityID,
			ExternalRef:    uuid.New(),
			Direction:      in.Direction,
			Type:           in.Type,
			Status:         StatusDraft,
			CounterpartyID: in.CounterpartyID,
			DocumentDate:   in.DocumentDate,
			DueDate:        in.DueDate,
			Currency:       in.Currency,
			AmountTxn:      in.AmountTxn,
			AmountBase:     decimal.Zero,
			OpenAmountTxn:  in.AmountTxn,
			OpenAmountBase: decimal.Zero,
			FiscalYear:     fiscalYear,
			SequenceNo:     seq,
			DocumentNo:     FormatDocumentNo(in.Direction, shared.NamespaceDraft, fiscalYear, seq),
			Description:    in.Description,
			FxRate:         draftRate,
		})
		if err != nil {
			return err
		}
		return tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			Action:       "document.create",
			ResourceType: "cari_document",
			ResourceID:   strconv.FormatInt(doc.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", in.LegalEntityID),
			Payload: map[string]any{
				"document_no": doc.DocumentNo,
				"direction":   doc.Direction,
				"doc_type":    doc.Type,
				"amount_txn":  doc.AmountTxn.String(),
				"currency":    doc.Currency,
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// UpdateDraftInput amends an existing DRAFT document.
type UpdateDraftInput struct {
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
	UserID         int64
}

// UpdateDraft amends a DRAFT document under its row lock. The provisional
// number is reassigned only when the direction or the fiscal year derived
// from the document date changes.
func (s *Service) UpdateDraft(ctx context.Context, in UpdateDraftInput) (Document, error) {
	if in.DocumentID == 0 {
		return Document{}, shared.Validationf("document id required")
	}
	if err := validateDraftFields(in.Direction, in.Type, in.CounterpartyID, in.DocumentDate, in.DueDate, in.Currency, in.AmountTxn); err != nil {
		return Document{}, err
	}
	fiscalYear, err := shared.FiscalYearOf(in.DocumentDate)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockDocument(ctx, in.TenantID, in.DocumentID)
		if err != nil {
			return err
		}
		if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, current.LegalEntityID, "document.update"); err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrAlreadyPosted
		}
		seq := current.SequenceNo
		docNo := current.DocumentNo
		if current.Direction != in.Direction || current.FiscalYear != fiscalYear {
			seq, err = sequence.NewAllocator(tx.Sequences()).Allocate(ctx, sequence.Scope{
				TenantID:      in.TenantID,
				LegalEntityID: current.LegalEntityID,
				Direction:     in.Direction,
				Namespace:     shared.NamespaceDraft,
			}, fiscalYear)
			if err != nil {
				return err
			}
			docNo = FormatDocumentNo(in.Direction, shared.NamespaceDraft, fiscalYear, seq)
		}
		if err := tx.UpdateDraft(ctx, DraftUpdate{
			TenantID:       in.TenantID,
			DocumentID:     in.DocumentID,
			Direction:      in.Direction,
			Type:           in.Type,
			CounterpartyID: in.CounterpartyID,
			DocumentDate:   in.DocumentDate,
			DueDate:        in.DueDate,
			Currency:       in.Currency,
			AmountTxn:      in.AmountTxn,
			Description:    in.Description,
			FiscalYear:     fiscalYear,
			SequenceNo:     seq,
			DocumentNo:     docNo,
		}); err != nil {
			return err
		}
		doc = current
		doc.Direction = in.Direction
		doc.Type = in.Type
		doc.CounterpartyID = in.CounterpartyID
		doc.DocumentDate = in.DocumentDate
		doc.DueDate = in.DueDate
		doc.Currency = in.Currency
		doc.AmountTxn = in.AmountTxn
		doc.OpenAmountTxn = in.AmountTxn
		doc.Description = in.Description
		doc.FiscalYear = fiscalYear
		doc.SequenceNo = seq
		doc.DocumentNo = docNo
		return tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			Action:       "document.update",
			ResourceType: "cari_document",
			ResourceID:   strconv.FormatInt(doc.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", doc.LegalEntityID),
			Payload: map[string]any{
				"document_no": doc.DocumentNo,
				"renumbered":  docNo != current.DocumentNo,
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// CancelDraft moves a DRAFT document to CANCELLED.
func (s *Service) CancelDraft(ctx context.Context, tenantID, documentID, userID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.LockDocument(ctx, tenantID, documentID)
		if err != nil {
			return err
		}
		if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, current.LegalEntityID, "document.cancel"); err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrAlreadyPosted
		}
		if err := tx.MarkCancelled(ctx, tenantID, documentID); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     tenantID,
			UserID:       userID,
			Action:       "document.cancel",
			ResourceType: "cari_document",
			ResourceID:   strconv.FormatInt(documentID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", current.LegalEntityID),
			Payload:      map[string]any{"document_no": current.DocumentNo},
			OccurredAt:   s.now(),
		})
	})
}

// PostInput triggers the transactional posting path for a DRAFT document.
type PostInput struct {
	TenantID        int64
	DocumentID      int64
	UserID          int64
	PreferredBookID *int64
	UseFxOverride   bool
	OverrideReason  string
}

// PostResult bundles the posted document and its journal entry.
type PostResult struct {
	Document Document
	Journal  journal.Entry
}

// Post turns a DRAFT document into a balanced, immutable journal entry.
//
// The whole protocol runs inside one database transaction: the document
// row is locked, every precondition is re-validated under the lock, the
// journal entry and lines are created, the document and open item are
// written, and the audit rows are appended. Any failure aborts the
// transaction with no partial state.
func (s *Service) Post(ctx context.Context, in PostInput) (PostResult, error) {
	// Optimistic pre-check; the authoritative check runs under the lock.
	pre, err := s.repo.GetDocument(ctx, in.TenantID, in.DocumentID)
	if err != nil {
		return PostResult{}, err
	}
	if pre.Status != StatusDraft {
		return PostResult{}, shared.ErrAlreadyPosted
	}
	if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, pre.LegalEntityID, "document.post"); err != nil {
		return PostResult{}, err
	}

	var result PostResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.LockDocument(ctx, in.TenantID, in.DocumentID)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return shared.ErrAlreadyPosted
		}
		if s.validator != nil {
			if err := s.validator.ValidateForPosting(ctx, doc); err != nil {
				return err
			}
		}

		resolution, err := calendar.NewResolver(tx.Calendar()).
			ResolveBookAndPeriod(ctx, doc.TenantID, doc.LegalEntityID, doc.DocumentDate, in.PreferredBookID)
		if err != nil {
			return err
		}

		var draftRate *decimal.Decimal
		if doc.FxRate.Sign() > 0 {
			rate := doc.FxRate
			draftRate = &rate
		}
		fxResult, err := fx.NewResolver(tx.FxRates()).Resolve(ctx, fx.Input{
			TenantID:           doc.TenantID,
			DocumentDate:       doc.DocumentDate,
			DocumentCurrency:   doc.Currency,
			FunctionalCurrency: resolution.BaseCurrency,
			DraftRate:          draftRate,
			UseOverride:        in.UseFxOverride,
			OverrideReason:     in.OverrideReason,
		})
		if err != nil {
			return err
		}

		counterparty := doc.CounterpartyID
		postingAccounts, err := accounts.NewResolver(tx.Accounts()).
			ResolvePostingAccounts(ctx, doc.TenantID, doc.Direction, &counterparty)
		if err != nil {
			return err
		}

		amountBase := doc.AmountTxn.Mul(fxResult.EffectiveRate).Round(baseScale)

		alloc := sequence.NewAllocator(tx.Sequences())
		finalSeq, err := alloc.Allocate(ctx, sequence.Scope{
			TenantID:      doc.TenantID,
			LegalEntityID: doc.LegalEntityID,
			Direction:     doc.Direction,
			Namespace:     string(doc.Type),
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}
		journalNo, err := alloc.Allocate(ctx, sequence.Scope{
			TenantID:      doc.TenantID,
			LegalEntityID: doc.LegalEntityID,
			Namespace:     sequence.NamespaceJournal,
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}
		documentNo := FormatDocumentNo(doc.Direction, string(doc.Type), resolution.FiscalYear, finalSeq)

		lines, err := journal.BuildDocumentLines(journal.BuildParams{
			Direction:        doc.Direction,
			DocumentType:     doc.Type,
			AmountTxn:        doc.AmountTxn,
			AmountBase:       amountBase,
			ControlAccountID: postingAccounts.Control.ID,
			OffsetAccountID:  postingAccounts.Offset.ID,
			Currency:         doc.Currency,
			SubledgerRef:     documentNo,
			Description:      doc.Description,
		})
		if err != nil {
			return err
		}

		entry, err := tx.Journals().InsertEntry(ctx, journal.EntryInput{
			TenantID:       doc.TenantID,
			LegalEntityID:  doc.LegalEntityID,
			BookID:         resolution.BookID,
			FiscalPeriodID: resolution.FiscalPeriod.ID,
			JournalNo:      journalNo,
			JournalDate:    doc.DocumentDate,
			SourceType:     "CARI_DOCUMENT",
			SourceID:       doc.ExternalRef,
			Memo:           doc.Description,
			Status:         journal.StatusPosted,
			PostedBy:       in.UserID,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		if !shared.WithinEpsilon(entry.TotalDebit, amountBase) {
			return shared.ErrUnbalanced
		}

		postedAt := s.now()
		if err := tx.MarkPosted(ctx, PostedUpdate{
			TenantID:       doc.TenantID,
			DocumentID:     doc.ID,
			SequenceNo:     finalSeq,
			DocumentNo:     documentNo,
			FiscalYear:     resolution.FiscalYear,
			AmountBase:     amountBase,
			OpenAmountTxn:  doc.AmountTxn,
			OpenAmountBase: amountBase,
			FxRate:         fxResult.EffectiveRate,
			FxSource:       fxResult.Source,
			FxOverrideUsed: fxResult.OverrideUsed,
			BookID:         resolution.BookID,
			FiscalPeriodID: resolution.FiscalPeriod.ID,
			JournalEntryID: entry.ID,
			PostedAt:       postedAt,
			PostedBy:       in.UserID,
		}); err != nil {
			return err
		}

		if _, err := tx.InsertOpenItem(ctx, OpenItemInput{
			TenantID:       doc.TenantID,
			DocumentID:     doc.ID,
			Direction:      doc.Direction,
			Currency:       doc.Currency,
			OriginalAmount: doc.AmountTxn,
		}); err != nil {
			return err
		}

		audit := tx.Audit()
		if err := audit.Record(ctx, internalShared.AuditEvent{
			TenantID:     doc.TenantID,
			UserID:       in.UserID,
			Action:       "document.post",
			ResourceType: "cari_document",
			ResourceID:   strconv.FormatInt(doc.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", doc.LegalEntityID),
			Payload: map[string]any{
				"document_no":      documentNo,
				"journal_entry_id": entry.ID,
				"journal_no":       entry.JournalNo,
				"amount_txn":       doc.AmountTxn.String(),
				"amount_base":      amountBase.String(),
				"fx_rate":          fxResult.EffectiveRate.String(),
				"fx_source":        fxResult.Source,
			},
			OccurredAt: postedAt,
		}); err != nil {
			return err
		}
		if fxResult.OverrideUsed {
			payload := map[string]any{
				"effective_rate":  fxResult.EffectiveRate.String(),
				"override_reason": in.OverrideReason,
			}
			if fxResult.ReferenceRate != nil {
				payload["reference_rate"] = fxResult.ReferenceRate.String()
			}
			if err := audit.Record(ctx, internalShared.AuditEvent{
				TenantID:     doc.TenantID,
				UserID:       in.UserID,
				Action:       "document.fx_override",
				ResourceType: "cari_document",
				ResourceID:   strconv.FormatInt(doc.ID, 10),
				Scope:        fmt.Sprintf("legal_entity:%d", doc.LegalEntityID),
				Payload:      payload,
				OccurredAt:   postedAt,
			}); err != nil {
				return err
			}
		}

		doc.Status = StatusPosted
		doc.SequenceNo = finalSeq
		doc.DocumentNo = documentNo
		doc.FiscalYear = resolution.FiscalYear
		doc.AmountBase = amountBase
		doc.OpenAmountTxn = doc.AmountTxn
		doc.OpenAmountBase = amountBase
		doc.FxRate = fxResult.EffectiveRate
		doc.FxSource = fxResult.Source
		doc.FxOverrideUsed = fxResult.OverrideUsed
		doc.BookID = &resolution.BookID
		periodID := resolution.FiscalPeriod.ID
		doc.FiscalPeriodID = &periodID
		entryID := entry.ID
		doc.PostedJournalEntryID = &entryID
		doc.PostedAt = &postedAt
		userID := in.UserID
		doc.PostedBy = &userID

		result = PostResult{Document: doc, Journal: entry}
		if fxResult.OverrideUsed {
			s.metrics.FxOverrideRecorded()
		}
		return nil
	})
	if err != nil {
		var de *shared.Error
		if errors.As(err, &de) {
			s.metrics.PostingFailed(de.Code)
		}
		return PostResult{}, err
	}
	s.metrics.PostingRecorded(string(result.Document.Direction), string(result.Document.Type))
	s.logger.Info("document posted",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("document_id", result.Document.ID),
		slog.String("document_no", result.Document.DocumentNo),
		slog.Int64("journal_no", result.Journal.JournalNo))
	return result, nil
}
