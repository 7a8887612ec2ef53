package document

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/journal"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// ReverseInput triggers a document reversal.
type ReverseInput struct {
	TenantID     int64
	DocumentID   int64
	UserID       int64
	Reason       string
	ReversalDate *time.Time
}

// ReverseResult bundles the reversal document and its journal entry.
type ReverseResult struct {
	Reversal Document
	Journal  journal.Entry
}

// Reverse backs out a POSTED document: it mirrors the original journal
// lines into the current open period, creates a reversal document that
// points back at the original, closes the open item and flips the
// original to REVERSED. A document can be reversed at most once; the
// unique constraint on reversal_of_document_id backstops the in-tx
// checks under concurrency.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (ReverseResult, error) {
	if in.DocumentID == 0 {
		return ReverseResult{}, shared.Validationf("document id required")
	}
	reversalDate := s.now().UTC().Truncate(24 * time.Hour)
	if in.ReversalDate != nil {
		reversalDate = *in.ReversalDate
	}

	var result ReverseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		original, err := tx.LockDocument(ctx, in.TenantID, in.DocumentID)
		if err != nil {
			return err
		}
		if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, original.LegalEntityID, "document.reverse"); err != nil {
			return err
		}
		switch original.Status {
		case StatusPosted, StatusPartiallySettled:
		case StatusReversed:
			return shared.ErrAlreadyReversed
		default:
			return shared.ErrInvalidStatus
		}
		if original.ReversalOfDocumentID != nil {
			return shared.ErrInvalidStatus
		}
		reversed, err := tx.HasReversal(ctx, in.TenantID, original.ID)
		if err != nil {
			return err
		}
		if reversed {
			return shared.ErrAlreadyReversed
		}
		if original.PostedJournalEntryID == nil {
			return shared.ErrJournalNotFound
		}

		originalEntry, err := tx.Journals().GetEntryWithLines(ctx, in.TenantID, *original.PostedJournalEntryID)
		if err != nil {
			return err
		}
		if originalEntry.Status == journal.StatusReversed || originalEntry.ReversalEntryID != nil {
			return shared.ErrAlreadyReversed
		}
		if len(originalEntry.Lines) == 0 {
			return shared.ErrEmptyJournal
		}

		resolution, err := calendar.NewResolver(tx.Calendar()).
			ResolveBookAndPeriod(ctx, in.TenantID, original.LegalEntityID, reversalDate, original.BookID)
		if err != nil {
			return err
		}

		alloc := sequence.NewAllocator(tx.Sequences())
		journalNo, err := alloc.Allocate(ctx, sequence.Scope{
			TenantID:      in.TenantID,
			LegalEntityID: original.LegalEntityID,
			Namespace:     sequence.NamespaceJournal,
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}
		reversalEntry, err := tx.Journals().InsertEntry(ctx, journal.EntryInput{
			TenantID:       in.TenantID,
			LegalEntityID:  original.LegalEntityID,
			BookID:         resolution.BookID,
			FiscalPeriodID: resolution.FiscalPeriod.ID,
			JournalNo:      journalNo,
			JournalDate:    reversalDate,
			SourceType:     originalEntry.SourceType + ":REVERSAL",
			SourceID:       uuid.New(),
			Memo:           reversalDescription(in.Reason, original.DocumentNo),
			Status:         journal.StatusPosted,
			PostedBy:       in.UserID,
			Lines:          journal.MirrorLines(originalEntry.Lines),
		})
		if err != nil {
			return err
		}
		if err := tx.Journals().MarkReversed(ctx, originalEntry.ID, reversalEntry.ID, in.Reason, s.now()); err != nil {
			return err
		}

		seq, err := alloc.Allocate(ctx, sequence.Scope{
			TenantID:      in.TenantID,
			LegalEntityID: original.LegalEntityID,
			Direction:     original.Direction,
			Namespace:     string(original.Type),
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}

		now := s.now()
		originalID := original.ID
		entryID := reversalEntry.ID
		bookID := resolution.BookID
		periodID := resolution.FiscalPeriod.ID
		userID := in.UserID
		reversalDoc, err := tx.InsertDocument(ctx, DocumentInput{
			TenantID:             in.TenantID,
			LegalEntityID:        original.LegalEntityID,
			ExternalRef:          uuid.New(),
			Direction:            original.Direction,
			Type:                 original.Type,
			Status:               StatusReversed,
			CounterpartyID:       original.CounterpartyID,
			DocumentDate:         reversalDate,
			Currency:             original.Currency,
			AmountTxn:            original.AmountTxn,
			AmountBase:           original.AmountBase,
			FiscalYear:           resolution.FiscalYear,
			SequenceNo:           seq,
			DocumentNo:           FormatDocumentNo(original.Direction, string(original.Type), resolution.FiscalYear, seq),
			Description:          reversalDescription(in.Reason, original.DocumentNo),
			FxRate:               original.FxRate,
			FxSource:             original.FxSource,
			FxOverrideUsed:       original.FxOverrideUsed,
			BookID:               &bookID,
			FiscalPeriodID:       &periodID,
			PostedJournalEntryID: &entryID,
			ReversalOfDocumentID: &originalID,
			PostedAt:             &now,
			PostedBy:             &userID,
		})
		if err != nil {
			return err
		}

		if err := tx.MarkReversed(ctx, in.TenantID, original.ID, now); err != nil {
			return err
		}
		if err := tx.CancelOpenItem(ctx, in.TenantID, original.ID); err != nil {
			return err
		}

		if err := tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			Action:       "document.reverse",
			ResourceType: "cari_document",
			ResourceID:   strconv.FormatInt(original.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", original.LegalEntityID),
			Payload: map[string]any{
				"reversal_document_id":      reversalDoc.ID,
				"reversal_document_no":      reversalDoc.DocumentNo,
				"original_journal_entry_id": originalEntry.ID,
				"reversal_journal_entry_id": reversalEntry.ID,
				"reason":                    in.Reason,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = ReverseResult{Reversal: reversalDoc, Journal: reversalEntry}
		return nil
	})
	if err != nil {
		return ReverseResult{}, err
	}
	s.metrics.ReversalRecorded(string(result.Reversal.Direction))
	s.logger.Info("document reversed",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("document_id", in.DocumentID),
		slog.Int64("reversal_document_id", result.Reversal.ID),
		slog.String("reversal_document_no", result.Reversal.DocumentNo))
	return result, nil
}

func reversalDescription(reason, originalNo string) string {
	if reason != "" {
		return reason
	}
	return fmt.Sprintf("Reversal of %s", originalNo)
}
