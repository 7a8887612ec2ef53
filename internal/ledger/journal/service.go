package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// PostManualInput carries a manual N-line journal posting request.
type PostManualInput struct {
	TenantID        int64
	LegalEntityID   int64
	PreferredBookID *int64
	JournalDate     time.Time
	Memo            string
	SourceType      string
	SourceID        uuid.UUID
	UserID          int64
	Lines           []LineInput
}

// ReverseManualInput carries a journal-level reversal request.
type ReverseManualInput struct {
	TenantID     int64
	EntryID      int64
	UserID       int64
	Reason       string
	ReversalDate *time.Time
}

// Service posts and reverses manual journals through the same period and
// sequencing machinery as document postings.
type Service struct {
	store  Store
	access internalShared.AccessChecker
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, access internalShared.AccessChecker, logger *slog.Logger) *Service {
	return &Service{store: store, access: access, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns recent journal entries for a tenant.
func (s *Service) List(ctx context.Context, tenantID int64, limit int) ([]Entry, error) {
	return s.store.Journals().ListEntries(ctx, tenantID, limit)
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, tenantID, entryID int64) (Entry, error) {
	return s.store.Journals().GetEntryWithLines(ctx, tenantID, entryID)
}

// PostManual validates and posts a balanced manual journal. The entry is
// created POSTED with a gapless journal number for the entity and fiscal
// year.
func (s *Service) PostManual(ctx context.Context, in PostManualInput) (Entry, error) {
	if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, in.LegalEntityID, "journal.post"); err != nil {
		return Entry{}, err
	}
	if in.TenantID == 0 || in.LegalEntityID == 0 {
		return Entry{}, shared.Validationf("tenant and legal entity required")
	}
	if in.JournalDate.IsZero() {
		return Entry{}, shared.Validationf("journal date required")
	}
	if err := ValidateBalanced(in.Lines); err != nil {
		return Entry{}, err
	}
	if in.SourceType == "" {
		in.SourceType = "MANUAL"
	}
	if in.SourceID == uuid.Nil {
		in.SourceID = uuid.New()
	}

	var entry Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		resolution, err := calendar.NewResolver(tx.Calendar()).
			ResolveBookAndPeriod(ctx, in.TenantID, in.LegalEntityID, in.JournalDate, in.PreferredBookID)
		if err != nil {
			return err
		}
		journalNo, err := sequence.NewAllocator(tx.Sequences()).Allocate(ctx, sequence.Scope{
			TenantID:      in.TenantID,
			LegalEntityID: in.LegalEntityID,
			Namespace:     sequence.NamespaceJournal,
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}
		entry, err = tx.Journals().InsertEntry(ctx, EntryInput{
			TenantID:       in.TenantID,
			LegalEntityID:  in.LegalEntityID,
			BookID:         resolution.BookID,
			FiscalPeriodID: resolution.FiscalPeriod.ID,
			JournalNo:      journalNo,
			JournalDate:    in.JournalDate,
			SourceType:     in.SourceType,
			SourceID:       in.SourceID,
			Memo:           in.Memo,
			Status:         StatusPosted,
			PostedBy:       in.UserID,
			Lines:          in.Lines,
		})
		if err != nil {
			return err
		}
		return tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			Action:       "journal.post",
			ResourceType: "journal_entry",
			ResourceID:   strconv.FormatInt(entry.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", in.LegalEntityID),
			Payload: map[string]any{
				"journal_no":  entry.JournalNo,
				"source_type": in.SourceType,
				"source_id":   in.SourceID.String(),
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Entry{}, err
	}
	s.logger.Info("manual journal posted",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("entry_id", entry.ID),
		slog.Int64("journal_no", entry.JournalNo))
	return entry, nil
}

// ReverseManual mirrors a posted manual journal into the current open
// period. The original entry moves to REVERSED exactly once.
func (s *Service) ReverseManual(ctx context.Context, in ReverseManualInput) (Entry, error) {
	if in.EntryID == 0 {
		return Entry{}, shared.Validationf("entry id required")
	}
	reversalDate := s.now().UTC().Truncate(24 * time.Hour)
	if in.ReversalDate != nil {
		reversalDate = *in.ReversalDate
	}

	var reversal Entry
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		original, err := tx.Journals().GetEntryWithLines(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		if err := s.access.AssertScopeAccess(ctx, internalShared.ScopeLegalEntity, original.LegalEntityID, "journal.reverse"); err != nil {
			return err
		}
		if original.Status == StatusReversed || original.ReversalEntryID != nil {
			return shared.ErrAlreadyReversed
		}
		if original.Status != StatusPosted {
			return shared.ErrInvalidStatus
		}
		if len(original.Lines) == 0 {
			return shared.ErrEmptyJournal
		}
		resolution, err := calendar.NewResolver(tx.Calendar()).
			ResolveBookAndPeriod(ctx, in.TenantID, original.LegalEntityID, reversalDate, &original.BookID)
		if err != nil {
			return err
		}
		journalNo, err := sequence.NewAllocator(tx.Sequences()).Allocate(ctx, sequence.Scope{
			TenantID:      in.TenantID,
			LegalEntityID: original.LegalEntityID,
			Namespace:     sequence.NamespaceJournal,
		}, resolution.FiscalYear)
		if err != nil {
			return err
		}
		reversal, err = tx.Journals().InsertEntry(ctx, EntryInput{
			TenantID:       in.TenantID,
			LegalEntityID:  original.LegalEntityID,
			BookID:         resolution.BookID,
			FiscalPeriodID: resolution.FiscalPeriod.ID,
			JournalNo:      journalNo,
			JournalDate:    reversalDate,
			SourceType:     original.SourceType + ":REVERSAL",
			SourceID:       uuid.New(),
			Memo:           reversalMemo(in.Reason, original.JournalNo),
			Status:         StatusPosted,
			PostedBy:       in.UserID,
			Lines:          MirrorLines(original.Lines),
		})
		if err != nil {
			return err
		}
		if err := tx.Journals().MarkReversed(ctx, original.ID, reversal.ID, in.Reason, s.now()); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, internalShared.AuditEvent{
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			Action:       "journal.reverse",
			ResourceType: "journal_entry",
			ResourceID:   strconv.FormatInt(original.ID, 10),
			Scope:        fmt.Sprintf("legal_entity:%d", original.LegalEntityID),
			Payload: map[string]any{
				"reversal_entry_id": reversal.ID,
				"reversal_no":       reversal.JournalNo,
				"reason":            in.Reason,
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return reversal, nil
}

func reversalMemo(reason string, originalNo int64) string {
	if reason != "" {
		return reason
	}
	return fmt.Sprintf("Reversal of journal %d", originalNo)
}
