package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

type journalSeqKey struct {
	tenantID      int64
	legalEntityID int64
	namespace     string
	year          int
}

type memoryJournalStore struct {
	entries  map[int64]Entry
	nextID   int64
	counters map[journalSeqKey]int64

	books    []calendar.Book
	periods  []calendar.FiscalPeriod
	statuses map[[2]int64]calendar.PeriodStatus

	audits []internalShared.AuditEvent
}

func newMemoryJournalStore() *memoryJournalStore {
	return &memoryJournalStore{
		entries:  make(map[int64]Entry),
		counters: make(map[journalSeqKey]int64),
		books: []calendar.Book{
			{ID: 3, TenantID: 1, LegalEntityID: 7, Type: calendar.BookTypeLocal, BaseCurrency: "TRY", CalendarID: 5},
		},
		periods: []calendar.FiscalPeriod{{
			ID: 10, CalendarID: 5, Name: "2024-M03", FiscalYear: 2024,
			StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		}},
		statuses: make(map[[2]int64]calendar.PeriodStatus),
	}
}

func (s *memoryJournalStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return fn(ctx, &memoryJournalTx{s: s})
}

func (s *memoryJournalStore) Journals() Repository { return &memoryEntryRepo{s: s} }

type memoryJournalTx struct {
	s *memoryJournalStore
}

func (t *memoryJournalTx) Calendar() calendar.Repository {
	return &txCalendarRepo{s: t.s}
}

func (t *memoryJournalTx) Sequences() sequence.Repository {
	return &txSequenceRepo{s: t.s}
}

func (t *memoryJournalTx) Journals() Repository { return &memoryEntryRepo{s: t.s} }

func (t *memoryJournalTx) Audit() internalShared.AuditWriter { return &txAudit{s: t.s} }

type txCalendarRepo struct{ s *memoryJournalStore }

func (r *txCalendarRepo) FindBook(_ context.Context, tenantID, legalEntityID int64, preferredBookID *int64) (calendar.Book, error) {
	for _, b := range r.s.books {
		if b.TenantID != tenantID || b.LegalEntityID != legalEntityID {
			continue
		}
		if preferredBookID != nil && b.ID != *preferredBookID {
			continue
		}
		return b, nil
	}
	return calendar.Book{}, shared.Validationf("no book for legal entity %d", legalEntityID)
}

func (r *txCalendarRepo) FindPeriodByDate(_ context.Context, calendarID int64, date time.Time) (calendar.FiscalPeriod, error) {
	for _, p := range r.s.periods {
		if p.CalendarID == calendarID && p.Contains(date) {
			return p, nil
		}
	}
	return calendar.FiscalPeriod{}, shared.ErrNoPeriodFound
}

func (r *txCalendarRepo) GetPeriodStatus(_ context.Context, bookID, periodID int64) (calendar.PeriodStatus, error) {
	if status, ok := r.s.statuses[[2]int64{bookID, periodID}]; ok {
		return status, nil
	}
	return calendar.PeriodStatusOpen, nil
}

type txSequenceRepo struct{ s *memoryJournalStore }

func (r *txSequenceRepo) NextSequence(_ context.Context, scope sequence.Scope, fiscalYear int) (int64, error) {
	key := journalSeqKey{scope.TenantID, scope.LegalEntityID, scope.Namespace, fiscalYear}
	r.s.counters[key]++
	return r.s.counters[key], nil
}

type memoryEntryRepo struct{ s *memoryJournalStore }

func (r *memoryEntryRepo) InsertEntry(_ context.Context, in EntryInput) (Entry, error) {
	if err := ValidateBalanced(in.Lines); err != nil {
		return Entry{}, err
	}
	totalDebit, totalCredit := Totals(in.Lines)
	r.s.nextID++
	entry := Entry{
		ID:             r.s.nextID,
		TenantID:       in.TenantID,
		LegalEntityID:  in.LegalEntityID,
		BookID:         in.BookID,
		FiscalPeriodID: in.FiscalPeriodID,
		JournalNo:      in.JournalNo,
		JournalDate:    in.JournalDate,
		SourceType:     in.SourceType,
		SourceID:       in.SourceID,
		Memo:           in.Memo,
		Status:         in.Status,
		TotalDebit:     totalDebit,
		TotalCredit:    totalCredit,
		PostedBy:       in.PostedBy,
	}
	for i, l := range in.Lines {
		entry.Lines = append(entry.Lines, Line{
			ID: int64(i + 1), EntryID: entry.ID, LineNo: l.LineNo, AccountID: l.AccountID,
			AmountTxn: l.AmountTxn, DebitBase: l.DebitBase, CreditBase: l.CreditBase,
			Currency: l.Currency, SubledgerRef: l.SubledgerRef, Description: l.Description,
		})
	}
	r.s.entries[entry.ID] = entry
	return entry, nil
}

func (r *memoryEntryRepo) GetEntryWithLines(_ context.Context, tenantID, entryID int64) (Entry, error) {
	entry, ok := r.s.entries[entryID]
	if !ok || entry.TenantID != tenantID {
		return Entry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (r *memoryEntryRepo) MarkReversed(_ context.Context, entryID, reversalEntryID int64, reason string, at time.Time) error {
	entry, ok := r.s.entries[entryID]
	if !ok || entry.Status != StatusPosted || entry.ReversalEntryID != nil {
		return shared.ErrAlreadyReversed
	}
	entry.Status = StatusReversed
	entry.ReversalEntryID = &reversalEntryID
	entry.ReversedAt = &at
	entry.ReverseReason = reason
	r.s.entries[entryID] = entry
	return nil
}

func (r *memoryEntryRepo) ListEntries(_ context.Context, tenantID int64, _ int) ([]Entry, error) {
	var out []Entry
	for _, e := range r.s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

type txAudit struct{ s *memoryJournalStore }

func (a *txAudit) Record(_ context.Context, event internalShared.AuditEvent) error {
	a.s.audits = append(a.s.audits, event)
	return nil
}

func newJournalTestService(store *memoryJournalStore) *Service {
	svc := NewService(store, internalShared.AllowAllAccess{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time {
		return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func manualInput() PostManualInput {
	return PostManualInput{
		TenantID:      1,
		LegalEntityID: 7,
		JournalDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Memo:          "accrual for march rent",
		UserID:        99,
		Lines: []LineInput{
			{LineNo: 1, AccountID: 6100, DebitBase: decimal.RequireFromString("1500"), Currency: "TRY"},
			{LineNo: 2, AccountID: 3810, CreditBase: decimal.RequireFromString("1500"), Currency: "TRY"},
		},
	}
}

func TestPostManualJournal(t *testing.T) {
	store := newMemoryJournalStore()
	svc := newJournalTestService(store)

	entry, err := svc.PostManual(context.Background(), manualInput())
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)
	require.Equal(t, int64(1), entry.JournalNo)
	require.Equal(t, "MANUAL", entry.SourceType)
	require.Equal(t, int64(3), entry.BookID)
	require.Equal(t, int64(10), entry.FiscalPeriodID)
	require.True(t, entry.TotalDebit.Equal(decimal.RequireFromString("1500")))
	require.True(t, entry.TotalCredit.Equal(entry.TotalDebit))

	require.Len(t, store.audits, 1)
	require.Equal(t, "journal.post", store.audits[0].Action)

	second, err := svc.PostManual(context.Background(), manualInput())
	require.NoError(t, err)
	require.Equal(t, int64(2), second.JournalNo)
}

func TestPostManualRejectsUnbalanced(t *testing.T) {
	store := newMemoryJournalStore()
	svc := newJournalTestService(store)

	in := manualInput()
	in.Lines[1].CreditBase = decimal.RequireFromString("1499")
	_, err := svc.PostManual(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, store.entries)
}

func TestPostManualRejectsSingleLine(t *testing.T) {
	store := newMemoryJournalStore()
	svc := newJournalTestService(store)

	in := manualInput()
	in.Lines = in.Lines[:1]
	_, err := svc.PostManual(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostManualFailsWhenPeriodLocked(t *testing.T) {
	store := newMemoryJournalStore()
	store.statuses[[2]int64{3, 10}] = calendar.PeriodStatusHardClosed
	svc := newJournalTestService(store)

	_, err := svc.PostManual(context.Background(), manualInput())
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestReverseManualMirrorsLines(t *testing.T) {
	store := newMemoryJournalStore()
	svc := newJournalTestService(store)

	entry, err := svc.PostManual(context.Background(), manualInput())
	require.NoError(t, err)

	reversal, err := svc.ReverseManual(context.Background(), ReverseManualInput{
		TenantID: 1, EntryID: entry.ID, UserID: 99, Reason: "wrong account",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, reversal.Status)
	require.Equal(t, "MANUAL:REVERSAL", reversal.SourceType)
	require.Equal(t, "wrong account", reversal.Memo)
	require.Len(t, reversal.Lines, 2)
	require.True(t, reversal.Lines[0].CreditBase.Equal(entry.Lines[0].DebitBase))
	require.True(t, reversal.Lines[1].DebitBase.Equal(entry.Lines[1].CreditBase))

	original, err := svc.Get(context.Background(), 1, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, original.Status)
	require.NotNil(t, original.ReversalEntryID)
	require.Equal(t, reversal.ID, *original.ReversalEntryID)
	require.Equal(t, "wrong account", original.ReverseReason)

	_, err = svc.ReverseManual(context.Background(), ReverseManualInput{
		TenantID: 1, EntryID: entry.ID, UserID: 99,
	})
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)
}

func TestReverseManualUnknownEntry(t *testing.T) {
	store := newMemoryJournalStore()
	svc := newJournalTestService(store)

	_, err := svc.ReverseManual(context.Background(), ReverseManualInput{TenantID: 1, EntryID: 404, UserID: 99})
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}
