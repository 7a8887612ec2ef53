package document

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mrcaglayan/cariledger/internal/ledger/accounts"
	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/fx"
	"github.com/mrcaglayan/cariledger/internal/ledger/journal"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

type seqKey struct {
	tenantID      int64
	legalEntityID int64
	direction     shared.Direction
	namespace     string
	year          int
}

type memoryStore struct {
	docs       map[int64]Document
	openItems  map[int64]OpenItem
	nextDocID  int64
	nextItemID int64

	books    []calendar.Book
	periods  []calendar.FiscalPeriod
	statuses map[[2]int64]calendar.PeriodStatus

	sequences map[seqKey]int64
	rates     []fx.Rate
	accounts  map[int64]accounts.Account
	configs   map[shared.Direction][2]int64

	entries     map[int64]journal.Entry
	nextEntryID int64

	audits []internalShared.AuditEvent
}

func newMemoryStore() *memoryStore {
	march := calendar.FiscalPeriod{
		ID: 10, CalendarID: 5, Name: "2024-M03", FiscalYear: 2024,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	june := calendar.FiscalPeriod{
		ID: 11, CalendarID: 5, Name: "2024-M06", FiscalYear: 2024,
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	return &memoryStore{
		docs:      make(map[int64]Document),
		openItems: make(map[int64]OpenItem),
		books: []calendar.Book{
			{ID: 3, TenantID: 1, LegalEntityID: 7, Type: calendar.BookTypeLocal, BaseCurrency: "TRY", CalendarID: 5},
		},
		periods:   []calendar.FiscalPeriod{march, june},
		statuses:  make(map[[2]int64]calendar.PeriodStatus),
		sequences: make(map[seqKey]int64),
		accounts: map[int64]accounts.Account{
			1100: {ID: 1100, TenantID: 1, Code: "1100", Type: accounts.AccountTypeAsset, IsActive: true},
			2100: {ID: 2100, TenantID: 1, Code: "2100", Type: accounts.AccountTypeLiability, IsActive: true},
			4100: {ID: 4100, TenantID: 1, Code: "4100", Type: accounts.AccountTypeRevenue, IsActive: true},
			5100: {ID: 5100, TenantID: 1, Code: "5100", Type: accounts.AccountTypeExpense, IsActive: true},
		},
		configs: map[shared.Direction][2]int64{
			shared.DirectionAR: {1100, 4100},
			shared.DirectionAP: {2100, 5100},
		},
		entries: make(map[int64]journal.Entry),
	}
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return fn(ctx, &memoryTx{s: s})
}

func (s *memoryStore) GetDocument(_ context.Context, tenantID, documentID int64) (Document, error) {
	doc, ok := s.docs[documentID]
	if !ok || doc.TenantID != tenantID {
		return Document{}, shared.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *memoryStore) ListDocuments(_ context.Context, tenantID int64, f ListFilter) ([]Document, error) {
	var out []Document
	for _, doc := range s.docs {
		if doc.TenantID != tenantID {
			continue
		}
		if f.Direction != "" && doc.Direction != f.Direction {
			continue
		}
		if f.Status != "" && doc.Status != f.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *memoryStore) GetOpenItem(_ context.Context, tenantID, documentID int64) (OpenItem, error) {
	item, ok := s.openItems[documentID]
	if !ok || item.TenantID != tenantID {
		return OpenItem{}, shared.ErrDocumentNotFound
	}
	return item, nil
}

type memoryTx struct {
	s *memoryStore
}

func (t *memoryTx) LockDocument(ctx context.Context, tenantID, documentID int64) (Document, error) {
	return t.s.GetDocument(ctx, tenantID, documentID)
}

func (t *memoryTx) InsertDocument(_ context.Context, in DocumentInput) (Document, error) {
	t.s.nextDocID++
	doc := Document{
		ID:                   t.s.nextDocID,
		TenantID:             in.TenantID,
		LegalEntityID:        in.LegalEntityID,
		ExternalRef:          in.ExternalRef,
		Direction:            in.Direction,
		Type:                 in.Type,
		Status:               in.Status,
		CounterpartyID:       in.CounterpartyID,
		DocumentDate:         in.DocumentDate,
		DueDate:              in.DueDate,
		Currency:             in.Currency,
		AmountTxn:            in.AmountTxn,
		AmountBase:           in.AmountBase,
		OpenAmountTxn:        in.OpenAmountTxn,
		OpenAmountBase:       in.OpenAmountBase,
		FiscalYear:           in.FiscalYear,
		SequenceNo:           in.SequenceNo,
		DocumentNo:           in.DocumentNo,
		Description:          in.Description,
		FxRate:               in.FxRate,
		FxSource:             in.FxSource,
		FxOverrideUsed:       in.FxOverrideUsed,
		BookID:               in.BookID,
		FiscalPeriodID:       in.FiscalPeriodID,
		PostedJournalEntryID: in.PostedJournalEntryID,
		ReversalOfDocumentID: in.ReversalOfDocumentID,
		PostedAt:             in.PostedAt,
		PostedBy:             in.PostedBy,
	}
	if in.ReversalOfDocumentID != nil {
		for _, other := range t.s.docs {
			if other.ReversalOfDocumentID != nil && *other.ReversalOfDocumentID == *in.ReversalOfDocumentID {
				return Document{}, shared.ErrAlreadyReversed
			}
		}
	}
	t.s.docs[doc.ID] = doc
	return doc, nil
}

func (t *memoryTx) UpdateDraft(_ context.Context, u DraftUpdate) error {
	doc, ok := t.s.docs[u.DocumentID]
	if !ok || doc.Status != StatusDraft {
		return shared.ErrAlreadyPosted
	}
	doc.Direction = u.Direction
	doc.Type = u.Type
	doc.CounterpartyID = u.CounterpartyID
	doc.DocumentDate = u.DocumentDate
	doc.DueDate = u.DueDate
	doc.Currency = u.Currency
	doc.AmountTxn = u.AmountTxn
	doc.OpenAmountTxn = u.AmountTxn
	doc.Description = u.Description
	doc.FiscalYear = u.FiscalYear
	doc.SequenceNo = u.SequenceNo
	doc.DocumentNo = u.DocumentNo
	t.s.docs[u.DocumentID] = doc
	return nil
}

func (t *memoryTx) MarkPosted(_ context.Context, u PostedUpdate) error {
	doc, ok := t.s.docs[u.DocumentID]
	if !ok || doc.Status != StatusDraft {
		return shared.ErrAlreadyPosted
	}
	doc.Status = StatusPosted
	doc.SequenceNo = u.SequenceNo
	doc.DocumentNo = u.DocumentNo
	doc.FiscalYear = u.FiscalYear
	doc.AmountBase = u.AmountBase
	doc.OpenAmountTxn = u.OpenAmountTxn
	doc.OpenAmountBase = u.OpenAmountBase
	doc.FxRate = u.FxRate
	doc.FxSource = u.FxSource
	doc.FxOverrideUsed = u.FxOverrideUsed
	doc.BookID = &u.BookID
	doc.FiscalPeriodID = &u.FiscalPeriodID
	doc.PostedJournalEntryID = &u.JournalEntryID
	doc.PostedAt = &u.PostedAt
	doc.PostedBy = &u.PostedBy
	t.s.docs[u.DocumentID] = doc
	return nil
}

func (t *memoryTx) MarkCancelled(_ context.Context, tenantID, documentID int64) error {
	doc, ok := t.s.docs[documentID]
	if !ok || doc.TenantID != tenantID || doc.Status != StatusDraft {
		return shared.ErrAlreadyPosted
	}
	doc.Status = StatusCancelled
	t.s.docs[documentID] = doc
	return nil
}

func (t *memoryTx) MarkReversed(_ context.Context, tenantID, documentID int64, _ time.Time) error {
	doc, ok := t.s.docs[documentID]
	if !ok || doc.TenantID != tenantID || (doc.Status != StatusPosted && doc.Status != StatusPartiallySettled) {
		return shared.ErrAlreadyReversed
	}
	doc.Status = StatusReversed
	doc.OpenAmountTxn = decimal.Zero
	doc.OpenAmountBase = decimal.Zero
	t.s.docs[documentID] = doc
	return nil
}

func (t *memoryTx) HasReversal(_ context.Context, tenantID, documentID int64) (bool, error) {
	for _, doc := range t.s.docs {
		if doc.TenantID == tenantID && doc.ReversalOfDocumentID != nil && *doc.ReversalOfDocumentID == documentID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertOpenItem(_ context.Context, in OpenItemInput) (OpenItem, error) {
	t.s.nextItemID++
	item := OpenItem{
		ID:             t.s.nextItemID,
		TenantID:       in.TenantID,
		DocumentID:     in.DocumentID,
		Direction:      in.Direction,
		Currency:       in.Currency,
		OriginalAmount: in.OriginalAmount,
		ResidualAmount: in.OriginalAmount,
		SettledAmount:  decimal.Zero,
		Status:         OpenItemOpen,
	}
	t.s.openItems[in.DocumentID] = item
	return item, nil
}

func (t *memoryTx) CancelOpenItem(_ context.Context, tenantID, documentID int64) error {
	item, ok := t.s.openItems[documentID]
	if !ok || item.TenantID != tenantID {
		return nil
	}
	if item.Status == OpenItemOpen || item.Status == OpenItemPartiallySettled {
		item.Status = OpenItemCancelled
		item.ResidualAmount = decimal.Zero
		t.s.openItems[documentID] = item
	}
	return nil
}

func (t *memoryTx) Calendar() calendar.Repository      { return &memCalendarRepo{s: t.s} }
func (t *memoryTx) Sequences() sequence.Repository     { return &memSequenceRepo{s: t.s} }
func (t *memoryTx) FxRates() fx.Repository             { return &memFxRepo{s: t.s} }
func (t *memoryTx) Accounts() accounts.Repository      { return &memAccountRepo{s: t.s} }
func (t *memoryTx) Journals() journal.Repository       { return &memJournalRepo{s: t.s} }
func (t *memoryTx) Audit() internalShared.AuditWriter  { return &memAudit{s: t.s} }

type memCalendarRepo struct{ s *memoryStore }

func (r *memCalendarRepo) FindBook(_ context.Context, tenantID, legalEntityID int64, preferredBookID *int64) (calendar.Book, error) {
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

func (r *memCalendarRepo) FindPeriodByDate(_ context.Context, calendarID int64, date time.Time) (calendar.FiscalPeriod, error) {
	for _, p := range r.s.periods {
		if p.CalendarID == calendarID && p.Contains(date) {
			return p, nil
		}
	}
	return calendar.FiscalPeriod{}, shared.ErrNoPeriodFound
}

func (r *memCalendarRepo) GetPeriodStatus(_ context.Context, bookID, periodID int64) (calendar.PeriodStatus, error) {
	if status, ok := r.s.statuses[[2]int64{bookID, periodID}]; ok {
		return status, nil
	}
	return calendar.PeriodStatusOpen, nil
}

type memSequenceRepo struct{ s *memoryStore }

func (r *memSequenceRepo) NextSequence(_ context.Context, scope sequence.Scope, fiscalYear int) (int64, error) {
	key := seqKey{scope.TenantID, scope.LegalEntityID, scope.Direction, scope.Namespace, fiscalYear}
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

type memFxRepo struct{ s *memoryStore }

func (r *memFxRepo) LatestSpotRate(_ context.Context, tenantID int64, date time.Time, from, to string) (fx.Rate, bool, error) {
	var best fx.Rate
	found := false
	for _, rate := range r.s.rates {
		if rate.TenantID != tenantID || rate.FromCurrency != from || rate.ToCurrency != to || rate.RateDate.After(date) {
			continue
		}
		if !found || rate.RateDate.After(best.RateDate) {
			best = rate
			found = true
		}
	}
	return best, found, nil
}

type memAccountRepo struct{ s *memoryStore }

func (r *memAccountRepo) GetAccount(_ context.Context, tenantID, accountID int64) (accounts.Account, error) {
	a, ok := r.s.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return accounts.Account{}, shared.ErrPostingAccountsNotConfigured
	}
	return a, nil
}

func (r *memAccountRepo) GetPostingConfig(_ context.Context, _ int64, direction shared.Direction, _ *int64) (int64, int64, error) {
	pair, ok := r.s.configs[direction]
	if !ok {
		return 0, 0, shared.ErrPostingAccountsNotConfigured
	}
	return pair[0], pair[1], nil
}

type memJournalRepo struct{ s *memoryStore }

func (r *memJournalRepo) InsertEntry(_ context.Context, in journal.EntryInput) (journal.Entry, error) {
	if err := journal.ValidateBalanced(in.Lines); err != nil {
		return journal.Entry{}, err
	}
	totalDebit, totalCredit := journal.Totals(in.Lines)
	r.s.nextEntryID++
	entry := journal.Entry{
		ID:             r.s.nextEntryID,
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
		entry.Lines = append(entry.Lines, journal.Line{
			ID: int64(i + 1), EntryID: entry.ID, LineNo: l.LineNo, AccountID: l.AccountID,
			AmountTxn: l.AmountTxn, DebitBase: l.DebitBase, CreditBase: l.CreditBase,
			Currency: l.Currency, SubledgerRef: l.SubledgerRef, Description: l.Description,
		})
	}
	r.s.entries[entry.ID] = entry
	return entry, nil
}

func (r *memJournalRepo) GetEntryWithLines(_ context.Context, tenantID, entryID int64) (journal.Entry, error) {
	entry, ok := r.s.entries[entryID]
	if !ok || entry.TenantID != tenantID {
		return journal.Entry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (r *memJournalRepo) MarkReversed(_ context.Context, entryID, reversalEntryID int64, reason string, at time.Time) error {
	entry, ok := r.s.entries[entryID]
	if !ok || entry.Status != journal.StatusPosted || entry.ReversalEntryID != nil {
		return shared.ErrAlreadyReversed
	}
	entry.Status = journal.StatusReversed
	entry.ReversalEntryID = &reversalEntryID
	entry.ReversedAt = &at
	entry.ReverseReason = reason
	r.s.entries[entryID] = entry
	return nil
}

func (r *memJournalRepo) ListEntries(_ context.Context, tenantID int64, _ int) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range r.s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memAudit struct{ s *memoryStore }

func (a *memAudit) Record(_ context.Context, event internalShared.AuditEvent) error {
	a.s.audits = append(a.s.audits, event)
	return nil
}

type recordingMetrics struct {
	postings  int
	reversals int
	overrides int
	failures  []string
}

func (m *recordingMetrics) PostingRecorded(string, string) { m.postings++ }
func (m *recordingMetrics) ReversalRecorded(string)        { m.reversals++ }
func (m *recordingMetrics) FxOverrideRecorded()            { m.overrides++ }
func (m *recordingMetrics) PostingFailed(code string)      { m.failures = append(m.failures, code) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *memoryStore) (*Service, *recordingMetrics) {
	metrics := &recordingMetrics{}
	svc := NewService(store, internalShared.AllowAllAccess{}, nil, metrics, testLogger())
	svc.WithNow(func() time.Time {
		return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	})
	return svc, metrics
}

func draftInput() CreateDraftInput {
	return CreateDraftInput{
		TenantID:       1,
		LegalEntityID:  7,
		Direction:      shared.DirectionAR,
		Type:           shared.DocTypeInvoice,
		CounterpartyID: 42,
		DocumentDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Currency:       "USD",
		AmountTxn:      decimal.RequireFromString("1000.00"),
		Description:    "March services",
		UserID:         99,
	}
}

func auditActions(store *memoryStore) []string {
	out := make([]string, 0, len(store.audits))
	for _, e := range store.audits {
		out = append(out, e.Action)
	}
	return out
}

func TestCreateDraftAllocatesProvisionalNumber(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	doc, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, doc.Status)
	require.Equal(t, "AR-DRAFT-2024-000001", doc.DocumentNo)
	require.Equal(t, int64(1), doc.SequenceNo)
	require.Equal(t, 2024, doc.FiscalYear)
	require.True(t, doc.AmountBase.IsZero())
	require.Equal(t, []string{"document.create"}, auditActions(store))

	second, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, "AR-DRAFT-2024-000002", second.DocumentNo)
}

func TestCreateDraftValidation(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	in := draftInput()
	in.AmountTxn = decimal.RequireFromString("-5")
	_, err := svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = draftInput()
	due := in.DocumentDate.AddDate(0, 0, -1)
	in.DueDate = &due
	_, err = svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = draftInput()
	in.Currency = "USDT"
	_, err = svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateDraftScopeDenied(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, internalShared.DenyAllAccess{}, nil, nil, testLogger())

	_, err := svc.CreateDraft(context.Background(), draftInput())
	var denied *internalShared.ScopeDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestPostDocumentEndToEnd(t *testing.T) {
	store := newMemoryStore()
	store.rates = []fx.Rate{{
		TenantID: 1, RateDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		FromCurrency: "USD", ToCurrency: "TRY", RateType: fx.RateTypeSpot,
		Rate: decimal.RequireFromString("32.5"),
	}}
	svc, metrics := newTestService(store)

	draft, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)

	result, err := svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.NoError(t, err)

	doc := result.Document
	require.Equal(t, StatusPosted, doc.Status)
	require.Equal(t, "AR-INVOICE-2024-000001", doc.DocumentNo)
	require.True(t, doc.AmountBase.Equal(decimal.RequireFromString("32500")))
	require.True(t, doc.FxRate.Equal(decimal.RequireFromString("32.5")))
	require.Equal(t, fx.SourceFxTable, doc.FxSource)
	require.False(t, doc.FxOverrideUsed)
	require.NotNil(t, doc.PostedJournalEntryID)

	entry := result.Journal
	require.Equal(t, journal.StatusPosted, entry.Status)
	require.Equal(t, int64(1), entry.JournalNo)
	require.Equal(t, int64(3), entry.BookID)
	require.Equal(t, int64(10), entry.FiscalPeriodID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(1100), entry.Lines[0].AccountID)
	require.True(t, entry.Lines[0].DebitBase.Equal(decimal.RequireFromString("32500")))
	require.Equal(t, int64(4100), entry.Lines[1].AccountID)
	require.True(t, entry.Lines[1].CreditBase.Equal(decimal.RequireFromString("32500")))
	require.True(t, entry.TotalDebit.Equal(entry.TotalCredit))

	item, err := svc.GetOpenItem(context.Background(), 1, doc.ID)
	require.NoError(t, err)
	require.Equal(t, OpenItemOpen, item.Status)
	require.True(t, item.ResidualAmount.Equal(decimal.RequireFromString("1000.00")))
	require.True(t, item.SettledAmount.IsZero())

	require.Equal(t, []string{"document.create", "document.post"}, auditActions(store))
	require.Equal(t, 1, metrics.postings)
	require.Equal(t, 0, metrics.overrides)
}

func TestPostParityDocumentSkipsRateTable(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	in := draftInput()
	in.Currency = "TRY"
	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)

	result, err := svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.NoError(t, err)
	require.True(t, result.Document.FxRate.Equal(decimal.NewFromInt(1)))
	require.Equal(t, fx.SourceParity, result.Document.FxSource)
	require.True(t, result.Document.AmountBase.Equal(decimal.RequireFromString("1000")))
}

func TestPostWithLockedRateOverrideWritesSecondAuditRow(t *testing.T) {
	store := newMemoryStore()
	store.rates = []fx.Rate{{
		TenantID: 1, RateDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		FromCurrency: "USD", ToCurrency: "TRY", RateType: fx.RateTypeSpot,
		Rate: decimal.RequireFromString("32.0"), IsLocked: true,
	}}
	svc, metrics := newTestService(store)

	in := draftInput()
	rate := decimal.RequireFromString("33.0")
	in.FxRate = &rate
	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrFxRateLocked)

	result, err := svc.Post(context.Background(), PostInput{
		TenantID:       1,
		DocumentID:     draft.ID,
		UserID:         99,
		UseFxOverride:  true,
		OverrideReason: "contract rate per agreement 42",
	})
	require.NoError(t, err)
	require.True(t, result.Document.FxOverrideUsed)
	require.True(t, result.Document.FxRate.Equal(rate))

	require.Equal(t, []string{"document.create", "document.post", "document.fx_override"}, auditActions(store))
	override := store.audits[2]
	effective := decimal.RequireFromString(override.Payload["effective_rate"].(string))
	require.True(t, effective.Equal(rate))
	reference := decimal.RequireFromString(override.Payload["reference_rate"].(string))
	require.True(t, reference.Equal(decimal.RequireFromString("32.0")))
	require.Equal(t, "contract rate per agreement 42", override.Payload["override_reason"])
	require.Equal(t, 1, metrics.overrides)
}

func TestPostTwiceFailsWithAlreadyPosted(t *testing.T) {
	store := newMemoryStore()
	svc, metrics := newTestService(store)

	in := draftInput()
	in.Currency = "TRY"
	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)
	require.Equal(t, 1, metrics.postings)
	require.Len(t, store.entries, 1)
}

func TestPostFailsWhenPeriodLocked(t *testing.T) {
	store := newMemoryStore()
	store.statuses[[2]int64{3, 10}] = calendar.PeriodStatusHardClosed
	svc, metrics := newTestService(store)

	in := draftInput()
	in.Currency = "TRY"
	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	stored, err := svc.Get(context.Background(), 1, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
	require.Empty(t, store.entries)
	require.Equal(t, []string{"PERIOD_LOCKED"}, metrics.failures)
}

func TestPostFailsWithoutRate(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	draft, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrMissingFxRate)
}

type rejectingValidator struct{}

func (rejectingValidator) ValidateForPosting(context.Context, Document) error {
	return shared.Validationf("counterparty on credit hold")
}

func TestPostRunsBusinessValidator(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, internalShared.AllowAllAccess{}, rejectingValidator{}, nil, testLogger())

	in := draftInput()
	in.Currency = "TRY"
	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateDraftRenumbersOnlyOnDirectionOrYearChange(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	draft, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, "AR-DRAFT-2024-000001", draft.DocumentNo)

	// Amount-only change keeps the provisional number.
	update := UpdateDraftInput{
		TenantID:       1,
		DocumentID:     draft.ID,
		Direction:      draft.Direction,
		Type:           draft.Type,
		CounterpartyID: draft.CounterpartyID,
		DocumentDate:   draft.DocumentDate,
		Currency:       draft.Currency,
		AmountTxn:      decimal.RequireFromString("2000.00"),
		UserID:         99,
	}
	updated, err := svc.UpdateDraft(context.Background(), update)
	require.NoError(t, err)
	require.Equal(t, "AR-DRAFT-2024-000001", updated.DocumentNo)
	require.True(t, updated.AmountTxn.Equal(decimal.RequireFromString("2000.00")))

	// Direction change allocates from the new scope.
	update.Direction = shared.DirectionAP
	updated, err = svc.UpdateDraft(context.Background(), update)
	require.NoError(t, err)
	require.Equal(t, "AP-DRAFT-2024-000001", updated.DocumentNo)

	// Fiscal-year change renumbers as well.
	update.Direction = shared.DirectionAP
	update.DocumentDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	updated, err = svc.UpdateDraft(context.Background(), update)
	require.NoError(t, err)
	require.Equal(t, "AP-DRAFT-2025-000001", updated.DocumentNo)
	require.Equal(t, 2025, updated.FiscalYear)
}

func TestUpdateDraftValidation(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	draft, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)

	update := UpdateDraftInput{
		TenantID:       1,
		DocumentID:     draft.ID,
		Direction:      draft.Direction,
		Type:           draft.Type,
		CounterpartyID: draft.CounterpartyID,
		DocumentDate:   draft.DocumentDate,
		Currency:       draft.Currency,
		AmountTxn:      draft.AmountTxn,
		UserID:         99,
	}

	in := update
	due := in.DocumentDate.AddDate(0, 0, -1)
	in.DueDate = &due
	_, err = svc.UpdateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = update
	in.Currency = "USDT"
	_, err = svc.UpdateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = update
	in.CounterpartyID = 0
	_, err = svc.UpdateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing was written by the rejected amendments.
	current, err := svc.Get(context.Background(), 1, draft.ID)
	require.NoError(t, err)
	require.Equal(t, draft.DocumentNo, current.DocumentNo)
	require.Equal(t, draft.Currency, current.Currency)
}

func TestCancelDraft(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(store)

	draft, err := svc.CreateDraft(context.Background(), draftInput())
	require.NoError(t, err)

	require.NoError(t, svc.CancelDraft(context.Background(), 1, draft.ID, 99))

	stored, err := svc.Get(context.Background(), 1, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)

	_, err = svc.Post(context.Background(), PostInput{TenantID: 1, DocumentID: draft.ID, UserID: 99})
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)

	err = svc.CancelDraft(context.Background(), 1, draft.ID, 99)
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)
}
