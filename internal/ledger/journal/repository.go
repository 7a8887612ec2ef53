package journal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// Repository persists journal entries and lines. Mutating methods must
// run on the caller's transaction Querier.
type Repository interface {
	InsertEntry(ctx context.Context, in EntryInput) (Entry, error)
	GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (Entry, error)
	// MarkReversed flips a POSTED entry to REVERSED and links the
	// reversal. The update is guarded so a racing reversal affects zero
	// rows and fails with ErrAlreadyReversed.
	MarkReversed(ctx context.Context, entryID, reversalEntryID int64, reason string, at time.Time) error
	ListEntries(ctx context.Context, tenantID int64, limit int) ([]Entry, error)
}

type repository struct {
	q db.Querier
}

// NewRepository returns a Repository over q.
func NewRepository(q db.Querier) Repository {
	return &repository{q: q}
}

func (r *repository) InsertEntry(ctx context.Context, in EntryInput) (Entry, error) {
	if err := ValidateBalanced(in.Lines); err != nil {
		return Entry{}, err
	}
	totalDebit, totalCredit := Totals(in.Lines)
	var entry Entry
	err := r.q.QueryRow(ctx, `INSERT INTO journal_entries
(tenant_id, legal_entity_id, book_id, fiscal_period_id, journal_no, journal_date, source_type, source_id, memo, status, total_debit, total_credit, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
RETURNING id, posted_at, created_at`,
		in.TenantID, in.LegalEntityID, in.BookID, in.FiscalPeriodID, in.JournalNo, in.JournalDate,
		in.SourceType, in.SourceID, in.Memo, in.Status, totalDebit, totalCredit, in.PostedBy).
		Scan(&entry.ID, &entry.PostedAt, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	entry.TenantID = in.TenantID
	entry.LegalEntityID = in.LegalEntityID
	entry.BookID = in.BookID
	entry.FiscalPeriodID = in.FiscalPeriodID
	entry.JournalNo = in.JournalNo
	entry.JournalDate = in.JournalDate
	entry.SourceType = in.SourceType
	entry.SourceID = in.SourceID
	entry.Memo = in.Memo
	entry.Status = in.Status
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	entry.PostedBy = in.PostedBy

	for _, line := range in.Lines {
		var lineID int64
		err := r.q.QueryRow(ctx, `INSERT INTO journal_lines
(journal_entry_id, line_no, account_id, amount_txn, debit_base, credit_base, currency, subledger_ref, description)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id`,
			entry.ID, line.LineNo, line.AccountID, line.AmountTxn, line.DebitBase, line.CreditBase,
			line.Currency, line.SubledgerRef, line.Description).
			Scan(&lineID)
		if err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, Line{
			ID:           lineID,
			EntryID:      entry.ID,
			LineNo:       line.LineNo,
			AccountID:    line.AccountID,
			AmountTxn:    line.AmountTxn,
			DebitBase:    line.DebitBase,
			CreditBase:   line.CreditBase,
			Currency:     line.Currency,
			SubledgerRef: line.SubledgerRef,
			Description:  line.Description,
		})
	}
	return entry, nil
}

const entryColumns = `id, tenant_id, legal_entity_id, book_id, fiscal_period_id, journal_no, journal_date, source_type, source_id, memo, status, total_debit, total_credit, reversal_entry_id, reversed_at, reverse_reason, posted_by, posted_at, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var reverseReason *string
	err := row.Scan(&e.ID, &e.TenantID, &e.LegalEntityID, &e.BookID, &e.FiscalPeriodID, &e.JournalNo,
		&e.JournalDate, &e.SourceType, &e.SourceID, &e.Memo, &e.Status, &e.TotalDebit, &e.TotalCredit,
		&e.ReversalEntryID, &e.ReversedAt, &reverseReason, &e.PostedBy, &e.PostedAt, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if reverseReason != nil {
		e.ReverseReason = *reverseReason
	}
	return e, nil
}

func (r *repository) GetEntryWithLines(ctx context.Context, tenantID, entryID int64) (Entry, error) {
	entry, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrJournalNotFound
		}
		return Entry{}, err
	}
	rows, err := r.q.Query(ctx, `SELECT id, journal_entry_id, line_no, account_id, amount_txn, debit_base, credit_base, currency, subledger_ref, description
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.AmountTxn,
			&line.DebitBase, &line.CreditBase, &line.Currency, &line.SubledgerRef, &line.Description); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) MarkReversed(ctx context.Context, entryID, reversalEntryID int64, reason string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE journal_entries
SET status='REVERSED', reversal_entry_id=$2, reversed_at=$3, reverse_reason=$4
WHERE id=$1 AND status='POSTED' AND reversal_entry_id IS NULL`,
		entryID, reversalEntryID, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (r *repository) ListEntries(ctx context.Context, tenantID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 ORDER BY journal_no DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
