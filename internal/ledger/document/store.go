package document

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrcaglayan/cariledger/internal/ledger/accounts"
	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/fx"
	"github.com/mrcaglayan/cariledger/internal/ledger/journal"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// Unique constraint backing the at-most-one-reversal guarantee. A
// duplicate-key error on it is translated to ErrAlreadyReversed.
const constraintReversalOf = "uq_cari_documents_reversal_of"

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
	if err != nil {
		if db.IsUniqueViolation(err, constraintReversalOf) {
			return shared.ErrAlreadyReversed
		}
		if db.IsTransient(err) {
			return shared.Transient(err)
		}
	}
	return err
}

const documentColumns = `id, tenant_id, legal_entity_id, external_ref, direction, doc_type, status, counterparty_id,
document_date, due_date, currency, amount_txn, amount_base, open_amount_txn, open_amount_base,
fiscal_year, sequence_no, document_no, description, fx_rate, fx_source, fx_override_used,
book_id, fiscal_period_id, posted_journal_entry_id, reversal_of_document_id, posted_at, posted_by, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var fxSource *string
	err := row.Scan(&d.ID, &d.TenantID, &d.LegalEntityID, &d.ExternalRef, &d.Direction, &d.Type, &d.Status, &d.CounterpartyID,
		&d.DocumentDate, &d.DueDate, &d.Currency, &d.AmountTxn, &d.AmountBase, &d.OpenAmountTxn, &d.OpenAmountBase,
		&d.FiscalYear, &d.SequenceNo, &d.DocumentNo, &d.Description, &d.FxRate, &fxSource, &d.FxOverrideUsed,
		&d.BookID, &d.FiscalPeriodID, &d.PostedJournalEntryID, &d.ReversalOfDocumentID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	if fxSource != nil {
		d.FxSource = fx.Source(*fxSource)
	}
	return d, nil
}

func (r *pgRepository) GetDocument(ctx context.Context, tenantID, documentID int64) (Document, error) {
	return getDocument(ctx, r.pool, tenantID, documentID, false)
}

func getDocument(ctx context.Context, q db.Querier, tenantID, documentID int64, forUpdate bool) (Document, error) {
	sql := `SELECT ` + documentColumns + ` FROM cari_documents WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	doc, err := scanDocument(q.QueryRow(ctx, sql, tenantID, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, shared.ErrDocumentNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (r *pgRepository) ListDocuments(ctx context.Context, tenantID int64, f ListFilter) ([]Document, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM cari_documents
WHERE tenant_id=$1
  AND ($2 = '' OR direction = $2)
  AND ($3 = '' OR status = $3)
ORDER BY id DESC
LIMIT $4`, tenantID, string(f.Direction), string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *pgRepository) GetOpenItem(ctx context.Context, tenantID, documentID int64) (OpenItem, error) {
	var item OpenItem
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, document_id, direction, currency, original_amount, residual_amount, settled_amount, status, created_at, updated_at
FROM open_items WHERE tenant_id=$1 AND document_id=$2`, tenantID, documentID).
		Scan(&item.ID, &item.TenantID, &item.DocumentID, &item.Direction, &item.Currency,
			&item.OriginalAmount, &item.ResidualAmount, &item.SettledAmount, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OpenItem{}, shared.ErrDocumentNotFound
		}
		return OpenItem{}, err
	}
	return item, nil
}

type pgTx struct {
	q db.Querier
}

func (t *pgTx) LockDocument(ctx context.Context, tenantID, documentID int64) (Document, error) {
	return getDocument(ctx, t.q, tenantID, documentID, true)
}

func (t *pgTx) InsertDocument(ctx context.Context, in DocumentInput) (Document, error) {
	var id int64
	var createdAt, updatedAt time.Time
	err := t.q.QueryRow(ctx, `INSERT INTO cari_documents
(tenant_id, legal_entity_id, external_ref, direction, doc_type, status, counterparty_id,
 document_date, due_date, currency, amount_txn, amount_base, open_amount_txn, open_amount_base,
 fiscal_year, sequence_no, document_no, description, fx_rate, fx_source, fx_override_used,
 book_id, fiscal_period_id, posted_journal_entry_id, reversal_of_document_id, posted_at, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
RETURNING id, created_at, updated_at`,
		in.TenantID, in.LegalEntityID, in.ExternalRef, in.Direction, in.Type, in.Status, in.CounterpartyID,
		in.DocumentDate, in.DueDate, in.Currency, in.AmountTxn, in.AmountBase, in.OpenAmountTxn, in.OpenAmountBase,
		in.FiscalYear, in.SequenceNo, in.DocumentNo, in.Description, in.FxRate, string(in.FxSource), in.FxOverrideUsed,
		in.BookID, in.FiscalPeriodID, in.PostedJournalEntryID, in.ReversalOfDocumentID, in.PostedAt, in.PostedBy).
		Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, constraintReversalOf) {
			return Document{}, shared.ErrAlreadyReversed
		}
		return Document{}, err
	}
	doc := Document{
		ID:                   id,
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
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}
	return doc, nil
}

func (t *pgTx) UpdateDraft(ctx context.Context, u DraftUpdate) error {
	tag, err := t.q.Exec(ctx, `UPDATE cari_documents
SET direction=$3, doc_type=$4, counterparty_id=$5, document_date=$6, due_date=$7, currency=$8,
    amount_txn=$9, open_amount_txn=$9, description=$10, fiscal_year=$11, sequence_no=$12, document_no=$13, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`,
		u.TenantID, u.DocumentID, u.Direction, u.Type, u.CounterpartyID, u.DocumentDate, u.DueDate, u.Currency,
		u.AmountTxn, u.Description, u.FiscalYear, u.SequenceNo, u.DocumentNo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (t *pgTx) MarkPosted(ctx context.Context, u PostedUpdate) error {
	tag, err := t.q.Exec(ctx, `UPDATE cari_documents
SET status='POSTED', sequence_no=$3, document_no=$4, fiscal_year=$5, amount_base=$6,
    open_amount_txn=$7, open_amount_base=$8, fx_rate=$9, fx_source=$10, fx_override_used=$11,
    book_id=$12, fiscal_period_id=$13, posted_journal_entry_id=$14, posted_at=$15, posted_by=$16, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`,
		u.TenantID, u.DocumentID, u.SequenceNo, u.DocumentNo, u.FiscalYear, u.AmountBase,
		u.OpenAmountTxn, u.OpenAmountBase, u.FxRate, string(u.FxSource), u.FxOverrideUsed,
		u.BookID, u.FiscalPeriodID, u.JournalEntryID, u.PostedAt, u.PostedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (t *pgTx) MarkCancelled(ctx context.Context, tenantID, documentID int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE cari_documents
SET status='CANCELLED', updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyPosted
	}
	return nil
}

func (t *pgTx) MarkReversed(ctx context.Context, tenantID, documentID int64, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE cari_documents
SET status='REVERSED', open_amount_txn=0, open_amount_base=0, updated_at=$3
WHERE tenant_id=$1 AND id=$2 AND status IN ('POSTED','PARTIALLY_SETTLED')`, tenantID, documentID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (t *pgTx) HasReversal(ctx context.Context, tenantID, documentID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cari_documents WHERE tenant_id=$1 AND reversal_of_document_id=$2)`, tenantID, documentID).
		Scan(&exists)
	return exists, err
}

func (t *pgTx) InsertOpenItem(ctx context.Context, in OpenItemInput) (OpenItem, error) {
	var item OpenItem
	err := t.q.QueryRow(ctx, `INSERT INTO open_items
(tenant_id, document_id, direction, currency, original_amount, residual_amount, settled_amount, status)
VALUES ($1,$2,$3,$4,$5,$5,0,'OPEN')
RETURNING id, created_at, updated_at`,
		in.TenantID, in.DocumentID, in.Direction, in.Currency, in.OriginalAmount).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return OpenItem{}, err
	}
	item.TenantID = in.TenantID
	item.DocumentID = in.DocumentID
	item.Direction = in.Direction
	item.Currency = in.Currency
	item.OriginalAmount = in.OriginalAmount
	item.ResidualAmount = in.OriginalAmount
	item.Status = OpenItemOpen
	return item, nil
}

func (t *pgTx) CancelOpenItem(ctx context.Context, tenantID, documentID int64) error {
	_, err := t.q.Exec(ctx, `UPDATE open_items
SET status='CANCELLED', residual_amount=0, updated_at=NOW()
WHERE tenant_id=$1 AND document_id=$2 AND status IN ('OPEN','PARTIALLY_SETTLED')`, tenantID, documentID)
	return err
}

func (t *pgTx) Calendar() calendar.Repository  { return calendar.NewRepository(t.q) }
func (t *pgTx) Sequences() sequence.Repository { return sequence.NewRepository(t.q) }
func (t *pgTx) FxRates() fx.Repository         { return fx.NewRepository(t.q) }
func (t *pgTx) Accounts() accounts.Repository  { return accounts.NewRepository(t.q) }
func (t *pgTx) Journals() journal.Repository   { return journal.NewRepository(t.q) }
func (t *pgTx) Audit() internalShared.AuditWriter {
	return internalShared.NewAuditLogger(t.q)
}
