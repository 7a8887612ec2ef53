package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// Repository reads book and period rows. All methods are read-only and
// must run on the caller's Querier so the period-open check shares the
// transaction of the write that depends on it.
type Repository interface {
	FindBook(ctx context.Context, tenantID, legalEntityID int64, preferredBookID *int64) (Book, error)
	FindPeriodByDate(ctx context.Context, calendarID int64, date time.Time) (FiscalPeriod, error)
	GetPeriodStatus(ctx context.Context, bookID, periodID int64) (PeriodStatus, error)
}

type repository struct {
	q db.Querier
}

// NewRepository returns a Repository over q.
func NewRepository(q db.Querier) Repository {
	return &repository{q: q}
}

const bookColumns = `id, tenant_id, legal_entity_id, book_type, base_currency, fiscal_calendar_id, created_at, updated_at`

func (r *repository) FindBook(ctx context.Context, tenantID, legalEntityID int64, preferredBookID *int64) (Book, error) {
	var (
		row pgx.Row
	)
	if preferredBookID != nil {
		row = r.q.QueryRow(ctx, `SELECT `+bookColumns+` FROM books
WHERE tenant_id=$1 AND legal_entity_id=$2 AND id=$3`, tenantID, legalEntityID, *preferredBookID)
	} else {
		row = r.q.QueryRow(ctx, `SELECT `+bookColumns+` FROM books
WHERE tenant_id=$1 AND legal_entity_id=$2 AND book_type='LOCAL' ORDER BY id ASC LIMIT 1`, tenantID, legalEntityID)
	}
	var b Book
	err := row.Scan(&b.ID, &b.TenantID, &b.LegalEntityID, &b.Type, &b.BaseCurrency, &b.CalendarID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, shared.Validationf("no book found for legal entity %d", legalEntityID)
		}
		return Book{}, err
	}
	return b, nil
}

func (r *repository) FindPeriodByDate(ctx context.Context, calendarID int64, date time.Time) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := r.q.QueryRow(ctx, `SELECT id, calendar_id, name, fiscal_year, start_date, end_date, is_adjustment
FROM fiscal_periods
WHERE calendar_id=$1 AND start_date <= $2 AND end_date >= $2
ORDER BY is_adjustment ASC, id ASC
LIMIT 1`, calendarID, date).
		Scan(&p.ID, &p.CalendarID, &p.Name, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.IsAdjustment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalPeriod{}, shared.ErrNoPeriodFound
		}
		return FiscalPeriod{}, err
	}
	return p, nil
}

// GetPeriodStatus defaults to OPEN when no status row exists for the pair.
func (r *repository) GetPeriodStatus(ctx context.Context, bookID, periodID int64) (PeriodStatus, error) {
	var status PeriodStatus
	err := r.q.QueryRow(ctx, `SELECT status FROM fiscal_period_statuses WHERE book_id=$1 AND fiscal_period_id=$2`, bookID, periodID).
		Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodStatusOpen, nil
		}
		return "", err
	}
	return status, nil
}
