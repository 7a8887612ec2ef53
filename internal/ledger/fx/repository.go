package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// Repository reads FX rate rows.
type Repository interface {
	// LatestSpotRate returns the most recent SPOT rate effective on or
	// before date for the pair. The boolean reports whether a row exists.
	LatestSpotRate(ctx context.Context, tenantID int64, date time.Time, from, to string) (Rate, bool, error)
}

type repository struct {
	q db.Querier
}

// NewRepository returns a Repository over q.
func NewRepository(q db.Querier) Repository {
	return &repository{q: q}
}

func (r *repository) LatestSpotRate(ctx context.Context, tenantID int64, date time.Time, from, to string) (Rate, bool, error) {
	var rate Rate
	err := r.q.QueryRow(ctx, `SELECT id, tenant_id, rate_date, from_currency, to_currency, rate_type, rate, is_locked
FROM fx_rates
WHERE tenant_id=$1 AND rate_type='SPOT' AND from_currency=$2 AND to_currency=$3 AND rate_date <= $4
ORDER BY rate_date DESC, id DESC
LIMIT 1`, tenantID, from, to, date).
		Scan(&rate.ID, &rate.TenantID, &rate.RateDate, &rate.FromCurrency, &rate.ToCurrency, &rate.RateType, &rate.Rate, &rate.IsLocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rate{}, false, nil
		}
		return Rate{}, false, err
	}
	return rate, true, nil
}
