package sequence

import (
	"context"

	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

type repository struct {
	q db.Querier
}

// NewRepository returns a Repository over q. Allocations must run inside
// the caller's transaction so the counter lock is held until commit.
func NewRepository(q db.Querier) Repository {
	return &repository{q: q}
}

// NextSequence claims the next number via an upsert on the counter row.
// The ON CONFLICT update takes the row's exclusive lock, which serializes
// concurrent allocations for the same scope and keeps numbers gapless in
// commit order.
func (r *repository) NextSequence(ctx context.Context, scope Scope, fiscalYear int) (int64, error) {
	var next int64
	err := r.q.QueryRow(ctx, `INSERT INTO sequence_counters (tenant_id, legal_entity_id, direction, namespace, fiscal_year, last_no)
VALUES ($1, $2, $3, $4, $5, 1)
ON CONFLICT (tenant_id, legal_entity_id, direction, namespace, fiscal_year)
DO UPDATE SET last_no = sequence_counters.last_no + 1
RETURNING last_no`,
		scope.TenantID, scope.LegalEntityID, scope.Direction, scope.Namespace, fiscalYear).
		Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}
