package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/mrcaglayan/cariledger/internal/jobs"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// GLIntegrityChecker verifies that every posted journal entry balances:
// the entry totals must agree with the summed lines, and debits must
// equal credits within epsilon. Violations can only come from out-of-band
// writes, so each one is reported rather than repaired.
type GLIntegrityChecker struct {
	q       db.Querier
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewGLIntegrityChecker constructs the checker over a pool or transaction.
// metrics may be nil.
func NewGLIntegrityChecker(q db.Querier, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityChecker {
	return &GLIntegrityChecker{q: q, logger: logger, metrics: metrics}
}

// Violation is one journal entry that fails the balance invariant.
type Violation struct {
	EntryID     int64
	TenantID    int64
	JournalNo   int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	LineDebit   decimal.Decimal
	LineCredit  decimal.Decimal
}

// Scan returns all violations for a tenant, or all tenants when tenantID
// is 0.
func (c *GLIntegrityChecker) Scan(ctx context.Context, tenantID int64) ([]Violation, error) {
	rows, err := c.q.Query(ctx, `SELECT e.id, e.tenant_id, e.journal_no, e.total_debit, e.total_credit,
       COALESCE(SUM(l.debit_base), 0), COALESCE(SUM(l.credit_base), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.journal_entry_id = e.id
WHERE e.status IN ('POSTED', 'REVERSED')
  AND ($1 = 0 OR e.tenant_id = $1)
GROUP BY e.id, e.tenant_id, e.journal_no, e.total_debit, e.total_credit`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.EntryID, &v.TenantID, &v.JournalNo, &v.TotalDebit, &v.TotalCredit, &v.LineDebit, &v.LineCredit); err != nil {
			return nil, err
		}
		if c.balanced(v) {
			continue
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

func (c *GLIntegrityChecker) balanced(v Violation) bool {
	return shared.WithinEpsilon(v.TotalDebit, v.TotalCredit) &&
		shared.WithinEpsilon(v.LineDebit, v.LineCredit) &&
		shared.WithinEpsilon(v.TotalDebit, v.LineDebit) &&
		shared.WithinEpsilon(v.TotalCredit, v.LineCredit)
}

// Handle processes TaskGLIntegrity tasks.
func (c *GLIntegrityChecker) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	track := c.metrics.Track("gl_integrity")
	start := time.Now()
	violations, err := c.Scan(ctx, payload.TenantID)
	if err != nil {
		return track.End(err)
	}
	perTenant := make(map[int64]int)
	for _, v := range violations {
		perTenant[v.TenantID]++
		c.logger.Error("journal entry out of balance",
			slog.Int64("entry_id", v.EntryID),
			slog.Int64("tenant_id", v.TenantID),
			slog.Int64("journal_no", v.JournalNo),
			slog.String("total_debit", v.TotalDebit.String()),
			slog.String("total_credit", v.TotalCredit.String()),
			slog.String("line_debit", v.LineDebit.String()),
			slog.String("line_credit", v.LineCredit.String()))
	}
	for tenant, count := range perTenant {
		c.metrics.AddImbalances(tenant, count)
	}
	c.logger.Info("gl integrity scan finished",
		slog.Int64("tenant_id", payload.TenantID),
		slog.Int("violations", len(violations)),
		slog.Duration("took", time.Since(start)))
	return track.End(nil)
}

// IdempotencyCleaner purges idempotency keys past their retention window.
type IdempotencyCleaner struct {
	store   *internalShared.IdempotencyStore
	ttl     time.Duration
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleaner constructs the cleaner. metrics may be nil.
func NewIdempotencyCleaner(store *internalShared.IdempotencyStore, ttl time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleaner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCleaner{store: store, ttl: ttl, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, _ *asynq.Task) error {
	track := c.metrics.Track("idempotency_cleanup")
	removed, err := c.store.Cleanup(ctx, c.ttl)
	if err != nil {
		return track.End(err)
	}
	c.logger.Info("idempotency cleanup finished", slog.Int64("removed", removed))
	return track.End(nil)
}
