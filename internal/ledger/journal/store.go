package journal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrcaglayan/cariledger/internal/ledger/calendar"
	"github.com/mrcaglayan/cariledger/internal/ledger/sequence"
	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// Store scopes all persistence the journal service needs. WithTx runs fn
// inside one database transaction; every repository obtained from the Tx
// shares it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Journals() Repository
}

// Tx exposes transaction-bound repositories.
type Tx interface {
	Calendar() calendar.Repository
	Sequences() sequence.Repository
	Journals() Repository
	Audit() internalShared.AuditWriter
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store over the connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
	if err != nil && db.IsTransient(err) {
		return shared.Transient(err)
	}
	return err
}

func (s *pgStore) Journals() Repository {
	return NewRepository(s.pool)
}

type pgTx struct {
	q db.Querier
}

func (t *pgTx) Calendar() calendar.Repository   { return calendar.NewRepository(t.q) }
func (t *pgTx) Sequences() sequence.Repository  { return sequence.NewRepository(t.q) }
func (t *pgTx) Journals() Repository            { return NewRepository(t.q) }
func (t *pgTx) Audit() internalShared.AuditWriter {
	return internalShared.NewAuditLogger(t.q)
}
