package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// Repository reads chart-of-accounts and posting configuration rows.
type Repository interface {
	GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error)
	// GetPostingConfig returns the control/offset account ids configured
	// for a direction. A counterparty-level row overrides the tenant
	// default (counterparty_id NULL).
	GetPostingConfig(ctx context.Context, tenantID int64, direction shared.Direction, counterpartyID *int64) (controlID, offsetID int64, err error)
}

type repository struct {
	q db.Querier
}

// NewRepository returns a Repository over q.
func NewRepository(q db.Querier) Repository {
	return &repository{q: q}
}

func (r *repository) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	var a Account
	err := r.q.QueryRow(ctx, `SELECT id, tenant_id, code, name, account_type, parent_id, is_active, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrPostingAccountsNotConfigured
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetPostingConfig(ctx context.Context, tenantID int64, direction shared.Direction, counterpartyID *int64) (int64, int64, error) {
	var controlID, offsetID int64
	err := r.q.QueryRow(ctx, `SELECT control_account_id, offset_account_id
FROM posting_account_configs
WHERE tenant_id=$1 AND direction=$2 AND (counterparty_id = $3 OR counterparty_id IS NULL)
ORDER BY counterparty_id NULLS LAST
LIMIT 1`, tenantID, direction, counterpartyID).
		Scan(&controlID, &offsetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, shared.ErrPostingAccountsNotConfigured
		}
		return 0, 0, err
	}
	return controlID, offsetID, nil
}
