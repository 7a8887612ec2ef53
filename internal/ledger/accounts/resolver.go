package accounts

import (
	"context"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// Resolver resolves and validates the control/offset accounts for a
// document direction.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolvePostingAccounts loads the configured pair and enforces the side
// convention: the AR control account must be an ASSET, the AP control
// account a LIABILITY. Inactive accounts are rejected.
func (r *Resolver) ResolvePostingAccounts(ctx context.Context, tenantID int64, direction shared.Direction, counterpartyID *int64) (PostingAccounts, error) {
	controlID, offsetID, err := r.repo.GetPostingConfig(ctx, tenantID, direction, counterpartyID)
	if err != nil {
		return PostingAccounts{}, err
	}
	control, err := r.repo.GetAccount(ctx, tenantID, controlID)
	if err != nil {
		return PostingAccounts{}, err
	}
	offset, err := r.repo.GetAccount(ctx, tenantID, offsetID)
	if err != nil {
		return PostingAccounts{}, err
	}
	if !control.IsActive || !offset.IsActive {
		return PostingAccounts{}, shared.ErrPostingAccountsNotConfigured
	}
	switch direction {
	case shared.DirectionAR:
		if control.Type != AccountTypeAsset {
			return PostingAccounts{}, shared.Validationf("AR control account %s must be ASSET, got %s", control.Code, control.Type)
		}
	case shared.DirectionAP:
		if control.Type != AccountTypeLiability {
			return PostingAccounts{}, shared.Validationf("AP control account %s must be LIABILITY, got %s", control.Code, control.Type)
		}
	default:
		return PostingAccounts{}, shared.Validationf("unknown direction %q", direction)
	}
	return PostingAccounts{Control: control, Offset: offset}, nil
}
