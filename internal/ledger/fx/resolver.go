package fx

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// Input carries everything the policy needs to decide an effective rate.
type Input struct {
	TenantID           int64
	DocumentDate       time.Time
	DocumentCurrency   string
	FunctionalCurrency string
	DraftRate          *decimal.Decimal
	UseOverride        bool
	OverrideReason     string
}

// Resolver applies the FX policy. It is read-only; the override decision
// is audited by the caller.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve determines the effective exchange rate for a document.
//
// Same-currency documents always use rate 1 and reject any other supplied
// rate. Otherwise the effective rate is the explicit draft rate when
// given, else the latest SPOT reference rate. Deviating from a locked
// reference rate requires UseOverride plus a non-empty reason.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	docCcy := strings.ToUpper(strings.TrimSpace(in.DocumentCurrency))
	funCcy := strings.ToUpper(strings.TrimSpace(in.FunctionalCurrency))
	if docCcy == "" || funCcy == "" {
		return Result{}, shared.Validationf("document and functional currency required")
	}

	one := decimal.NewFromInt(1)
	if docCcy == funCcy {
		if in.DraftRate != nil && !shared.WithinEpsilon(*in.DraftRate, one) {
			return Result{}, shared.ErrParityRateMismatch
		}
		return Result{EffectiveRate: one, Source: SourceParity}, nil
	}

	reference, found, err := r.repo.LatestSpotRate(ctx, in.TenantID, in.DocumentDate, docCcy, funCcy)
	if err != nil {
		return Result{}, err
	}

	var result Result
	switch {
	case in.DraftRate != nil:
		result.EffectiveRate = *in.DraftRate
		result.Source = SourceDocument
	case found:
		result.EffectiveRate = reference.Rate
		result.Source = SourceFxTable
	default:
		return Result{}, shared.ErrMissingFxRate
	}
	if result.EffectiveRate.Sign() <= 0 {
		return Result{}, shared.Validationf("exchange rate must be positive")
	}

	if found {
		ref := reference.Rate
		result.ReferenceRate = &ref
		result.Locked = reference.IsLocked
		if reference.IsLocked && !shared.WithinEpsilon(result.EffectiveRate, reference.Rate) {
			if !in.UseOverride || strings.TrimSpace(in.OverrideReason) == "" {
				return Result{}, shared.ErrFxRateLocked
			}
			result.OverrideUsed = true
		}
	}
	return result, nil
}
