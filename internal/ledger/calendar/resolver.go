package calendar

import (
	"context"
	"time"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// Resolution is the outcome of mapping a legal entity and date to a
// postable (book, period) pair.
type Resolution struct {
	BookID       int64
	FiscalPeriod FiscalPeriod
	FiscalYear   int
	BaseCurrency string
}

// Resolver maps a legal entity and date to an open fiscal period.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveBookAndPeriod selects the preferred book if given, otherwise the
// entity's LOCAL book with the lowest id, locates the fiscal period
// containing date, and fails with ErrPeriodLocked unless the pair's
// status is OPEN. Read-only; callers invoke it inside the transaction
// whose write depends on the result.
func (r *Resolver) ResolveBookAndPeriod(ctx context.Context, tenantID, legalEntityID int64, date time.Time, preferredBookID *int64) (Resolution, error) {
	if _, err := shared.FiscalYearOf(date); err != nil {
		return Resolution{}, err
	}
	book, err := r.repo.FindBook(ctx, tenantID, legalEntityID, preferredBookID)
	if err != nil {
		return Resolution{}, err
	}
	period, err := r.repo.FindPeriodByDate(ctx, book.CalendarID, date)
	if err != nil {
		return Resolution{}, err
	}
	status, err := r.repo.GetPeriodStatus(ctx, book.ID, period.ID)
	if err != nil {
		return Resolution{}, err
	}
	if status != PeriodStatusOpen {
		return Resolution{}, shared.ErrPeriodLocked
	}
	return Resolution{
		BookID:       book.ID,
		FiscalPeriod: period,
		FiscalYear:   period.FiscalYear,
		BaseCurrency: book.BaseCurrency,
	}, nil
}
