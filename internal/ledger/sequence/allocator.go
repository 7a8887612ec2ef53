package sequence

import (
	"context"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
)

// Scope keys a counter space. Namespace is NamespaceDraft for
// provisional numbers, the document type for final posted numbers, or
// NamespaceJournal for GL journal numbers. Direction is empty for
// direction-less namespaces such as NamespaceJournal.
type Scope struct {
	TenantID      int64
	LegalEntityID int64
	Direction     shared.Direction
	Namespace     string
}

// NamespaceJournal numbers GL journal entries per (tenant, entity, year).
const NamespaceJournal = "JOURNAL"

// Repository advances per-scope counters under an exclusive row lock.
type Repository interface {
	NextSequence(ctx context.Context, scope Scope, fiscalYear int) (int64, error)
}

// Allocator hands out gapless integers per (scope, fiscal year).
// Concurrent allocations in the same scope serialize on the counter row
// lock; a unique constraint on the consuming table is the backstop.
type Allocator struct {
	repo Repository
}

// NewAllocator constructs an Allocator.
func NewAllocator(repo Repository) *Allocator {
	return &Allocator{repo: repo}
}

// Allocate returns the next number in the scope's counter for the fiscal
// year. Fails with ErrInvalidDate when the year is outside the supported
// range, and ErrValidation on an incomplete scope.
func (a *Allocator) Allocate(ctx context.Context, scope Scope, fiscalYear int) (int64, error) {
	if fiscalYear < 1900 || fiscalYear > 9999 {
		return 0, shared.ErrInvalidDate
	}
	if scope.TenantID == 0 || scope.LegalEntityID == 0 {
		return 0, shared.Validationf("sequence scope requires tenant and legal entity")
	}
	if scope.Direction != "" && !scope.Direction.Valid() {
		return 0, shared.Validationf("sequence scope has unknown direction %q", scope.Direction)
	}
	if scope.Namespace == "" {
		return 0, shared.Validationf("sequence scope requires a namespace")
	}
	return a.repo.NextSequence(ctx, scope, fiscalYear)
}
