package shared

import (
	"context"
	"errors"
	"time"

	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// ErrIdempotencyConflict indicates a key was already processed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists caller-generated idempotency keys for
// settlement and override style operations. Post and reverse do not use
// it; their status guards make them idempotent by construction.
type IdempotencyStore struct {
	q db.Querier
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(q db.Querier) *IdempotencyStore {
	return &IdempotencyStore{q: q}
}

// CheckAndInsert claims a key within a scope. A duplicate claim fails
// with ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, tenantID int64, key, scope string) error {
	if s == nil || s.q == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if scope == "" {
		return errors.New("idempotency scope required")
	}
	_, err := s.q.Exec(ctx, `INSERT INTO idempotency_keys (tenant_id, key, scope, created_at) VALUES ($1, $2, $3, NOW())`, tenantID, key, scope)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Release removes a key so a failed operation can be resubmitted.
func (s *IdempotencyStore) Release(ctx context.Context, tenantID int64, key string) error {
	if s == nil || s.q == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE tenant_id=$1 AND key=$2`, tenantID, key)
	return err
}

// Cleanup deletes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.q == nil {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
