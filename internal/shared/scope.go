package shared

import (
	"context"
	"fmt"
)

// ScopeType identifies the level of the organization hierarchy a check
// applies to.
type ScopeType string

const (
	ScopeTenant      ScopeType = "TENANT"
	ScopeLegalEntity ScopeType = "LEGAL_ENTITY"
	ScopeBook        ScopeType = "BOOK"
)

// AccessChecker is the authorization capability consumed before any
// mutation. The implementation lives outside this engine.
type AccessChecker interface {
	AssertScopeAccess(ctx context.Context, scope ScopeType, scopeID int64, field string) error
}

// ScopeDeniedError reports a failed scope check.
type ScopeDeniedError struct {
	Scope   ScopeType
	ScopeID int64
	Field   string
}

func (e *ScopeDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s %d (%s)", e.Scope, e.ScopeID, e.Field)
}

// AllowAllAccess grants every scope check. Used in tests and trusted
// internal callers that authorize upstream.
type AllowAllAccess struct{}

func (AllowAllAccess) AssertScopeAccess(context.Context, ScopeType, int64, string) error {
	return nil
}

// DenyAllAccess rejects every scope check.
type DenyAllAccess struct{}

func (DenyAllAccess) AssertScopeAccess(_ context.Context, scope ScopeType, scopeID int64, field string) error {
	return &ScopeDeniedError{Scope: scope, ScopeID: scopeID, Field: field}
}
