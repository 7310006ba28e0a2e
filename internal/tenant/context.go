// Package tenant carries the caller's tenant through request contexts.
// Every repository query is scoped to exactly one tenant unless the
// context explicitly opts into bypass mode for trusted cross-tenant
// operations (the reaper, administrative joins).
package tenant

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	tenantKey contextKey = iota
	bypassKey
)

// WithTenant returns a context scoped to the given tenant.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// FromContext extracts the tenant id from ctx. The second return is
// false when no tenant is set.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithBypass marks ctx as allowed to cross tenant boundaries. Queries
// issued under a bypass context skip the tenant filter entirely.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey, true)
}

// IsBypass reports whether ctx may cross tenant boundaries.
func IsBypass(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey).(bool)
	return v
}
