package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	ctx := WithTenant(context.Background(), id)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestNilTenantIsNotATenant(t *testing.T) {
	ctx := WithTenant(context.Background(), uuid.Nil)
	_, ok := FromContext(ctx)
	assert.False(t, ok)
}

func TestBypass(t *testing.T) {
	assert.False(t, IsBypass(context.Background()))
	assert.True(t, IsBypass(WithBypass(context.Background())))

	// Bypass does not imply a tenant.
	_, ok := FromContext(WithBypass(context.Background()))
	assert.False(t, ok)
}
