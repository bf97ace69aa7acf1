package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "verichain/pkg/domain"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestWithTimePinsNow(t *testing.T) {
	fixed := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, Now(ctx))
}

func TestPrincipalValues(t *testing.T) {
	ctx := context.Background()
	assert.True(t, PrincipalID(ctx).IsNil())
	assert.Empty(t, Role(ctx))

	pid := id.PrincipalID(uuid.New())
	iid := id.InstitutionID(uuid.New())
	ctx = WithPrincipalID(ctx, pid)
	ctx = WithRole(ctx, "holder")
	ctx = WithInstitutionID(ctx, iid)
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, pid, PrincipalID(ctx))
	assert.Equal(t, "holder", Role(ctx))
	assert.Equal(t, iid, InstitutionID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}
