package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
)

type LockoutSuite struct {
	suite.Suite
	store *InMemoryStore
	svc   *Service
	now   time.Time
}

func TestLockoutSuite(t *testing.T) {
	suite.Run(t, new(LockoutSuite))
}

func (s *LockoutSuite) SetupTest() {
	s.store = NewInMemory()
	svc, err := New(s.store, WithConfig(Config{Threshold: 3, Window: time.Minute, LockDuration: 5 * time.Minute}))
	s.Require().NoError(err)
	s.svc = svc
	s.now = time.Date(2024, 8, 30, 9, 0, 0, 0, time.UTC)
}

func (s *LockoutSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *LockoutSuite) fail(ctx context.Context, n int) {
	for range n {
		s.Require().NoError(s.svc.RecordFailure(ctx, ScopeClaim, "cred-1:holder-1"))
	}
}

func (s *LockoutSuite) TestBelowThresholdIsAllowed() {
	ctx := s.at(0)
	s.fail(ctx, 2)
	s.NoError(s.svc.Check(ctx, ScopeClaim, "cred-1:holder-1"))
}

func (s *LockoutSuite) TestThresholdLocksUntilDurationPasses() {
	s.fail(s.at(0), 3)

	err := s.svc.Check(s.at(time.Minute), ScopeClaim, "cred-1:holder-1")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
	s.Contains(err.Error(), "retry in 4m0s")

	s.NoError(s.svc.Check(s.at(5*time.Minute), ScopeClaim, "cred-1:holder-1"))
}

func (s *LockoutSuite) TestFailuresOutsideWindowStartOver() {
	s.fail(s.at(0), 2)
	s.fail(s.at(2*time.Minute), 2)
	s.NoError(s.svc.Check(s.at(2*time.Minute), ScopeClaim, "cred-1:holder-1"))
}

func (s *LockoutSuite) TestClearResetsCount() {
	ctx := s.at(0)
	s.fail(ctx, 2)
	s.Require().NoError(s.svc.Clear(ctx, ScopeClaim, "cred-1:holder-1"))
	s.fail(ctx, 2)
	s.NoError(s.svc.Check(ctx, ScopeClaim, "cred-1:holder-1"))
}

func (s *LockoutSuite) TestScopesAreIndependent() {
	ctx := s.at(0)
	s.fail(ctx, 3)
	s.NoError(s.svc.Check(ctx, ScopeLogin, "cred-1:holder-1"))
}

func (s *LockoutSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}
