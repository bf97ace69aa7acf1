// Package lockout throttles repeated failed guesses of a secret: passwords on
// login and the serial number plus secret answer on a credential claim.
//
// Failures are counted per key inside a fixed window. Reaching the threshold
// locks the key for LockDuration; a success clears the count.
package lockout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
)

// Scopes keep login and claim counters apart even for the same subject.
const (
	ScopeLogin = "login"
	ScopeClaim = "claim"
)

// Store counts failures per key. Implementations must make RecordFailure
// atomic so concurrent guesses cannot slip past the threshold.
type Store interface {
	// RecordFailure adds one failure and returns the count inside the current
	// window. The window starts at the first failure after the last reset.
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	// LockedUntil returns nil when the key is not locked.
	LockedUntil(ctx context.Context, key string) (*time.Time, error)
	Lock(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type Config struct {
	Threshold    int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold:    5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig overrides the defaults field by field; zero values are ignored.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.Threshold > 0 {
			s.config.Threshold = cfg.Threshold
		}
		if cfg.Window > 0 {
			s.config.Window = cfg.Window
		}
		if cfg.LockDuration > 0 {
			s.config.LockDuration = cfg.LockDuration
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("lockout store is required")
	}
	s := &Service{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check refuses with CodeTooManyAttempts while the subject is locked.
func (s *Service) Check(ctx context.Context, scope, subject string) error {
	until, err := s.store.LockedUntil(ctx, key(scope, subject))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lockout state")
	}
	if until == nil || !requestcontext.Now(ctx).Before(*until) {
		return nil
	}
	return lockedError(ctx, *until)
}

// RecordFailure counts a failed guess and locks the subject once the
// threshold is reached. The returned error is non-nil only when the store
// fails; callers still report the original failure to the client.
func (s *Service) RecordFailure(ctx context.Context, scope, subject string) error {
	k := key(scope, subject)
	failures, err := s.store.RecordFailure(ctx, k, s.config.Window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record failed attempt")
	}
	if failures < s.config.Threshold {
		return nil
	}
	until := requestcontext.Now(ctx).Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, k, until); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply lockout")
	}
	s.logger.WarnContext(ctx, "lockout triggered",
		"scope", scope,
		"failures", failures,
		"locked_until", until,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) Clear(ctx context.Context, scope, subject string) error {
	if err := s.store.Clear(ctx, key(scope, subject)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear failed attempts")
	}
	return nil
}

func key(scope, subject string) string {
	return scope + ":" + subject
}

func lockedError(ctx context.Context, until time.Time) error {
	wait := until.Sub(requestcontext.Now(ctx)).Round(time.Second)
	if wait < time.Second {
		wait = time.Second
	}
	return dErrors.New(dErrors.CodeTooManyAttempts, fmt.Sprintf("too many failed attempts; retry in %s", wait))
}
