// Package service orchestrates credential issuance and claims across the
// off-chain record and the custody ledger.
//
// Issue and Claim are the only writers. Both remember every completed
// external step (the issuance journal and claim intents) so a retry resumes
// instead of repeating a ledger side effect.
package service

import (
	"context"
	"log/slog"
	"time"

	"verichain/internal/credential/ledger"
	"verichain/internal/credential/lock"
	"verichain/internal/credential/metrics"
	"verichain/internal/credential/models"
	instmodels "verichain/internal/institution/models"
	pmodels "verichain/internal/principal/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/outbox"
	"verichain/pkg/platform/tracer"
)

// Store is the authoritative credential record.
type Store interface {
	Insert(ctx context.Context, c *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	FindByPublicID(ctx context.Context, publicID id.PublicID) (*models.Credential, error)
	SerialExists(ctx context.Context, institutionID id.InstitutionID, fingerprint string) (bool, error)
	// CommitClaim stores the claim fields only while the stored record is issued.
	CommitClaim(ctx context.Context, c *models.Credential) error
	SearchByRecipient(ctx context.Context, name string, institutions []id.InstitutionID, limit int) ([]*models.Credential, error)
	FindLatestByRecipientID(ctx context.Context, recipientID string) (*models.Credential, error)
	StatsByInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.IssuerStats, error)
}

// Journal records issuance attempts and claim intents.
type Journal interface {
	GetAttempt(ctx context.Context, requestID string) (*models.IssuanceAttempt, error)
	CreateAttempt(ctx context.Context, a *models.IssuanceAttempt) error
	UpdateAttempt(ctx context.Context, a *models.IssuanceAttempt) error
	ListStalledAttempts(ctx context.Context, before time.Time, limit int) ([]*models.IssuanceAttempt, error)
	// FindInFlightAttempt returns the oldest incomplete attempt for the serial
	// that may have minted (mint submitted or minted), or sentinel.ErrNotFound.
	FindInFlightAttempt(ctx context.Context, institutionID id.InstitutionID, fingerprint string) (*models.IssuanceAttempt, error)
	GetIntent(ctx context.Context, credentialID id.CredentialID) (*models.ClaimIntent, error)
	PutIntent(ctx context.Context, in *models.ClaimIntent) error
	ListOpenIntents(ctx context.Context, before time.Time, limit int) ([]*models.ClaimIntent, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AssetStore publishes immutable documents and returns pointers to them.
type AssetStore interface {
	Put(ctx context.Context, prefix, contentType string, data []byte) (string, error)
	Link(ctx context.Context, pointer string) (string, error)
}

// SecretHasher produces and checks salted verifiers. Verify never errors.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(candidate, encoded string) bool
}

// SerialFingerprinter derives the deterministic uniqueness key of a serial.
type SerialFingerprinter interface {
	Serial(scope, serial string) string
}

type Principals interface {
	RequireActiveIssuer(ctx context.Context, issuerID id.PrincipalID, institutionID id.InstitutionID) (*pmodels.Principal, error)
	LinkedAddress(ctx context.Context, principalID id.PrincipalID) (*id.Address, error)
}

type Institutions interface {
	GetInstitution(ctx context.Context, institutionID id.InstitutionID) (*instmodels.Institution, error)
	RequireActive(ctx context.Context, institutionID id.InstitutionID) (*instmodels.Institution, error)
	SearchByName(ctx context.Context, fragment string) ([]*instmodels.Institution, error)
}

// AttemptLimiter counts wrong knowledge factors per subject.
type AttemptLimiter interface {
	Check(ctx context.Context, scope, subject string) error
	RecordFailure(ctx context.Context, scope, subject string) error
	Clear(ctx context.Context, scope, subject string) error
}

// EventSink appends lifecycle events inside the caller's transaction.
type EventSink interface {
	Append(ctx context.Context, entry *outbox.Entry) error
}

const (
	defaultSearchLimit   = 50
	defaultReconcileWait = 2 * time.Second
)

type Service struct {
	credentials   Store
	journal       Journal
	tx            TxRunner
	ledger        ledger.Ledger
	assets        AssetStore
	hasher        SecretHasher
	fingerprints  SerialFingerprinter
	principals    Principals
	institutions  Institutions
	locker        lock.Locker
	attempts      AttemptLimiter
	events        EventSink
	metrics       *metrics.Metrics
	tracer        tracer.Tracer
	logger        *slog.Logger
	searchLimit   int
	reconcileWait time.Duration
}

// Deps groups the collaborators every Service needs.
type Deps struct {
	Credentials  Store
	Journal      Journal
	Tx           TxRunner
	Ledger       ledger.Ledger
	Assets       AssetStore
	Hasher       SecretHasher
	Fingerprints SerialFingerprinter
	Principals   Principals
	Institutions Institutions
	Locker       lock.Locker
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithEventSink enables credential.issued and credential.claimed events.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.events = sink
	}
}

// WithAttemptLimiter locks out claimants after repeated wrong factors.
func WithAttemptLimiter(l AttemptLimiter) Option {
	return func(s *Service) {
		s.attempts = l
	}
}

func WithSearchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// WithReconcileWait bounds how long reconciliation waits on a submitted transfer.
func WithReconcileWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reconcileWait = d
		}
	}
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		credentials:   deps.Credentials,
		journal:       deps.Journal,
		tx:            deps.Tx,
		ledger:        deps.Ledger,
		assets:        deps.Assets,
		hasher:        deps.Hasher,
		fingerprints:  deps.Fingerprints,
		principals:    deps.Principals,
		institutions:  deps.Institutions,
		locker:        deps.Locker,
		tracer:        tracer.NewNoop(),
		logger:        slog.Default(),
		searchLimit:   defaultSearchLimit,
		reconcileWait: defaultReconcileWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
