package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"verichain/internal/authz"
	instmodels "verichain/internal/institution/models"
	"verichain/internal/lockout"
	"verichain/internal/principal/models"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Principal) error
	Update(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	ListByInstitution(ctx context.Context, institutionID id.InstitutionID, role authz.Role) ([]*models.Principal, error)
	Delete(ctx context.Context, principalID id.PrincipalID) error
}

// InstitutionChecker confirms an institution may take new members.
type InstitutionChecker interface {
	RequireActive(ctx context.Context, institutionID id.InstitutionID) (*instmodels.Institution, error)
}

// CredentialCounter reports how many credentials an issuer signed.
type CredentialCounter interface {
	CountByIssuer(ctx context.Context, issuerID id.PrincipalID) (int, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// AttemptLimiter locks out an email after repeated failed logins.
type AttemptLimiter interface {
	Check(ctx context.Context, scope, subject string) error
	RecordFailure(ctx context.Context, scope, subject string) error
	Clear(ctx context.Context, scope, subject string) error
}

type TokenGenerator interface {
	GenerateAccessToken(ctx context.Context, principalID id.PrincipalID, role authz.Role, institutionID *id.InstitutionID) (string, time.Time, error)
}

// RegisterCommand is a self-registration. Admins cannot self-register.
type RegisterCommand struct {
	Email         string
	Password      string
	FullName      string
	Role          authz.Role
	InstitutionID *id.InstitutionID
}

type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Principal   *models.Principal
}

// Service manages principal accounts: registration, login, custody address
// linking and issuer approval by institution admins.
type Service struct {
	store        Store
	institutions InstitutionChecker
	credentials  CredentialCounter
	hasher       PasswordHasher
	tokens       TokenGenerator
	attempts     AttemptLimiter
	reserved     map[id.Address]bool
	logger       *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCredentialCounter enables the issued-credentials guard on RemoveIssuer.
func WithCredentialCounter(c CredentialCounter) Option {
	return func(s *Service) {
		s.credentials = c
	}
}

func WithAttemptLimiter(l AttemptLimiter) Option {
	return func(s *Service) {
		s.attempts = l
	}
}

// WithReservedAddresses refuses these addresses as holder custody addresses.
// The ledger's custody account is one: a token claimed into it never leaves
// custody.
func WithReservedAddresses(addrs ...id.Address) Option {
	return func(s *Service) {
		for _, a := range addrs {
			s.reserved[a] = true
		}
	}
}

func New(store Store, institutions InstitutionChecker, hasher PasswordHasher, tokens TokenGenerator, opts ...Option) *Service {
	s := &Service{
		store:        store,
		institutions: institutions,
		hasher:       hasher,
		tokens:       tokens,
		reserved:     make(map[id.Address]bool),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.Principal, error) {
	switch cmd.Role {
	case authz.RoleIssuer, authz.RoleHolder:
	case authz.RoleAdmin:
		return nil, dErrors.New(dErrors.CodeForbidden, "admins are created by the platform operator")
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "role must be issuer or holder")
	}
	if cmd.Role == authz.RoleIssuer {
		if cmd.InstitutionID == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "institution_id is required for issuers")
		}
		if _, err := s.institutions.RequireActive(ctx, *cmd.InstitutionID); err != nil {
			return nil, err
		}
	}
	return s.create(ctx, cmd)
}

// CreateAdmin provisions an institution admin on behalf of the platform operator.
func (s *Service) CreateAdmin(ctx context.Context, institutionID id.InstitutionID, email, password, fullName string) (*models.Principal, error) {
	if _, err := s.institutions.RequireActive(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.create(ctx, RegisterCommand{
		Email:         email,
		Password:      password,
		FullName:      fullName,
		Role:          authz.RoleAdmin,
		InstitutionID: &institutionID,
	})
}

func (s *Service) create(ctx context.Context, cmd RegisterCommand) (*models.Principal, error) {
	hash, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, err
	}
	p, err := models.NewPrincipal(id.PrincipalID(uuid.New()), cmd.Email, cmd.FullName, hash, cmd.Role, cmd.InstitutionID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create principal")
	}
	s.logger.InfoContext(ctx, "principal registered",
		"principal_id", p.ID,
		"role", p.Role,
		"status", p.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// Login checks the password and issues an access token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	subject := strings.ToLower(strings.TrimSpace(email))
	if s.attempts != nil {
		if err := s.attempts.Check(ctx, lockout.ScopeLogin, subject); err != nil {
			return nil, err
		}
	}
	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordLoginFailure(ctx, subject)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load principal")
	}
	if err := s.hasher.Verify(password, p.PasswordHash); err != nil {
		s.recordLoginFailure(ctx, subject)
		return nil, err
	}
	if s.attempts != nil {
		if err := s.attempts.Clear(ctx, lockout.ScopeLogin, subject); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login attempts", "principal_id", p.ID, "error", err)
		}
	}
	if !p.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is pending approval")
	}
	token, expiresAt, err := s.tokens.GenerateAccessToken(ctx, p.ID, p.Role, p.InstitutionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, Principal: p}, nil
}

// recordLoginFailure counts unknown emails too, so lockouts do not reveal
// which accounts exist.
func (s *Service) recordLoginFailure(ctx context.Context, subject string) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.RecordFailure(ctx, lockout.ScopeLogin, subject); err != nil {
		s.logger.WarnContext(ctx, "failed to record login attempt", "error", err)
	}
}

func (s *Service) GetProfile(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	p, err := s.store.FindByID(ctx, principalID)
	if err != nil {
		return nil, wrapPrincipalErr(err)
	}
	return p, nil
}

// LinkAddress sets the holder's custody address. An address already linked to
// another principal is a conflict.
func (s *Service) LinkAddress(ctx context.Context, principalID id.PrincipalID, rawAddress string) (*models.Principal, error) {
	addr, err := id.ParseAddress(rawAddress)
	if err != nil {
		return nil, err
	}
	if s.reserved[addr] {
		return nil, dErrors.New(dErrors.CodeBadRequest, "address is reserved and cannot be linked")
	}
	p, err := s.GetProfile(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if err := p.LinkAddress(addr, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.New(dErrors.CodeForbidden, err.Error())
	}
	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "address is linked to another account")
		}
		return nil, wrapPrincipalErr(err)
	}
	s.logger.InfoContext(ctx, "custody address linked",
		"principal_id", p.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// LinkedAddress returns the holder's custody address, or nil when none is linked.
func (s *Service) LinkedAddress(ctx context.Context, principalID id.PrincipalID) (*id.Address, error) {
	p, err := s.GetProfile(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return p.CustodyAddress, nil
}

// RequireActiveIssuer loads an approved issuer of institutionID.
func (s *Service) RequireActiveIssuer(ctx context.Context, issuerID id.PrincipalID, institutionID id.InstitutionID) (*models.Principal, error) {
	p, err := s.GetProfile(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if p.Role != authz.RoleIssuer || !p.BelongsTo(institutionID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not an issuer of this institution")
	}
	if !p.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer is pending approval")
	}
	return p, nil
}

func (s *Service) ListIssuers(ctx context.Context, institutionID id.InstitutionID) ([]*models.Principal, error) {
	issuers, err := s.store.ListByInstitution(ctx, institutionID, authz.RoleIssuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return issuers, nil
}

func (s *Service) ApproveIssuer(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) (*models.Principal, error) {
	p, err := s.issuerOf(ctx, institutionID, issuerID)
	if err != nil {
		return nil, err
	}
	if err := p.Approve(requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, err.Error())
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, wrapPrincipalErr(err)
	}
	s.logger.InfoContext(ctx, "issuer approved",
		"principal_id", p.ID,
		"institution_id", institutionID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// RemoveIssuer deletes an issuer account. Credentials keep their issuer
// reference forever, so an issuer who has signed any is kept.
func (s *Service) RemoveIssuer(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) error {
	p, err := s.issuerOf(ctx, institutionID, issuerID)
	if err != nil {
		return err
	}
	if s.credentials != nil {
		n, err := s.credentials.CountByIssuer(ctx, p.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count issued credentials")
		}
		if n > 0 {
			return dErrors.New(dErrors.CodeConflict, "issuer has issued credentials")
		}
	}
	if err := s.store.Delete(ctx, p.ID); err != nil {
		return wrapPrincipalErr(err)
	}
	s.logger.InfoContext(ctx, "issuer removed",
		"principal_id", p.ID,
		"institution_id", institutionID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// issuerOf hides issuers of other institutions behind not found.
func (s *Service) issuerOf(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) (*models.Principal, error) {
	p, err := s.GetProfile(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if p.Role != authz.RoleIssuer || !p.BelongsTo(institutionID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "issuer not found")
	}
	return p, nil
}

func wrapPrincipalErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "principal not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "principal store failure")
}
