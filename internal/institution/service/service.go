package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"verichain/internal/institution/models"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/requestcontext"
)

// maxSearchResults bounds name lookups used by public credential search.
const maxSearchResults = 50

type Store interface {
	Create(ctx context.Context, inst *models.Institution) error
	Update(ctx context.Context, inst *models.Institution) error
	FindByID(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error)
	SearchByName(ctx context.Context, fragment string, limit int) ([]*models.Institution, error)
}

// Service manages institutions on behalf of the platform operator.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateInstitution(ctx context.Context, name string) (*models.Institution, error) {
	inst, err := models.NewInstitution(id.InstitutionID(uuid.New()), name, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.Create(ctx, inst); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "institution name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create institution")
	}
	s.logger.InfoContext(ctx, "institution created",
		"institution_id", inst.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return inst, nil
}

func (s *Service) GetInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	if institutionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "institution ID required")
	}
	inst, err := s.store.FindByID(ctx, institutionID)
	if err != nil {
		return nil, wrapInstitutionErr(err)
	}
	return inst, nil
}

// RequireActive loads an institution that may register issuers and issue credentials.
func (s *Service) RequireActive(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	inst, err := s.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "institution is inactive")
	}
	return inst, nil
}

// SearchByName matches institutions by a case-insensitive name fragment.
func (s *Service) SearchByName(ctx context.Context, fragment string) ([]*models.Institution, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "institution is required")
	}
	found, err := s.store.SearchByName(ctx, fragment, maxSearchResults)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search institutions")
	}
	return found, nil
}

func (s *Service) DeactivateInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	return s.transition(ctx, institutionID, "institution deactivated", (*models.Institution).Deactivate)
}

func (s *Service) ReactivateInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	return s.transition(ctx, institutionID, "institution reactivated", (*models.Institution).Reactivate)
}

func (s *Service) transition(
	ctx context.Context,
	institutionID id.InstitutionID,
	event string,
	apply func(*models.Institution, time.Time) error,
) (*models.Institution, error) {
	inst, err := s.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	if err := apply(inst, requestcontext.Now(ctx)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeConflict, err.Error())
		}
		return nil, err
	}
	if err := s.store.Update(ctx, inst); err != nil {
		return nil, wrapInstitutionErr(err)
	}
	s.logger.InfoContext(ctx, event,
		"institution_id", inst.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return inst, nil
}

func wrapInstitutionErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "institution not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "institution store failure")
}
