package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"verichain/internal/institution/models"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/httputil"
	"verichain/pkg/requestcontext"
)

// Service is the platform operator's view of institutions.
type Service interface {
	CreateInstitution(ctx context.Context, name string) (*models.Institution, error)
	GetInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error)
	DeactivateInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error)
	ReactivateInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. The caller guards them with the platform admin token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/institutions", h.HandleCreate)
	r.Get("/admin/institutions/{id}", h.HandleGet)
	r.Post("/admin/institutions/{id}/deactivate", h.HandleDeactivate)
	r.Post("/admin/institutions/{id}/reactivate", h.HandleReactivate)
}

type CreateInstitutionRequest struct {
	Name string `json:"name"`
}

func (r *CreateInstitutionRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *CreateInstitutionRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type InstitutionResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    models.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func toResponse(inst *models.Institution) *InstitutionResponse {
	return &InstitutionResponse{
		ID:        inst.ID.String(),
		Name:      inst.Name,
		Status:    inst.Status,
		CreatedAt: inst.CreatedAt,
		UpdatedAt: inst.UpdatedAt,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateInstitutionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inst, err := h.service.CreateInstitution(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "create institution failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(inst))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.withInstitution(w, r, "get institution failed", h.service.GetInstitution)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.withInstitution(w, r, "deactivate institution failed", h.service.DeactivateInstitution)
}

func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.withInstitution(w, r, "reactivate institution failed", h.service.ReactivateInstitution)
}

func (h *Handler) withInstitution(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	fn func(context.Context, id.InstitutionID) (*models.Institution, error),
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	institutionID, err := id.ParseInstitutionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institution id"))
		return
	}

	inst, err := fn(ctx, institutionID)
	if err != nil {
		h.logger.ErrorContext(ctx, failure, "error", err, "request_id", requestID, "institution_id", institutionID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(inst))
}
