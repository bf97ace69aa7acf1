package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"verichain/internal/authz"
	"verichain/internal/principal/models"
	"verichain/internal/principal/service"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/httputil"
	"verichain/pkg/requestcontext"
	"verichain/pkg/validation"
)

type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (*models.Principal, error)
	CreateAdmin(ctx context.Context, institutionID id.InstitutionID, email, password, fullName string) (*models.Principal, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	GetProfile(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	LinkAddress(ctx context.Context, principalID id.PrincipalID, rawAddress string) (*models.Principal, error)
	ListIssuers(ctx context.Context, institutionID id.InstitutionID) ([]*models.Principal, error)
	ApproveIssuer(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) (*models.Principal, error)
	RemoveIssuer(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated account routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterAuthenticated mounts routes that run behind RequireAuth.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/profile", h.HandleGetProfile)
	r.Put("/profile/address", h.HandleLinkAddress)
	r.Get("/admin/issuers", h.HandleListIssuers)
	r.Post("/admin/issuers/{id}/approve", h.HandleApproveIssuer)
	r.Delete("/admin/issuers/{id}", h.HandleRemoveIssuer)
}

// RegisterPlatform mounts routes guarded by the platform admin token.
func (h *Handler) RegisterPlatform(r chi.Router) {
	r.Post("/admin/institutions/{id}/admins", h.HandleCreateAdmin)
}

type RegisterRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	FullName      string `json:"full_name" validate:"required,notblank,max=128"`
	Role          string `json:"role" validate:"required,oneof=issuer holder"`
	InstitutionID string `json:"institution_id" validate:"omitempty,uuid"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.InstitutionID = strings.TrimSpace(r.InstitutionID)
}

func (r *RegisterRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.Role == string(authz.RoleIssuer) && r.InstitutionID == "" {
		return dErrors.New(dErrors.CodeValidation, "institution_id is required for issuers")
	}
	return nil
}

type CreateAdminRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,notblank,max=128"`
}

func (r *CreateAdminRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
}

func (r *CreateAdminRequest) Validate() error {
	return validation.Validate(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

type LinkAddressRequest struct {
	Address string `json:"address" validate:"required,hexaddr"`
}

func (r *LinkAddressRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
}

func (r *LinkAddressRequest) Validate() error {
	return validation.Validate(r)
}

type PrincipalResponse struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	FullName       string        `json:"full_name"`
	Role           authz.Role    `json:"role"`
	InstitutionID  string        `json:"institution_id,omitempty"`
	Status         models.Status `json:"status"`
	CustodyAddress string        `json:"custody_address,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type LoginResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Principal   *PrincipalResponse `json:"principal"`
}

func toResponse(p *models.Principal) *PrincipalResponse {
	resp := &PrincipalResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      p.Role,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
	if p.InstitutionID != nil {
		resp.InstitutionID = p.InstitutionID.String()
	}
	if p.CustodyAddress != nil {
		resp.CustodyAddress = p.CustodyAddress.Hex()
	}
	return resp
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cmd := service.RegisterCommand{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     authz.Role(req.Role),
	}
	if req.InstitutionID != "" {
		institutionID, err := id.ParseInstitutionID(req.InstitutionID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		cmd.InstitutionID = &institutionID
	}

	p, err := h.service.Register(ctx, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "register failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt,
		Principal:   toResponse(res.Principal),
	})
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := httputil.RequireOperation(ctx, authz.OpViewProfile); err != nil {
		httputil.WriteError(w, err)
		return
	}
	principalID, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetProfile(ctx, principalID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get profile failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) HandleLinkAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := httputil.RequireOperation(ctx, authz.OpLinkAddress); err != nil {
		httputil.WriteError(w, err)
		return
	}
	principalID, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[LinkAddressRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.LinkAddress(ctx, principalID, req.Address)
	if err != nil {
		h.logger.ErrorContext(ctx, "link address failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) HandleListIssuers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	institutionID, err := adminInstitution(ctx, authz.OpListIssuers)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuers, err := h.service.ListIssuers(ctx, institutionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list issuers failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*PrincipalResponse, 0, len(issuers))
	for _, p := range issuers {
		out = append(out, toResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"issuers": out})
}

func (h *Handler) HandleApproveIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	institutionID, err := adminInstitution(ctx, authz.OpApproveIssuer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuerID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid issuer id"))
		return
	}
	p, err := h.service.ApproveIssuer(ctx, institutionID, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "approve issuer failed", "error", err, "request_id", requestID, "issuer_id", issuerID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) HandleRemoveIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	institutionID, err := adminInstitution(ctx, authz.OpRemoveIssuer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuerID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid issuer id"))
		return
	}
	if err := h.service.RemoveIssuer(ctx, institutionID, issuerID); err != nil {
		h.logger.ErrorContext(ctx, "remove issuer failed", "error", err, "request_id", requestID, "issuer_id", issuerID)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	institutionID, err := id.ParseInstitutionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institution id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateAdminRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.CreateAdmin(ctx, institutionID, req.Email, req.Password, req.FullName)
	if err != nil {
		h.logger.ErrorContext(ctx, "create admin failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(p))
}

// adminInstitution authorizes op and returns the admin's institution.
func adminInstitution(ctx context.Context, op authz.Operation) (id.InstitutionID, error) {
	if err := httputil.RequireOperation(ctx, op); err != nil {
		return id.InstitutionID{}, err
	}
	institutionID := requestcontext.InstitutionID(ctx)
	if institutionID.IsNil() {
		return id.InstitutionID{}, dErrors.New(dErrors.CodeForbidden, "admin is not bound to an institution")
	}
	return institutionID, nil
}
