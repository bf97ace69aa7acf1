package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"verichain/internal/authz"
	"verichain/internal/credential/models"
	"verichain/internal/credential/service"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/httputil"
	"verichain/pkg/requestcontext"
	"verichain/pkg/validation"
)

// IdempotencyKeyHeader carries the issuance request id.
const IdempotencyKeyHeader = "Idempotency-Key"

const issueDateLayout = "2006-01-02"

type Service interface {
	Issue(ctx context.Context, cmd service.IssueCommand) (*models.Credential, error)
	Claim(ctx context.Context, cmd service.ClaimCommand) (*models.ClaimResult, error)
	Verify(ctx context.Context, publicID id.PublicID) (*service.Verification, error)
	Search(ctx context.Context, recipientName, institutionName string) ([]*models.Summary, error)
	TokenByRecipient(ctx context.Context, recipientID string) (*models.TokenRef, error)
	Stats(ctx context.Context, institutionID id.InstitutionID) (*models.IssuerStats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the verification routes anyone may call.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/credentials/verify/{publicID}", h.HandleVerify)
	r.Get("/credentials/search", h.HandleSearch)
	r.Get("/credentials/token", h.HandleToken)
}

// RegisterAuthenticated mounts routes that run behind RequireAuth.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/credentials/issue", h.HandleIssue)
	r.Post("/credentials/{id}/claim", h.HandleClaim)
	r.Get("/issuer/stats", h.HandleStats)
}

// IssueForm holds the text parts of the multipart issuance upload.
type IssueForm struct {
	RecipientName string `validate:"required,notblank,max=256"`
	RecipientID   string `validate:"max=64"`
	Program       string `validate:"max=256"`
	DocumentType  string `validate:"required,notblank,max=64"`
	IssueDate     string `validate:"required"`
	SerialNumber  string `validate:"required,notblank,max=128"`
	SecretAnswer  string `validate:"required,notblank,max=256"`
}

func issueFormFrom(r *http.Request) *IssueForm {
	return &IssueForm{
		RecipientName: strings.TrimSpace(r.FormValue("recipient_name")),
		RecipientID:   strings.TrimSpace(r.FormValue("recipient_id")),
		Program:       strings.TrimSpace(r.FormValue("program")),
		DocumentType:  strings.TrimSpace(r.FormValue("document_type")),
		IssueDate:     strings.TrimSpace(r.FormValue("issue_date")),
		SerialNumber:  r.FormValue("serial_number"),
		SecretAnswer:  r.FormValue("secret_answer"),
	}
}

func (f *IssueForm) Validate() error {
	return validation.Validate(f)
}

func (f *IssueForm) payload() (models.Payload, error) {
	issued, err := time.Parse(issueDateLayout, f.IssueDate)
	if err != nil {
		return models.Payload{}, dErrors.New(dErrors.CodeValidation, "issue_date must be YYYY-MM-DD")
	}
	return models.Payload{
		RecipientName: f.RecipientName,
		RecipientID:   f.RecipientID,
		Program:       f.Program,
		DocumentType:  f.DocumentType,
		IssueDate:     issued,
	}, nil
}

type ClaimRequest struct {
	SerialNumber  string `json:"serial_number" validate:"required,notblank,max=128"`
	SecretAnswer  string `json:"secret_answer" validate:"required,notblank,max=256"`
	TargetAddress string `json:"target_address" validate:"omitempty,hexaddr"`
}

func (r *ClaimRequest) Normalize() {
	r.TargetAddress = strings.TrimSpace(r.TargetAddress)
}

func (r *ClaimRequest) Validate() error {
	return validation.Validate(r)
}

type CredentialResponse struct {
	CredentialID    string `json:"credential_id"`
	PublicID        string `json:"public_id"`
	TokenID         string `json:"token_id"`
	MintTxRef       string `json:"mint_tx_ref"`
	MetadataPointer string `json:"metadata_pointer"`
	AssetPointer    string `json:"asset_pointer"`
	Status          string `json:"status"`
}

// IncompleteResponse tells the client where an issuance stopped so it can
// retry with the same Idempotency-Key.
type IncompleteResponse struct {
	Error             string `json:"error"`
	ErrorDescription  string `json:"error_description"`
	IssuanceRequestID string `json:"issuance_request_id,omitempty"`
	Stage             string `json:"stage"`
	AssetPointer      string `json:"asset_pointer,omitempty"`
	MetadataPointer   string `json:"metadata_pointer,omitempty"`
	MintTxRef         string `json:"mint_tx_ref,omitempty"`
}

type ClaimResponse struct {
	CredentialID   string `json:"credential_id"`
	TokenID        string `json:"token_id"`
	HolderAddress  string `json:"holder_address"`
	TransferTxRef  string `json:"transfer_tx_ref"`
	Status         string `json:"status"`
	// AlreadyClaimed is additive; a repeat claim is otherwise identical to the first response.
	AlreadyClaimed bool `json:"already_claimed"`
}

type OnChainResponse struct {
	OwnerAddress *string `json:"owner_address"`
	Available    bool    `json:"available"`
	Consistent   bool    `json:"consistent"`
}

type VerifyResponse struct {
	PublicID        string          `json:"public_id"`
	RecipientName   string          `json:"recipient_name"`
	Program         string          `json:"program,omitempty"`
	DocumentType    string          `json:"document_type"`
	IssueDate       string          `json:"issue_date"`
	InstitutionName string          `json:"institution_name"`
	Status          string          `json:"status"`
	TokenID         string          `json:"token_id"`
	MintTxRef       string          `json:"mint_tx_ref"`
	AssetLink       string          `json:"asset_link"`
	MetadataPointer string          `json:"metadata_pointer"`
	HolderAddress   *string         `json:"holder_address,omitempty"`
	IssuedAt        time.Time       `json:"issued_at"`
	ClaimedAt       *time.Time      `json:"claimed_at,omitempty"`
	OnChain         OnChainResponse `json:"on_chain"`
}

type SummaryResponse struct {
	PublicID          string `json:"public_id"`
	RecipientName     string `json:"recipient_name"`
	RecipientIDMasked string `json:"recipient_id_masked,omitempty"`
	InstitutionName   string `json:"institution_name"`
	DocumentType      string `json:"document_type"`
	IssueDate         string `json:"issue_date"`
	Status            string `json:"status"`
}

func toCredentialResponse(c *models.Credential) *CredentialResponse {
	return &CredentialResponse{
		CredentialID:    c.ID.String(),
		PublicID:        c.PublicID.String(),
		TokenID:         c.TokenID,
		MintTxRef:       c.MintTxRef,
		MetadataPointer: c.MetadataPointer,
		AssetPointer:    c.AssetPointer,
		Status:          string(c.Status),
	}
}

func toVerifyResponse(v *service.Verification) *VerifyResponse {
	c := v.Credential
	resp := &VerifyResponse{
		PublicID:        c.PublicID.String(),
		RecipientName:   c.Payload.RecipientName,
		Program:         c.Payload.Program,
		DocumentType:    c.Payload.DocumentType,
		IssueDate:       c.Payload.IssueDate.Format(issueDateLayout),
		InstitutionName: v.InstitutionName,
		Status:          string(c.Status),
		TokenID:         c.TokenID,
		MintTxRef:       c.MintTxRef,
		AssetLink:       v.AssetLink,
		MetadataPointer: c.MetadataPointer,
		IssuedAt:        c.IssuedAt,
		ClaimedAt:       c.ClaimedAt,
		OnChain: OnChainResponse{
			Available:  v.OnChain.Available,
			Consistent: v.OnChain.Consistent,
		},
	}
	if c.HolderAddress != nil {
		addr := c.HolderAddress.Hex()
		resp.HolderAddress = &addr
	}
	if v.OnChain.Owner != nil {
		owner := v.OnChain.Owner.Hex()
		resp.OnChain.OwnerAddress = &owner
	}
	return resp
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := httputil.RequireOperation(ctx, authz.OpIssueCredential); err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuerID, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	institutionID := requestcontext.InstitutionID(ctx)
	if institutionID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "issuer is not bound to an institution"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxMultipartMemory)
	if err := r.ParseMultipartForm(validation.MaxMultipartMemory); err != nil {
		h.logger.WarnContext(ctx, "failed to parse issuance upload", "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	form := issueFormFrom(r)
	if err := form.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := form.payload()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := readAsset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.service.Issue(ctx, service.IssueCommand{
		RequestID:     strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
		InstitutionID: institutionID,
		IssuerID:      issuerID,
		Payload:       payload,
		Serial:        form.SerialNumber,
		Secret:        form.SecretAnswer,
		Asset:         asset,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "issue credential failed", "error", err, "request_id", requestID)
		var incomplete *service.IncompleteError
		if errors.As(err, &incomplete) {
			writeIncomplete(w, incomplete)
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// readAsset returns the uploaded PDF. Only the first 512 bytes decide the type.
func readAsset(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validation.MaxAssetSize+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "could not read file")
	}
	switch {
	case len(data) == 0:
		return nil, dErrors.New(dErrors.CodeValidation, "file is required")
	case len(data) > validation.MaxAssetSize:
		return nil, dErrors.New(dErrors.CodeValidation, "file must be at most 10 MiB")
	case http.DetectContentType(data) != "application/pdf":
		return nil, dErrors.New(dErrors.CodeValidation, "file must be a PDF")
	}
	return data, nil
}

func writeIncomplete(w http.ResponseWriter, e *service.IncompleteError) {
	resp := IncompleteResponse{
		Error:             httputil.DomainCodeToHTTPCode(dErrors.CodeExternalService),
		ErrorDescription:  "issuance incomplete, retry with the same Idempotency-Key",
		IssuanceRequestID: e.RequestID,
		Stage:             string(e.Stage),
		AssetPointer:      e.AssetPointer,
		MetadataPointer:   e.MetadataPointer,
		MintTxRef:         e.MintTxRef,
	}
	var domainErr *dErrors.Error
	if errors.As(e, &domainErr) && domainErr.Message != "" {
		resp.ErrorDescription = domainErr.Message
	}
	httputil.WriteJSON(w, http.StatusBadGateway, resp)
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := httputil.RequireOperation(ctx, authz.OpClaimCredential); err != nil {
		httputil.WriteError(w, err)
		return
	}
	claimantID, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ClaimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Claim(ctx, service.ClaimCommand{
		CredentialID:  credentialID,
		ClaimantID:    claimantID,
		Serial:        req.SerialNumber,
		Secret:        req.SecretAnswer,
		TargetAddress: req.TargetAddress,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "claim credential failed",
			"error", err,
			"request_id", requestID,
			"credential_id", credentialID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ClaimResponse{
		CredentialID:   res.CredentialID.String(),
		TokenID:        res.TokenID,
		HolderAddress:  res.HolderAddress.Hex(),
		TransferTxRef:  res.TransferTxRef,
		Status:         string(models.StatusClaimed),
		AlreadyClaimed: res.AlreadyClaimed,
	})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	publicID, err := id.ParsePublicID(chi.URLParam(r, "publicID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid public id"))
		return
	}
	v, err := h.service.Verify(ctx, publicID)
	if err != nil {
		h.logger.WarnContext(ctx, "verify credential failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(v))
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	q := r.URL.Query()
	hits, err := h.service.Search(ctx, q.Get("name"), q.Get("institution"))
	if err != nil {
		h.logger.WarnContext(ctx, "search credentials failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*SummaryResponse, 0, len(hits))
	for _, s := range hits {
		out = append(out, &SummaryResponse{
			PublicID:          s.PublicID.String(),
			RecipientName:     s.RecipientName,
			RecipientIDMasked: s.RecipientIDMasked,
			InstitutionName:   s.InstitutionName,
			DocumentType:      s.DocumentType,
			IssueDate:         s.IssueDate.Format(issueDateLayout),
			Status:            string(s.Status),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"credentials": out})
}

func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	ref, err := h.service.TokenByRecipient(ctx, r.URL.Query().Get("recipient_id"))
	if err != nil {
		h.logger.WarnContext(ctx, "token lookup failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"public_id": ref.PublicID.String(),
		"token_id":  ref.TokenID,
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := httputil.RequireOperation(ctx, authz.OpViewIssuerStats); err != nil {
		httputil.WriteError(w, err)
		return
	}
	institutionID := requestcontext.InstitutionID(ctx)
	if institutionID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not bound to an institution"))
		return
	}
	stats, err := h.service.Stats(ctx, institutionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "issuer stats failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"institution_id": stats.InstitutionID.String(),
		"issued":         stats.Issued,
		"claimed":        stats.Claimed,
	})
}
