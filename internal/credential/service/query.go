package service

import (
	"context"
	"strings"

	"verichain/internal/credential/models"
	instmodels "verichain/internal/institution/models"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
	stringutil "verichain/pkg/string"
)

const recipientIDVisible = 6

// OnChain is the best-effort ledger view shown next to the record.
type OnChain struct {
	Owner *id.Address
	// Available is false when the ledger could not be read.
	Available bool
	// Consistent reports whether the owner matches the record: the custody
	// account while issued, the holder address once claimed.
	Consistent bool
}

// Verification is the public view of one credential.
type Verification struct {
	Credential      *models.Credential
	InstitutionName string
	AssetLink       string
	OnChain         OnChain
}

// Verify reads the record by its public id plus the current token owner. A
// ledger failure degrades OnChain instead of failing the request.
func (s *Service) Verify(ctx context.Context, publicID id.PublicID) (*Verification, error) {
	cred, err := s.credentials.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, wrapCredentialErr(err)
	}
	v := &Verification{Credential: cred}

	if inst, err := s.institutions.GetInstitution(ctx, cred.InstitutionID); err == nil {
		v.InstitutionName = inst.Name
	} else {
		s.logger.WarnContext(ctx, "institution lookup failed during verification",
			"credential_id", cred.ID, "error", err)
	}
	if link, err := s.assets.Link(ctx, cred.AssetPointer); err == nil {
		v.AssetLink = link
	} else {
		s.logger.WarnContext(ctx, "asset link unavailable",
			"credential_id", cred.ID, "error", err)
	}

	owner, err := s.ledger.OwnerOf(ctx, cred.TokenID)
	if err != nil {
		s.logger.WarnContext(ctx, "on-chain check unavailable",
			"credential_id", cred.ID,
			"token_id", cred.TokenID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return v, nil
	}
	v.OnChain = OnChain{Owner: &owner, Available: true, Consistent: ownerMatches(cred, owner, s.ledger.CustodyAccount())}
	if !v.OnChain.Consistent {
		s.logger.WarnContext(ctx, "ledger owner disagrees with record",
			"credential_id", cred.ID,
			"status", cred.Status,
			"owner", owner.Hex(),
		)
	}
	return v, nil
}

func ownerMatches(cred *models.Credential, owner, custody id.Address) bool {
	if cred.IsClaimed() {
		return cred.HolderAddress != nil && *cred.HolderAddress == owner
	}
	return owner == custody
}

// Search finds credentials by recipient name within institutions matching
// institutionName. Both terms are required; recipient ids come back masked.
func (s *Service) Search(ctx context.Context, recipientName, institutionName string) ([]*models.Summary, error) {
	recipientName = strings.TrimSpace(recipientName)
	institutionName = strings.TrimSpace(institutionName)
	if recipientName == "" || institutionName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name and institution are required")
	}

	insts, err := s.institutions.SearchByName(ctx, institutionName)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return []*models.Summary{}, nil
	}
	byID := make(map[id.InstitutionID]*instmodels.Institution, len(insts))
	ids := make([]id.InstitutionID, 0, len(insts))
	for _, inst := range insts {
		byID[inst.ID] = inst
		ids = append(ids, inst.ID)
	}

	creds, err := s.credentials.SearchByRecipient(ctx, recipientName, ids, s.searchLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search credentials")
	}
	out := make([]*models.Summary, 0, len(creds))
	for _, c := range creds {
		sum := &models.Summary{
			CredentialID:      c.ID,
			PublicID:          c.PublicID,
			RecipientName:     c.Payload.RecipientName,
			RecipientIDMasked: stringutil.MaskTail(c.Payload.RecipientID, recipientIDVisible),
			DocumentType:      c.Payload.DocumentType,
			IssueDate:         c.Payload.IssueDate,
			Status:            c.Status,
		}
		if inst, ok := byID[c.InstitutionID]; ok {
			sum.InstitutionName = inst.Name
		}
		out = append(out, sum)
	}
	return out, nil
}

// TokenByRecipient returns the newest credential token for a recipient id.
func (s *Service) TokenByRecipient(ctx context.Context, recipientID string) (*models.TokenRef, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient_id is required")
	}
	cred, err := s.credentials.FindLatestByRecipientID(ctx, recipientID)
	if err != nil {
		return nil, wrapCredentialErr(err)
	}
	return &models.TokenRef{PublicID: cred.PublicID, TokenID: cred.TokenID}, nil
}

// Stats returns issued and claimed counts for an institution.
func (s *Service) Stats(ctx context.Context, institutionID id.InstitutionID) (*models.IssuerStats, error) {
	if institutionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is not bound to an institution")
	}
	stats, err := s.credentials.StatsByInstitution(ctx, institutionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load stats")
	}
	return stats, nil
}
