package models

import (
	"time"

	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
)

// Status is the credential lifecycle. It only moves forward: issued -> claimed.
type Status string

const (
	StatusIssued  Status = "issued"
	StatusClaimed Status = "claimed"
)

func (s Status) IsValid() bool {
	return s == StatusIssued || s == StatusClaimed
}

// Payload is the descriptive part of a credential. It is published in the
// metadata document and shown on verification, so it never carries the raw
// serial or secret.
type Payload struct {
	RecipientName string    `json:"recipient_name"`
	RecipientID   string    `json:"recipient_id,omitempty"`
	Program       string    `json:"program,omitempty"`
	DocumentType  string    `json:"document_type"`
	IssueDate     time.Time `json:"issue_date"`
}

// Credential is the authoritative off-chain record.
//
// SerialFingerprint is a keyed deterministic digest of the serial used only to
// enforce (institution, serial) uniqueness. SerialHash and SecretHash are
// salted verifiers used at claim time. None of them is ever updated.
type Credential struct {
	ID                id.CredentialID
	PublicID          id.PublicID
	InstitutionID     id.InstitutionID
	IssuerID          id.PrincipalID
	Payload           Payload
	SerialFingerprint string
	SerialHash        string
	SecretHash        string
	AssetPointer      string
	MetadataPointer   string
	TokenID           string
	MintTxRef         string
	Status            Status
	HolderID          *id.PrincipalID
	HolderAddress     *id.Address
	TransferTxRef     string
	IssuedAt          time.Time
	ClaimedAt         *time.Time
}

// NewIssued builds a credential in the issued state. Every persisted
// credential has been minted, so a token id and mint reference are required.
func NewIssued(
	credID id.CredentialID,
	publicID id.PublicID,
	institutionID id.InstitutionID,
	issuerID id.PrincipalID,
	payload Payload,
	serialFingerprint, serialHash, secretHash string,
	assetPointer, metadataPointer string,
	tokenID, mintTxRef string,
	now time.Time,
) (*Credential, error) {
	c := &Credential{
		ID:                credID,
		PublicID:          publicID,
		InstitutionID:     institutionID,
		IssuerID:          issuerID,
		Payload:           payload,
		SerialFingerprint: serialFingerprint,
		SerialHash:        serialHash,
		SecretHash:        secretHash,
		AssetPointer:      assetPointer,
		MetadataPointer:   metadataPointer,
		TokenID:           tokenID,
		MintTxRef:         mintTxRef,
		Status:            StatusIssued,
		IssuedAt:          now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the record invariants.
func (c *Credential) Validate() error {
	switch {
	case c.ID.IsNil() || c.PublicID.IsNil():
		return dErrors.New(dErrors.CodeInvariantViolation, "credential identifiers are required")
	case c.InstitutionID.IsNil() || c.IssuerID.IsNil():
		return dErrors.New(dErrors.CodeInvariantViolation, "credential must reference its institution and issuer")
	case c.SerialFingerprint == "" || c.SerialHash == "" || c.SecretHash == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "credential verifiers are required")
	case c.TokenID == "" || c.MintTxRef == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "issued credential must carry a token id and mint reference")
	case !c.Status.IsValid():
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown credential status")
	}

	claimedFields := c.HolderID != nil && c.HolderAddress != nil && c.TransferTxRef != "" && c.ClaimedAt != nil
	noClaimFields := c.HolderID == nil && c.HolderAddress == nil && c.TransferTxRef == "" && c.ClaimedAt == nil
	if c.Status == StatusClaimed && !claimedFields {
		return dErrors.New(dErrors.CodeInvariantViolation, "claimed credential must have holder and transfer reference")
	}
	if c.Status == StatusIssued && !noClaimFields {
		return dErrors.New(dErrors.CodeInvariantViolation, "unclaimed credential cannot have a holder")
	}
	return nil
}

func (c *Credential) IsClaimed() bool {
	return c.Status == StatusClaimed
}

// IsClaimedBy reports whether pid is the recorded holder.
func (c *Credential) IsClaimedBy(pid id.PrincipalID) bool {
	return c.IsClaimed() && c.HolderID != nil && *c.HolderID == pid
}

// MarkClaimed performs the one allowed transition.
func (c *Credential) MarkClaimed(holder id.PrincipalID, addr id.Address, transferTxRef string, now time.Time) error {
	if c.Status != StatusIssued {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential is not in issued state")
	}
	if holder.IsNil() || transferTxRef == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim requires a holder and transfer reference")
	}
	c.Status = StatusClaimed
	c.HolderID = &holder
	c.HolderAddress = &addr
	c.TransferTxRef = transferTxRef
	c.ClaimedAt = &now
	return nil
}

// ClaimResult is what a successful claim returns, including idempotent repeats.
type ClaimResult struct {
	CredentialID  id.CredentialID
	TokenID       string
	HolderAddress id.Address
	TransferTxRef string
	// AlreadyClaimed is true when the caller had claimed this credential before.
	AlreadyClaimed bool
}

// ResultFor builds the claim result of a claimed credential.
func (c *Credential) ResultFor() *ClaimResult {
	r := &ClaimResult{
		CredentialID:  c.ID,
		TokenID:       c.TokenID,
		TransferTxRef: c.TransferTxRef,
	}
	if c.HolderAddress != nil {
		r.HolderAddress = *c.HolderAddress
	}
	return r
}

// Summary is a search hit. RecipientIDMasked never carries the full identifier.
type Summary struct {
	CredentialID      id.CredentialID
	PublicID          id.PublicID
	RecipientName     string
	RecipientIDMasked string
	InstitutionName   string
	DocumentType      string
	IssueDate         time.Time
	Status            Status
}

// TokenRef links a recipient identifier to its public verification id and token.
type TokenRef struct {
	PublicID id.PublicID
	TokenID  string
}

// IssuerStats backs the issuer dashboard.
type IssuerStats struct {
	InstitutionID id.InstitutionID
	Issued        int
	Claimed       int
}
