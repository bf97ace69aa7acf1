package service

import (
	"context"
	"time"

	"verichain/internal/credential/models"
	"verichain/pkg/platform/outbox"
	"verichain/pkg/requestcontext"
)

const (
	aggregateCredential = "credential"

	EventCredentialIssued  = "credential.issued"
	EventCredentialClaimed = "credential.claimed"
)

// credentialEvent is the Kafka payload for credential lifecycle changes. It
// never carries verifiers or the recipient identifier.
type credentialEvent struct {
	CredentialID      string    `json:"credential_id"`
	PublicID          string    `json:"public_id"`
	InstitutionID     string    `json:"institution_id"`
	TokenID           string    `json:"token_id"`
	Status            string    `json:"status"`
	MetadataPointer   string    `json:"metadata_pointer,omitempty"`
	MintTxRef         string    `json:"mint_tx_ref,omitempty"`
	HolderAddress     string    `json:"holder_address,omitempty"`
	TransferTxRef     string    `json:"transfer_tx_ref,omitempty"`
	IssuanceRequestID string    `json:"issuance_request_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
	RequestID         string    `json:"request_id,omitempty"`
	eventType         string
}

func issuedEvent(c *models.Credential, issuanceRequestID string) credentialEvent {
	return credentialEvent{
		CredentialID:      c.ID.String(),
		PublicID:          c.PublicID.String(),
		InstitutionID:     c.InstitutionID.String(),
		TokenID:           c.TokenID,
		Status:            string(c.Status),
		MetadataPointer:   c.MetadataPointer,
		MintTxRef:         c.MintTxRef,
		IssuanceRequestID: issuanceRequestID,
		eventType:         EventCredentialIssued,
	}
}

func claimedEvent(c *models.Credential) credentialEvent {
	e := credentialEvent{
		CredentialID:  c.ID.String(),
		PublicID:      c.PublicID.String(),
		InstitutionID: c.InstitutionID.String(),
		TokenID:       c.TokenID,
		Status:        string(c.Status),
		TransferTxRef: c.TransferTxRef,
		eventType:     EventCredentialClaimed,
	}
	if c.HolderAddress != nil {
		e.HolderAddress = c.HolderAddress.Hex()
	}
	return e
}

// appendEvent writes e to the outbox within the caller's transaction. Without
// a sink events are dropped.
func (s *Service) appendEvent(ctx context.Context, e credentialEvent, now time.Time) error {
	if s.events == nil {
		return nil
	}
	e.OccurredAt = now
	e.RequestID = requestcontext.RequestID(ctx)
	entry, err := outbox.NewJSONEntry(aggregateCredential, e.CredentialID, e.eventType, e, now)
	if err != nil {
		return err
	}
	return s.events.Append(ctx, entry)
}
