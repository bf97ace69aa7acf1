package models

import (
	"time"

	id "verichain/pkg/domain"
)

// IssuanceStage records how far an issuance request got. The only backward
// move is a reverted mint, which returns the attempt to assets_published.
type IssuanceStage string

const (
	StageStarted         IssuanceStage = "started"
	StageAssetsPublished IssuanceStage = "assets_published"
	StageMintSubmitted   IssuanceStage = "mint_submitted"
	StageMinted          IssuanceStage = "minted"
	StageCompleted       IssuanceStage = "completed"
)

var stageOrder = map[IssuanceStage]int{
	StageStarted:         0,
	StageAssetsPublished: 1,
	StageMintSubmitted:   2,
	StageMinted:          3,
	StageCompleted:       4,
}

// Reached reports whether s is at or past target.
func (s IssuanceStage) Reached(target IssuanceStage) bool {
	return stageOrder[s] >= stageOrder[target]
}

// MayHaveMinted reports whether an unfinished attempt could own a token on
// chain that no credential records yet.
func (s IssuanceStage) MayHaveMinted() bool {
	return s.Reached(StageMintSubmitted) && s != StageCompleted
}

// IssuanceAttempt is the resume journal for one client issuance request.
// Fingerprint binds the request id to the (institution, serial, payload) it was
// first used with.
type IssuanceAttempt struct {
	RequestID       string
	InstitutionID   id.InstitutionID
	IssuerID        id.PrincipalID
	Fingerprint     string
	Stage           IssuanceStage
	AssetPointer    string
	MetadataPointer string
	MintTxRef       string
	TokenID         string
	CredentialID    *id.CredentialID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ClaimIntentState tracks a transfer from submission to commit.
type ClaimIntentState string

const (
	// IntentPending: recorded, transfer not yet known to be submitted.
	IntentPending ClaimIntentState = "pending"
	// IntentSubmitted: transfer sent, tx ref known, outcome not yet committed.
	IntentSubmitted ClaimIntentState = "submitted"
	IntentCommitted ClaimIntentState = "committed"
	IntentAborted   ClaimIntentState = "aborted"
)

// IsOpen reports whether the intent still needs reconciliation.
func (s ClaimIntentState) IsOpen() bool {
	return s == IntentPending || s == IntentSubmitted
}

// ClaimIntent is written before a custody transfer is submitted so a crash
// between ledger confirmation and the off-chain commit can be reconciled.
type ClaimIntent struct {
	CredentialID  id.CredentialID
	ClaimantID    id.PrincipalID
	TargetAddress id.Address
	TransferTxRef string
	State         ClaimIntentState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
