package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"verichain/internal/credential/assets"
	"verichain/internal/credential/ledger"
	"verichain/internal/credential/models"
	"verichain/internal/credential/verifier"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/platform/tracer"
	"verichain/pkg/requestcontext"
	"verichain/pkg/validation"
)

const (
	assetPrefix    = "assets/"
	metadataPrefix = "metadata/"
)

// IssueCommand is one issuance request. RequestID is the client's
// idempotency key; without one the request cannot be resumed.
type IssueCommand struct {
	RequestID     string
	InstitutionID id.InstitutionID
	IssuerID      id.PrincipalID
	Payload       models.Payload
	Serial        string
	Secret        string
	Asset         []byte
}

func (c *IssueCommand) Validate() error {
	switch {
	case c.InstitutionID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "institution_id is required")
	case c.IssuerID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "issuer is required")
	case strings.TrimSpace(c.Payload.RecipientName) == "":
		return dErrors.New(dErrors.CodeValidation, "recipient_name is required")
	case strings.TrimSpace(c.Payload.DocumentType) == "":
		return dErrors.New(dErrors.CodeValidation, "document_type is required")
	case c.Payload.IssueDate.IsZero():
		return dErrors.New(dErrors.CodeValidation, "issue_date is required")
	case verifier.NormalizeSerial(c.Serial) == "":
		return dErrors.New(dErrors.CodeValidation, "serial_number is required")
	case verifier.NormalizeSecret(c.Secret) == "":
		return dErrors.New(dErrors.CodeValidation, "secret_answer is required")
	case len(c.Asset) == 0:
		return dErrors.New(dErrors.CodeValidation, "file is required")
	case len(c.Asset) > validation.MaxAssetSize:
		return dErrors.New(dErrors.CodeValidation, "file must be at most 10 MiB")
	case len(c.RequestID) > 128:
		return dErrors.New(dErrors.CodeValidation, "idempotency key must be at most 128 characters")
	}
	return nil
}

// IncompleteError reports an issuance that stopped after publishing or
// minting. Retrying with the same RequestID resumes from Stage without
// publishing or minting again.
type IncompleteError struct {
	RequestID       string
	Stage           models.IssuanceStage
	AssetPointer    string
	MetadataPointer string
	MintTxRef       string
	err             error
}

func (e *IncompleteError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("issuance %s incomplete at stage %s", e.RequestID, e.Stage)
	}
	return e.err.Error()
}

func (e *IncompleteError) Unwrap() error {
	return e.err
}

func (s *Service) incomplete(a *models.IssuanceAttempt, msg string, cause error) error {
	return &IncompleteError{
		RequestID:       a.RequestID,
		Stage:           a.Stage,
		AssetPointer:    a.AssetPointer,
		MetadataPointer: a.MetadataPointer,
		MintTxRef:       a.MintTxRef,
		err:             &dErrors.Error{Code: dErrors.CodeExternalService, Message: msg, Err: cause},
	}
}

// Issue publishes the asset and its metadata, mints a custody token and
// persists the credential. Each completed step is journaled under
// cmd.RequestID so a failed request can be retried without side effects
// being repeated.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (cred *models.Credential, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "credential.issue",
		tracer.String("institution_id", cmd.InstitutionID.String()),
		tracer.String("issuance_request_id", cmd.RequestID),
	)
	defer func() {
		span.End(err)
		if err == nil {
			s.metrics.IncrementIssued()
			s.metrics.ObserveIssue(start)
		}
	}()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.principals.RequireActiveIssuer(ctx, cmd.IssuerID, cmd.InstitutionID); err != nil {
		return nil, err
	}
	inst, err := s.institutions.RequireActive(ctx, cmd.InstitutionID)
	if err != nil {
		return nil, err
	}
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}

	release, err := s.locker.Acquire(ctx, "issue:"+cmd.RequestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "issuance request is already in progress")
	}
	defer s.release(ctx, release, "issue:"+cmd.RequestID)

	fingerprint := s.fingerprints.Serial(cmd.InstitutionID.String(), cmd.Serial)
	attempt, err := s.loadAttempt(ctx, cmd, fingerprint)
	if err != nil {
		return nil, err
	}
	if attempt != nil && attempt.Stage == models.StageCompleted {
		return s.completedCredential(ctx, attempt)
	}

	// Requests under different idempotency keys for the same serial are
	// serialised here until the credential row exists.
	serialKey := "serial:" + cmd.InstitutionID.String() + ":" + fingerprint
	releaseSerial, err := s.locker.Acquire(ctx, serialKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "serial number is already being issued")
	}
	defer s.release(ctx, releaseSerial, serialKey)

	if err := s.checkSerialFree(ctx, cmd, fingerprint); err != nil {
		return nil, err
	}
	if attempt == nil {
		if attempt, err = s.createAttempt(ctx, cmd, fingerprint); err != nil {
			return nil, err
		}
	}

	serialHash, err := s.hasher.Hash(verifier.NormalizeSerial(cmd.Serial))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash serial number")
	}
	secretHash, err := s.hasher.Hash(verifier.NormalizeSecret(cmd.Secret))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}

	if !attempt.Stage.Reached(models.StageAssetsPublished) {
		if err := s.publishAssets(ctx, attempt, cmd, inst.Name); err != nil {
			return nil, err
		}
	}
	if !attempt.Stage.Reached(models.StageMintSubmitted) {
		if err := s.submitMint(ctx, attempt); err != nil {
			return nil, err
		}
	}
	if !attempt.Stage.Reached(models.StageMinted) {
		if err := s.awaitMint(ctx, attempt); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	cred, err = models.NewIssued(
		id.CredentialID(uuid.New()),
		id.PublicID(uuid.New()),
		cmd.InstitutionID,
		cmd.IssuerID,
		cmd.Payload,
		fingerprint, serialHash, secretHash,
		attempt.AssetPointer, attempt.MetadataPointer,
		attempt.TokenID, attempt.MintTxRef,
		now,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build credential")
	}
	if err := s.persistIssued(ctx, cred, attempt, now); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", cred.ID,
		"institution_id", cred.InstitutionID,
		"token_id", cred.TokenID,
		"mint_tx_ref", cred.MintTxRef,
		"request_id", requestcontext.RequestID(ctx),
	)
	return cred, nil
}

// checkSerialFree refuses a serial that is already on a credential or whose
// mint may already be on chain under another idempotency key. Both checks
// run before any external call.
func (s *Service) checkSerialFree(ctx context.Context, cmd IssueCommand, fingerprint string) error {
	taken, err := s.credentials.SerialExists(ctx, cmd.InstitutionID, fingerprint)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check serial number")
	}
	if taken {
		s.metrics.IncrementIssueFailure("duplicate_serial")
		return duplicateSerial()
	}

	other, err := s.journal.FindInFlightAttempt(ctx, cmd.InstitutionID, fingerprint)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuance journal")
	}
	if other.RequestID == cmd.RequestID {
		return nil
	}
	s.metrics.IncrementIssueFailure("duplicate_serial")
	s.logger.WarnContext(ctx, "serial already minting under another request",
		"issuance_request_id", cmd.RequestID,
		"in_flight_request_id", other.RequestID,
		"stage", other.Stage,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeConflict, "serial number is already being issued; retry the original request")
}

// loadAttempt returns the journal entry for the request, or nil. A key
// reused for a different institution or serial is a conflict.
func (s *Service) loadAttempt(ctx context.Context, cmd IssueCommand, fingerprint string) (*models.IssuanceAttempt, error) {
	attempt, err := s.journal.GetAttempt(ctx, cmd.RequestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuance journal")
	}
	if attempt.InstitutionID != cmd.InstitutionID || attempt.Fingerprint != fingerprint {
		return nil, dErrors.New(dErrors.CodeConflict, "idempotency key was already used for a different credential")
	}
	s.logger.InfoContext(ctx, "resuming issuance",
		"issuance_request_id", attempt.RequestID,
		"stage", attempt.Stage,
		"request_id", requestcontext.RequestID(ctx),
	)
	return attempt, nil
}

func (s *Service) createAttempt(ctx context.Context, cmd IssueCommand, fingerprint string) (*models.IssuanceAttempt, error) {
	now := requestcontext.Now(ctx)
	attempt := &models.IssuanceAttempt{
		RequestID:     cmd.RequestID,
		InstitutionID: cmd.InstitutionID,
		IssuerID:      cmd.IssuerID,
		Fingerprint:   fingerprint,
		Stage:         models.StageStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.journal.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "idempotency key was already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create issuance journal")
	}
	return attempt, nil
}

func (s *Service) completedCredential(ctx context.Context, attempt *models.IssuanceAttempt) (*models.Credential, error) {
	if attempt.CredentialID == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "completed issuance has no credential")
	}
	cred, err := s.credentials.FindByID(ctx, *attempt.CredentialID)
	if err != nil {
		return nil, wrapCredentialErr(err)
	}
	return cred, nil
}

func (s *Service) publishAssets(ctx context.Context, attempt *models.IssuanceAttempt, cmd IssueCommand, institutionName string) error {
	ctx, span := s.tracer.Start(ctx, "credential.issue.publish")
	var err error
	defer func() { span.End(err) }()

	assetPointer, err := s.assets.Put(ctx, assetPrefix, assets.ContentTypePDF, cmd.Asset)
	if err != nil {
		s.metrics.IncrementIssueFailure("asset_publish")
		return dErrors.Wrap(err, dErrors.CodeExternalService, "asset store unavailable")
	}
	meta := assets.BuildMetadata(assets.Descriptor{
		RecipientName:   cmd.Payload.RecipientName,
		RecipientID:     cmd.Payload.RecipientID,
		Program:         cmd.Payload.Program,
		DocumentType:    cmd.Payload.DocumentType,
		IssueDate:       cmd.Payload.IssueDate,
		InstitutionName: institutionName,
	}, assetPointer)
	raw, err := meta.Encode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode metadata")
	}
	metadataPointer, err := s.assets.Put(ctx, metadataPrefix, assets.ContentTypeJSON, raw)
	if err != nil {
		s.metrics.IncrementIssueFailure("metadata_publish")
		return dErrors.Wrap(err, dErrors.CodeExternalService, "asset store unavailable")
	}

	attempt.AssetPointer = assetPointer
	attempt.MetadataPointer = metadataPointer
	return s.advance(ctx, attempt, models.StageAssetsPublished)
}

func (s *Service) submitMint(ctx context.Context, attempt *models.IssuanceAttempt) error {
	ref, err := s.ledger.MintToCustody(ctx, attempt.MetadataPointer)
	if err != nil && ref == "" {
		s.metrics.IncrementIssueFailure("mint_submit")
		return s.incomplete(attempt, "custody ledger did not accept the mint; retry the request", err)
	}
	attempt.MintTxRef = ref.String()
	if jerr := s.advance(ctx, attempt, models.StageMintSubmitted); jerr != nil {
		// The mint is out but the journal does not know it. A retry would mint
		// again, so the ref has to survive at least in the log.
		s.logger.ErrorContext(ctx, "mint submitted but not journaled",
			"issuance_request_id", attempt.RequestID,
			"mint_tx_ref", ref.String(),
			"error", jerr,
		)
		return &dErrors.Error{Code: dErrors.CodeInconsistentState, Message: "mint submitted but not recorded", Err: jerr}
	}
	if err != nil {
		s.metrics.IncrementIssueFailure("mint_submit")
		return s.incomplete(attempt, "mint submitted but not confirmed; retry the request", err)
	}
	return nil
}

func (s *Service) awaitMint(ctx context.Context, attempt *models.IssuanceAttempt) error {
	receipt, err := s.ledger.AwaitMint(ctx, ledger.TxRef(attempt.MintTxRef))
	if err != nil {
		s.metrics.IncrementIssueFailure("mint_confirm")
		if errors.Is(err, ledger.ErrReverted) || errors.Is(err, ledger.ErrUnknownTx) {
			// A reverted or dropped mint created nothing; the next attempt submits anew.
			attempt.MintTxRef = ""
			if jerr := s.rewind(ctx, attempt, models.StageAssetsPublished); jerr != nil {
				return jerr
			}
			return s.incomplete(attempt, "custody ledger rejected the mint; retry the request", err)
		}
		return s.incomplete(attempt, "mint not yet confirmed; retry the request", err)
	}
	attempt.TokenID = receipt.TokenID
	return s.advance(ctx, attempt, models.StageMinted)
}

func (s *Service) persistIssued(ctx context.Context, cred *models.Credential, attempt *models.IssuanceAttempt, now time.Time) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.credentials.Insert(ctx, cred); err != nil {
			return err
		}
		completed := *attempt
		completed.Stage = models.StageCompleted
		completed.CredentialID = &cred.ID
		completed.UpdatedAt = now
		if err := s.journal.UpdateAttempt(ctx, &completed); err != nil {
			return err
		}
		return s.appendEvent(ctx, issuedEvent(cred, attempt.RequestID), now)
	})
	if err == nil {
		attempt.Stage = models.StageCompleted
		attempt.CredentialID = &cred.ID
		return nil
	}
	s.metrics.IncrementIssueFailure("persist")
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		s.logger.WarnContext(ctx, "minted token orphaned by duplicate serial",
			"issuance_request_id", attempt.RequestID,
			"token_id", attempt.TokenID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return duplicateSerial()
	}
	s.logger.ErrorContext(ctx, "minted credential not persisted",
		"issuance_request_id", attempt.RequestID,
		"token_id", attempt.TokenID,
		"mint_tx_ref", attempt.MintTxRef,
		"error", err,
	)
	return s.incomplete(attempt, "credential minted but not saved; retry the request", err)
}

func (s *Service) advance(ctx context.Context, attempt *models.IssuanceAttempt, stage models.IssuanceStage) error {
	prev := attempt.Stage
	attempt.Stage = stage
	attempt.UpdatedAt = requestcontext.Now(ctx)
	if err := s.journal.UpdateAttempt(ctx, attempt); err != nil {
		attempt.Stage = prev
		return dErrors.Wrap(fmt.Errorf("journal %s: %w", stage, err), dErrors.CodeInternal, "failed to update issuance journal")
	}
	return nil
}

// rewind moves the journal back after a reverted mint. It is the only
// backwards transition.
func (s *Service) rewind(ctx context.Context, attempt *models.IssuanceAttempt, stage models.IssuanceStage) error {
	attempt.Stage = stage
	attempt.UpdatedAt = requestcontext.Now(ctx)
	if err := s.journal.UpdateAttempt(ctx, attempt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update issuance journal")
	}
	return nil
}

func duplicateSerial() error {
	return dErrors.New(dErrors.CodeConflict, "serial number already used by this institution")
}
