package service

import (
	"context"
	"errors"
	"time"

	"verichain/internal/credential/ledger"
	"verichain/internal/credential/models"
	"verichain/internal/credential/verifier"
	"verichain/internal/lockout"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/platform/tracer"
	"verichain/pkg/requestcontext"
)

// Claim outcomes recorded in metrics.
const (
	claimSucceeded          = "succeeded"
	claimIdempotent         = "idempotent"
	claimAlreadyClaimed     = "already_claimed"
	claimVerificationFailed = "verification_failed"
	claimNoAddress          = "no_linked_address"
	claimLedgerFailed       = "ledger_failed"
	claimPending            = "pending"
	claimLockedOut          = "locked_out"
)

// ClaimCommand asks to move a credential into the claimant's custody.
// TargetAddress is optional; the claimant's linked address is used otherwise.
type ClaimCommand struct {
	CredentialID  id.CredentialID
	ClaimantID    id.PrincipalID
	Serial        string
	Secret        string
	TargetAddress string
}

func (c *ClaimCommand) Validate() error {
	switch {
	case c.CredentialID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "credential id is required")
	case c.ClaimantID.IsNil():
		return dErrors.New(dErrors.CodeUnauthorized, "claimant is required")
	case verifier.NormalizeSerial(c.Serial) == "":
		return dErrors.New(dErrors.CodeValidation, "serial_number is required")
	case verifier.NormalizeSecret(c.Secret) == "":
		return dErrors.New(dErrors.CodeValidation, "secret_answer is required")
	}
	return nil
}

// Claim verifies the knowledge factors and transfers custody of the token to
// the claimant. At most one claim per credential is in flight: the rest wait
// on the credential lock and then see the committed result.
func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) (result *models.ClaimResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "credential.claim",
		tracer.String("credential_id", cmd.CredentialID.String()),
	)
	defer func() {
		span.End(err)
		s.metrics.ObserveClaim(start)
	}()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkAttempts(ctx, cmd); err != nil {
		return nil, err
	}
	var explicit *id.Address
	if cmd.TargetAddress != "" {
		addr, err := id.ParseAddress(cmd.TargetAddress)
		if err != nil {
			return nil, err
		}
		explicit = &addr
	}

	cred, err := s.findCredential(ctx, cmd.CredentialID)
	if err != nil {
		return nil, err
	}
	if cred.IsClaimed() {
		return s.claimedResult(ctx, cred, cmd)
	}

	key := claimLockKey(cmd.CredentialID)
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "credential is being claimed; retry later")
	}
	defer s.release(ctx, release, key)

	// Re-read under the lock: a concurrent claim may have committed.
	cred, err = s.findCredential(ctx, cmd.CredentialID)
	if err != nil {
		return nil, err
	}
	if !cred.IsClaimed() {
		if cred, err = s.settleOpenIntent(ctx, cred); err != nil {
			return nil, err
		}
	}
	if cred.IsClaimed() {
		return s.claimedResult(ctx, cred, cmd)
	}
	if err := s.verifyFactors(ctx, cred, cmd); err != nil {
		return nil, err
	}

	target, err := s.resolveTarget(ctx, cmd.ClaimantID, explicit)
	if err != nil {
		return nil, err
	}

	result, err = s.transfer(ctx, cred, cmd.ClaimantID, target)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementClaim(claimSucceeded)
	s.logger.InfoContext(ctx, "credential claimed",
		"credential_id", cred.ID,
		"principal_id", cmd.ClaimantID,
		"holder_address", target.Hex(),
		"transfer_tx_ref", result.TransferTxRef,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// claimedResult answers a claim on a claimed credential. Another claimant is
// refused outright; the holder gets the original result back, but only after
// passing the same factor check as a first claim.
func (s *Service) claimedResult(ctx context.Context, cred *models.Credential, cmd ClaimCommand) (*models.ClaimResult, error) {
	if !cred.IsClaimedBy(cmd.ClaimantID) {
		s.metrics.IncrementClaim(claimAlreadyClaimed)
		return nil, dErrors.New(dErrors.CodeConflict, "credential already claimed")
	}
	if err := s.verifyFactors(ctx, cred, cmd); err != nil {
		return nil, err
	}
	s.metrics.IncrementClaim(claimIdempotent)
	result := cred.ResultFor()
	result.AlreadyClaimed = true
	return result, nil
}

// verifyFactors checks both factors every time so timing does not reveal
// which one failed. A mismatch is an ordinary result, not an exception.
func (s *Service) verifyFactors(ctx context.Context, cred *models.Credential, cmd ClaimCommand) error {
	serialOK := s.hasher.Verify(verifier.NormalizeSerial(cmd.Serial), cred.SerialHash)
	secretOK := s.hasher.Verify(verifier.NormalizeSecret(cmd.Secret), cred.SecretHash)
	if serialOK && secretOK {
		if s.attempts != nil {
			if err := s.attempts.Clear(ctx, lockout.ScopeClaim, attemptSubject(cmd)); err != nil {
				s.logger.WarnContext(ctx, "failed to clear claim attempts", "credential_id", cred.ID, "error", err)
			}
		}
		return nil
	}
	s.metrics.IncrementClaim(claimVerificationFailed)
	s.logger.InfoContext(ctx, "claim verification failed",
		"credential_id", cred.ID,
		"principal_id", cmd.ClaimantID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.attempts != nil {
		if err := s.attempts.RecordFailure(ctx, lockout.ScopeClaim, attemptSubject(cmd)); err != nil {
			s.logger.WarnContext(ctx, "failed to record claim attempt", "credential_id", cred.ID, "error", err)
		}
	}
	return dErrors.New(dErrors.CodeVerificationFailed, "serial number or secret answer does not match")
}

// checkAttempts refuses a claimant who keeps guessing wrong on one credential.
// Counting per claimant stops a stranger from locking out the real holder.
func (s *Service) checkAttempts(ctx context.Context, cmd ClaimCommand) error {
	if s.attempts == nil {
		return nil
	}
	if err := s.attempts.Check(ctx, lockout.ScopeClaim, attemptSubject(cmd)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeTooManyAttempts) {
			s.metrics.IncrementClaim(claimLockedOut)
		}
		return err
	}
	return nil
}

func attemptSubject(cmd ClaimCommand) string {
	return cmd.CredentialID.String() + ":" + cmd.ClaimantID.String()
}

// resolveTarget picks the claim destination. The custody account is never a
// valid end recipient.
func (s *Service) resolveTarget(ctx context.Context, claimant id.PrincipalID, explicit *id.Address) (id.Address, error) {
	target := explicit
	if target == nil {
		linked, err := s.principals.LinkedAddress(ctx, claimant)
		if err != nil {
			return id.Address{}, err
		}
		if linked == nil {
			s.metrics.IncrementClaim(claimNoAddress)
			return id.Address{}, dErrors.New(dErrors.CodeBadRequest, "no custody address linked; link one or pass target_address")
		}
		target = linked
	}
	if *target == s.ledger.CustodyAccount() {
		s.metrics.IncrementClaim(claimNoAddress)
		return id.Address{}, dErrors.New(dErrors.CodeBadRequest, "target address is the custody account")
	}
	return *target, nil
}

// transfer records the intent, moves the token and commits. Must be called
// with the credential lock held.
func (s *Service) transfer(ctx context.Context, cred *models.Credential, claimant id.PrincipalID, target id.Address) (*models.ClaimResult, error) {
	now := requestcontext.Now(ctx)
	intent := &models.ClaimIntent{
		CredentialID:  cred.ID,
		ClaimantID:    claimant,
		TargetAddress: target,
		State:         models.IntentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.journal.PutIntent(ctx, intent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record claim intent")
	}

	ref, err := s.ledger.TransferCustody(ctx, cred.TokenID, s.ledger.CustodyAccount(), target)
	if err != nil && ref == "" {
		s.metrics.IncrementClaim(claimLedgerFailed)
		if ledger.IsRetrySafe(err) {
			s.setIntentState(ctx, intent, models.IntentAborted)
			return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "custody ledger unavailable; retry the claim")
		}
		// Outcome unknown and no reference: leave the intent for reconciliation.
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "custody transfer outcome unknown; it will be reconciled")
	}
	intent.TransferTxRef = ref.String()
	s.setIntentState(ctx, intent, models.IntentSubmitted)

	if err == nil {
		err = s.ledger.AwaitTransfer(ctx, ref)
	}
	if err != nil {
		return s.afterTransferFailure(ctx, cred, intent, err)
	}
	return s.commitClaim(ctx, cred, intent)
}

// afterTransferFailure decides from ledger truth whether a transfer that did
// not confirm cleanly actually moved custody. A revert with the token already
// at the target counts as success; any other revert aborts the intent.
func (s *Service) afterTransferFailure(ctx context.Context, cred *models.Credential, intent *models.ClaimIntent, cause error) (*models.ClaimResult, error) {
	owner, err := s.ledger.OwnerOf(ctx, cred.TokenID)
	if err == nil && owner == intent.TargetAddress {
		s.logger.WarnContext(ctx, "transfer not confirmed but custody already at target",
			"credential_id", cred.ID,
			"transfer_tx_ref", intent.TransferTxRef,
			"error", cause,
		)
		return s.commitClaim(ctx, cred, intent)
	}

	s.metrics.IncrementClaim(claimLedgerFailed)
	if errors.Is(cause, ledger.ErrReverted) && err == nil && owner == s.ledger.CustodyAccount() {
		s.setIntentState(ctx, intent, models.IntentAborted)
		return nil, dErrors.Wrap(cause, dErrors.CodeExternalService, "custody ledger rejected the transfer")
	}
	s.logger.WarnContext(ctx, "transfer outcome unknown; left for reconciliation",
		"credential_id", cred.ID,
		"transfer_tx_ref", intent.TransferTxRef,
		"error", cause,
	)
	return nil, dErrors.Wrap(cause, dErrors.CodeExternalService, "custody transfer submitted but not confirmed; it will be reconciled")
}

// commitClaim persists the claim keyed by credential id, guarded on the
// issued status, together with the intent and the outbox event.
func (s *Service) commitClaim(ctx context.Context, cred *models.Credential, intent *models.ClaimIntent) (*models.ClaimResult, error) {
	now := requestcontext.Now(ctx)
	claimed := *cred
	if err := claimed.MarkClaimed(intent.ClaimantID, intent.TargetAddress, intent.TransferTxRef, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply claim")
	}
	committed := *intent
	committed.State = models.IntentCommitted
	committed.UpdatedAt = now

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.credentials.CommitClaim(ctx, &claimed); err != nil {
			return err
		}
		if err := s.journal.PutIntent(ctx, &committed); err != nil {
			return err
		}
		return s.appendEvent(ctx, claimedEvent(&claimed), now)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "custody transferred but claim not committed",
			"credential_id", cred.ID,
			"transfer_tx_ref", intent.TransferTxRef,
			"error", err,
		)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, &dErrors.Error{Code: dErrors.CodeInconsistentState, Message: "credential changed during claim", Err: err}
		}
		return nil, &dErrors.Error{Code: dErrors.CodeInconsistentState, Message: "custody transferred but not yet recorded; it will be reconciled", Err: err}
	}
	*cred = claimed
	*intent = committed
	return claimed.ResultFor(), nil
}

func (s *Service) setIntentState(ctx context.Context, intent *models.ClaimIntent, state models.ClaimIntentState) {
	intent.State = state
	intent.UpdatedAt = requestcontext.Now(ctx)
	if err := s.journal.PutIntent(ctx, intent); err != nil {
		s.logger.ErrorContext(ctx, "failed to update claim intent",
			"credential_id", intent.CredentialID,
			"state", state,
			"error", err,
		)
	}
}

func (s *Service) findCredential(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	cred, err := s.credentials.FindByID(ctx, credentialID)
	if err != nil {
		return nil, wrapCredentialErr(err)
	}
	return cred, nil
}

// release frees a lock without the request's cancellation, so a timed-out
// request still lets go.
func (s *Service) release(ctx context.Context, release func(context.Context) error, key string) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
	}
}

func claimLockKey(credentialID id.CredentialID) string {
	return "claim:" + credentialID.String()
}

func wrapCredentialErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
}
