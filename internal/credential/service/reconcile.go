package service

import (
	"context"
	"errors"
	"time"

	"verichain/internal/credential/ledger"
	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/requestcontext"
)

// ReconcileAction is what reconciliation did with a claim intent.
type ReconcileAction string

const (
	ReconcileNone      ReconcileAction = "none"
	ReconcileCommitted ReconcileAction = "committed"
	ReconcileAborted   ReconcileAction = "aborted"
	ReconcilePending   ReconcileAction = "pending"
	ReconcileManual    ReconcileAction = "manual"
)

// Reconcile settles the open claim intent of a credential from ledger truth.
// It never submits a transfer.
func (s *Service) Reconcile(ctx context.Context, credentialID id.CredentialID) (ReconcileAction, error) {
	key := claimLockKey(credentialID)
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return ReconcileNone, dErrors.Wrap(err, dErrors.CodeTimeout, "credential is busy")
	}
	defer s.release(ctx, release, key)

	cred, err := s.findCredential(ctx, credentialID)
	if err != nil {
		return ReconcileNone, err
	}
	intent, err := s.openIntent(ctx, credentialID)
	if err != nil || intent == nil {
		return ReconcileNone, err
	}
	action, err := s.reconcileIntent(ctx, cred, intent)
	s.metrics.IncrementReconcile(string(action))
	return action, err
}

// settleOpenIntent resolves a leftover intent before a new claim may start.
// Returns the credential as it stands afterwards. A transfer whose outcome is
// still unknown blocks new claims.
func (s *Service) settleOpenIntent(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	intent, err := s.openIntent(ctx, cred.ID)
	if err != nil || intent == nil {
		return cred, err
	}
	action, err := s.reconcileIntent(ctx, cred, intent)
	s.metrics.IncrementReconcile(string(action))
	if err != nil {
		return nil, err
	}
	switch action {
	case ReconcilePending:
		s.metrics.IncrementClaim(claimPending)
		return nil, dErrors.New(dErrors.CodeConflict, "a custody transfer for this credential is still being confirmed; retry later")
	case ReconcileCommitted:
		return s.findCredential(ctx, cred.ID)
	}
	return cred, nil
}

func (s *Service) openIntent(ctx context.Context, credentialID id.CredentialID) (*models.ClaimIntent, error) {
	intent, err := s.journal.GetIntent(ctx, credentialID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim intent")
	}
	if !intent.State.IsOpen() {
		return nil, nil
	}
	return intent, nil
}

// reconcileIntent must be called with the credential lock held.
func (s *Service) reconcileIntent(ctx context.Context, cred *models.Credential, intent *models.ClaimIntent) (ReconcileAction, error) {
	logAttrs := []any{
		"credential_id", cred.ID,
		"transfer_tx_ref", intent.TransferTxRef,
		"intent_state", intent.State,
		"request_id", requestcontext.RequestID(ctx),
	}

	if cred.IsClaimed() {
		// Committed earlier; only the intent update was lost.
		s.setIntentState(ctx, intent, models.IntentCommitted)
		return ReconcileCommitted, nil
	}

	owner, err := s.ledger.OwnerOf(ctx, cred.TokenID)
	if err != nil {
		return ReconcilePending, dErrors.Wrap(err, dErrors.CodeExternalService, "custody ledger unavailable; cannot reconcile claim")
	}

	switch owner {
	case intent.TargetAddress:
		if intent.TransferTxRef == "" {
			s.logger.ErrorContext(ctx, "custody moved without a recorded transfer reference", logAttrs...)
			return ReconcileManual, dErrors.New(dErrors.CodeInconsistentState, "custody moved but the transfer reference is unknown")
		}
		if _, err := s.commitClaim(ctx, cred, intent); err != nil {
			return ReconcilePending, err
		}
		s.logger.InfoContext(ctx, "claim reconciled from ledger", logAttrs...)
		return ReconcileCommitted, nil

	case s.ledger.CustodyAccount():
		if intent.TransferTxRef == "" {
			s.setIntentState(ctx, intent, models.IntentAborted)
			s.logger.InfoContext(ctx, "unsubmitted claim intent aborted", logAttrs...)
			return ReconcileAborted, nil
		}
		return s.reconcileSubmitted(ctx, intent, logAttrs)

	default:
		s.logger.ErrorContext(ctx, "token held by an unexpected account",
			append(logAttrs, "owner", owner.Hex())...)
		return ReconcileManual, dErrors.New(dErrors.CodeInconsistentState, "token is held by an unexpected account")
	}
}

// reconcileSubmitted handles a submitted transfer while the token still sits
// in custody: a revert or an unknown transaction aborts, anything else waits.
func (s *Service) reconcileSubmitted(ctx context.Context, intent *models.ClaimIntent, logAttrs []any) (ReconcileAction, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.reconcileWait)
	defer cancel()

	err := s.ledger.AwaitTransfer(waitCtx, ledger.TxRef(intent.TransferTxRef))
	switch {
	case err == nil:
		// Confirmed yet custody still held: someone moved it back.
		s.logger.ErrorContext(ctx, "confirmed transfer but token back in custody", logAttrs...)
		return ReconcileManual, dErrors.New(dErrors.CodeInconsistentState, "ledger shows a confirmed transfer but custody was not moved")
	case errors.Is(err, ledger.ErrReverted), errors.Is(err, ledger.ErrUnknownTx):
		s.setIntentState(ctx, intent, models.IntentAborted)
		s.logger.InfoContext(ctx, "failed transfer aborted", append(logAttrs, "error", err)...)
		return ReconcileAborted, nil
	default:
		return ReconcilePending, nil
	}
}

// OpenIntents lists claim intents untouched for longer than olderThan.
func (s *Service) OpenIntents(ctx context.Context, olderThan time.Duration, limit int) ([]*models.ClaimIntent, error) {
	intents, err := s.journal.ListOpenIntents(ctx, requestcontext.Now(ctx).Add(-olderThan), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claim intents")
	}
	return intents, nil
}

// StalledIssuances lists incomplete issuance attempts untouched for longer
// than olderThan. They need the client's retry to finish.
func (s *Service) StalledIssuances(ctx context.Context, olderThan time.Duration, limit int) ([]*models.IssuanceAttempt, error) {
	attempts, err := s.journal.ListStalledAttempts(ctx, requestcontext.Now(ctx).Add(-olderThan), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuance attempts")
	}
	return attempts, nil
}
