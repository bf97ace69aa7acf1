package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verichain/internal/credential/assets"
	"verichain/internal/credential/ledger"
	"verichain/internal/credential/lock"
	"verichain/internal/credential/models"
	"verichain/internal/credential/service/mocks"
	credstore "verichain/internal/credential/store/credential"
	"verichain/internal/credential/store/journal"
	"verichain/internal/credential/verifier"
	pmodels "verichain/internal/principal/models"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/platform/tx"
	"verichain/pkg/requestcontext"
	"verichain/pkg/testutil"
)

// flakyStore fails selected writes of an otherwise working store.
type flakyStore struct {
	*credstore.InMemory
	insertErr error
	commitErr error
}

func (f *flakyStore) Insert(ctx context.Context, c *models.Credential) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.InMemory.Insert(ctx, c)
}

func (f *flakyStore) CommitClaim(ctx context.Context, c *models.Credential) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	return f.InMemory.CommitClaim(ctx, c)
}

// flakyJournal refuses to record one stage.
type flakyJournal struct {
	*journal.InMemory
	failStage models.IssuanceStage
}

func (f *flakyJournal) UpdateAttempt(ctx context.Context, a *models.IssuanceAttempt) error {
	if f.failStage != "" && a.Stage == f.failStage {
		return errors.New("journal write failed")
	}
	return f.InMemory.UpdateAttempt(ctx, a)
}

type FailureSuite struct {
	suite.Suite
	ctx          context.Context
	ctrl         *gomock.Controller
	ledger       *mocks.MockLedger
	principals   *mocks.MockPrincipals
	institutions *mocks.MockInstitutions
	assets       *assets.Memory
	credentials  *flakyStore
	journal      *flakyJournal
	hasher       *verifier.Verifier
	service      *Service
}

func TestFailureSuite(t *testing.T) {
	suite.Run(t, new(FailureSuite))
}

func (s *FailureSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
	s.ctrl = gomock.NewController(s.T())

	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.ledger.EXPECT().CustodyAccount().Return(testutil.TestAddresses.Custody).AnyTimes()

	s.principals = mocks.NewMockPrincipals(s.ctrl)
	s.principals.EXPECT().
		RequireActiveIssuer(gomock.Any(), testutil.TestIDs.IssuerID1, testutil.TestIDs.InstitutionID1).
		Return(&pmodels.Principal{ID: testutil.TestIDs.IssuerID1}, nil).
		AnyTimes()
	holder := testutil.TestAddresses.Holder1
	s.principals.EXPECT().LinkedAddress(gomock.Any(), testutil.TestIDs.HolderID1).Return(&holder, nil).AnyTimes()

	s.institutions = mocks.NewMockInstitutions(s.ctrl)
	inst := testutil.NewInstitutionBuilder().WithID(testutil.TestIDs.InstitutionID1).Build()
	s.institutions.EXPECT().RequireActive(gomock.Any(), testutil.TestIDs.InstitutionID1).Return(inst, nil).AnyTimes()
	s.institutions.EXPECT().GetInstitution(gomock.Any(), testutil.TestIDs.InstitutionID1).Return(inst, nil).AnyTimes()

	s.assets = assets.NewMemory()
	s.credentials = &flakyStore{InMemory: credstore.NewInMemory()}
	s.journal = &flakyJournal{InMemory: journal.NewInMemory()}
	s.hasher = verifier.New(verifier.WithParams(fastParams))
	s.service = s.newService(s.assets)
}

func (s *FailureSuite) newService(assetStore AssetStore) *Service {
	fingerprints, err := verifier.NewFingerprinter([]byte("0123456789abcdef0123456789abcdef"))
	s.Require().NoError(err)
	return New(Deps{
		Credentials:  s.credentials,
		Journal:      s.journal,
		Tx:           tx.NewMemory(),
		Ledger:       s.ledger,
		Assets:       assetStore,
		Hasher:       s.hasher,
		Fingerprints: fingerprints,
		Principals:   s.principals,
		Institutions: s.institutions,
		Locker:       lock.NewLocal(),
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithReconcileWait(10*time.Millisecond),
	)
}

func (s *FailureSuite) issueCommand() IssueCommand {
	return IssueCommand{
		RequestID:     "req-1",
		InstitutionID: testutil.TestIDs.InstitutionID1,
		IssuerID:      testutil.TestIDs.IssuerID1,
		Payload: models.Payload{
			RecipientName: "Maria Santos",
			DocumentType:  "ijazah",
			IssueDate:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		Serial: "S-001",
		Secret: "Maria",
		Asset:  []byte("%PDF-1.7"),
	}
}

func (s *FailureSuite) requireIncomplete(err error, stage models.IssuanceStage) *IncompleteError {
	var incomplete *IncompleteError
	s.Require().ErrorAs(err, &incomplete)
	s.Equal(stage, incomplete.Stage)
	s.Equal("req-1", incomplete.RequestID)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	return incomplete
}

func (s *FailureSuite) attemptStage() models.IssuanceStage {
	a, err := s.journal.GetAttempt(s.ctx, "req-1")
	s.Require().NoError(err)
	return a.Stage
}

// seedCredential stores an issued credential for serial S-001 and secret Maria.
func (s *FailureSuite) seedCredential() *models.Credential {
	serialHash, err := s.hasher.Hash(verifier.NormalizeSerial("S-001"))
	s.Require().NoError(err)
	secretHash, err := s.hasher.Hash(verifier.NormalizeSecret("Maria"))
	s.Require().NoError(err)
	cred := testutil.NewCredentialBuilder().WithToken("7").WithVerifiers(serialHash, secretHash).Build()
	s.Require().NoError(s.credentials.InMemory.Insert(s.ctx, cred))
	return cred
}

func (s *FailureSuite) claimCmd(cred *models.Credential) ClaimCommand {
	return ClaimCommand{
		CredentialID: cred.ID,
		ClaimantID:   testutil.TestIDs.HolderID1,
		Serial:       "S-001",
		Secret:       "Maria",
	}
}

func (s *FailureSuite) intentState(cred *models.Credential) models.ClaimIntentState {
	in, err := s.journal.GetIntent(s.ctx, cred.ID)
	s.Require().NoError(err)
	return in.State
}

func (s *FailureSuite) TestIssue_AssetStoreDownMintsNothing() {
	store := mocks.NewMockAssetStore(s.ctrl)
	store.EXPECT().Put(gomock.Any(), assetPrefix, assets.ContentTypePDF, gomock.Any()).Return("", errors.New("bucket unreachable"))
	svc := s.newService(store)

	_, err := svc.Issue(s.ctx, s.issueCommand())
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Equal(models.StageStarted, s.attemptStage())
}

func (s *FailureSuite) TestIssue_MintNotSubmittedRetriesWithoutRepublishing() {
	gomock.InOrder(
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).
			Return(ledger.TxRef(""), fmt.Errorf("%w: nonce", ledger.ErrNotSubmitted)),
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
			Return(ledger.MintReceipt{TokenID: "42", TxRef: "0xmint1"}, nil),
	)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageAssetsPublished)

	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("42", cred.TokenID)
	s.Equal(2, s.assets.PutCount())
}

func (s *FailureSuite) TestIssue_MintUnconfirmedResumesByRef() {
	s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).
		Return(ledger.TxRef("0xmint1"), fmt.Errorf("%w: send timed out", ledger.ErrUnconfirmed)).
		Times(1)
	s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
		Return(ledger.MintReceipt{TokenID: "42", TxRef: "0xmint1"}, nil).
		Times(1)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	incomplete := s.requireIncomplete(err, models.StageMintSubmitted)
	s.Equal("0xmint1", incomplete.MintTxRef)
	s.NotEmpty(incomplete.MetadataPointer)

	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("0xmint1", cred.MintTxRef)
}

func (s *FailureSuite) TestIssue_ConfirmationTimeoutResumes() {
	s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil).Times(1)
	gomock.InOrder(
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
			Return(ledger.MintReceipt{}, fmt.Errorf("%w: deadline", ledger.ErrUnconfirmed)),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
			Return(ledger.MintReceipt{TokenID: "42", TxRef: "0xmint1"}, nil),
	)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageMintSubmitted)

	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("42", cred.TokenID)
}

func (s *FailureSuite) TestIssue_RevertedMintRewinds() {
	gomock.InOrder(
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
			Return(ledger.MintReceipt{}, fmt.Errorf("%w: out of gas", ledger.ErrReverted)),
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint2"), nil),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint2")).
			Return(ledger.MintReceipt{TokenID: "9", TxRef: "0xmint2"}, nil),
	)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	incomplete := s.requireIncomplete(err, models.StageAssetsPublished)
	s.Empty(incomplete.MintTxRef)
	s.Equal(models.StageAssetsPublished, s.attemptStage())

	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("9", cred.TokenID)
	s.Equal("0xmint2", cred.MintTxRef)
}

func (s *FailureSuite) TestIssue_DroppedMintRewinds() {
	gomock.InOrder(
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).
			Return(ledger.TxRef("0xmint1"), fmt.Errorf("%w: send timed out", ledger.ErrUnconfirmed)),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
			Return(ledger.MintReceipt{}, fmt.Errorf("%w: 0xmint1 was dropped", ledger.ErrUnknownTx)),
		s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint2"), nil),
		s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint2")).
			Return(ledger.MintReceipt{TokenID: "9", TxRef: "0xmint2"}, nil),
	)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageMintSubmitted)

	_, err = s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageAssetsPublished)
	s.Equal(models.StageAssetsPublished, s.attemptStage())

	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("0xmint2", cred.MintTxRef)
}

func (s *FailureSuite) TestIssue_PersistFailureResumesWithoutMinting() {
	s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil).Times(1)
	s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
		Return(ledger.MintReceipt{TokenID: "42", TxRef: "0xmint1"}, nil).
		Times(1)
	s.credentials.insertErr = errors.New("connection reset")

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageMinted)

	s.credentials.insertErr = nil
	cred, err := s.service.Issue(s.ctx, s.issueCommand())
	s.Require().NoError(err)
	s.Equal("42", cred.TokenID)
	s.Equal(models.StageCompleted, s.attemptStage())
}

func (s *FailureSuite) TestIssue_SerialMintingUnderOtherKeyIsRefused() {
	s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil).Times(1)
	s.ledger.EXPECT().AwaitMint(gomock.Any(), ledger.TxRef("0xmint1")).
		Return(ledger.MintReceipt{}, fmt.Errorf("%w: deadline", ledger.ErrUnconfirmed)).
		Times(1)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.requireIncomplete(err, models.StageMintSubmitted)

	other := s.issueCommand()
	other.RequestID = "req-2"
	_, err = s.service.Issue(s.ctx, other)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	_, err = s.journal.GetAttempt(s.ctx, "req-2")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *FailureSuite) TestIssue_UnjournaledMintIsInconsistent() {
	s.journal.failStage = models.StageMintSubmitted
	s.ledger.EXPECT().MintToCustody(gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xmint1"), nil).Times(1)

	_, err := s.service.Issue(s.ctx, s.issueCommand())
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistentState))
}

func (s *FailureSuite) TestClaim_TransferNotSubmittedAbortsIntent() {
	cred := s.seedCredential()
	s.ledger.EXPECT().TransferCustody(gomock.Any(), "7", testutil.TestAddresses.Custody, testutil.TestAddresses.Holder1).
		Return(ledger.TxRef(""), fmt.Errorf("%w: estimate gas", ledger.ErrNotSubmitted))

	_, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Equal(models.IntentAborted, s.intentState(cred))
	s.Equal(models.StatusIssued, s.mustFind(cred).Status)
}

func (s *FailureSuite) TestClaim_RevertWithTokenInCustodyAborts() {
	cred := s.seedCredential()
	s.ledger.EXPECT().TransferCustody(gomock.Any(), "7", gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xt1"), nil)
	s.ledger.EXPECT().AwaitTransfer(gomock.Any(), ledger.TxRef("0xt1")).Return(fmt.Errorf("%w: not owner", ledger.ErrReverted))
	s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Custody, nil)

	_, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Equal(models.IntentAborted, s.intentState(cred))
	s.Equal(models.StatusIssued, s.mustFind(cred).Status)
}

func (s *FailureSuite) TestClaim_RevertWithTokenAtTargetCommits() {
	cred := s.seedCredential()
	s.ledger.EXPECT().TransferCustody(gomock.Any(), "7", gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xt1"), nil)
	s.ledger.EXPECT().AwaitTransfer(gomock.Any(), ledger.TxRef("0xt1")).Return(fmt.Errorf("%w: replaced", ledger.ErrReverted))
	s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Holder1, nil)

	res, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.Require().NoError(err)
	s.Equal("0xt1", res.TransferTxRef)
	s.Equal(models.StatusClaimed, s.mustFind(cred).Status)
	s.Equal(models.IntentCommitted, s.intentState(cred))
}

func (s *FailureSuite) TestClaim_UnconfirmedTransferBlocksThenReconciles() {
	cred := s.seedCredential()
	s.ledger.EXPECT().TransferCustody(gomock.Any(), "7", gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xt1"), nil).Times(1)
	gomock.InOrder(
		s.ledger.EXPECT().AwaitTransfer(gomock.Any(), ledger.TxRef("0xt1")).Return(ledger.ErrUnconfirmed),
		s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Custody, nil),
		// second claim: reconciliation finds the transfer still in flight
		s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Custody, nil),
		s.ledger.EXPECT().AwaitTransfer(gomock.Any(), ledger.TxRef("0xt1")).Return(ledger.ErrUnconfirmed),
		// background reconcile after it lands
		s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Holder1, nil),
	)

	_, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Equal(models.IntentSubmitted, s.intentState(cred))

	_, err = s.service.Claim(s.ctx, s.claimCmd(cred))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	action, err := s.service.Reconcile(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal(ReconcileCommitted, action)

	res, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.Require().NoError(err)
	s.True(res.AlreadyClaimed)
	s.Equal("0xt1", res.TransferTxRef)
}

func (s *FailureSuite) TestClaim_CommitFailureIsInconsistentUntilReconciled() {
	cred := s.seedCredential()
	s.credentials.commitErr = errors.New("connection reset")
	s.ledger.EXPECT().TransferCustody(gomock.Any(), "7", gomock.Any(), gomock.Any()).Return(ledger.TxRef("0xt1"), nil)
	s.ledger.EXPECT().AwaitTransfer(gomock.Any(), ledger.TxRef("0xt1")).Return(nil)

	_, err := s.service.Claim(s.ctx, s.claimCmd(cred))
	s.True(dErrors.HasCode(err, dErrors.CodeInconsistentState))
	s.Equal(models.StatusIssued, s.mustFind(cred).Status)
	s.Equal(models.IntentSubmitted, s.intentState(cred))

	s.credentials.commitErr = nil
	s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Holder1, nil)
	action, err := s.service.Reconcile(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal(ReconcileCommitted, action)
	s.Equal(models.StatusClaimed, s.mustFind(cred).Status)
}

func (s *FailureSuite) TestReconcile_LedgerDown() {
	cred := s.seedCredential()
	s.Require().NoError(s.journal.PutIntent(s.ctx, &models.ClaimIntent{
		CredentialID:  cred.ID,
		ClaimantID:    testutil.TestIDs.HolderID1,
		TargetAddress: testutil.TestAddresses.Holder1,
		TransferTxRef: "0xt1",
		State:         models.IntentSubmitted,
	}))
	s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Custody, ledger.ErrUnavailable)

	_, err := s.service.Reconcile(s.ctx, cred.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeExternalService))
	s.Equal(models.IntentSubmitted, s.intentState(cred))
}

func (s *FailureSuite) TestVerify_LedgerDown() {
	cred := s.seedCredential()
	s.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return(testutil.TestAddresses.Custody, ledger.ErrUnavailable)

	v, err := s.service.Verify(s.ctx, cred.PublicID)
	s.Require().NoError(err)
	s.False(v.OnChain.Available)
	s.False(v.OnChain.Consistent)
}

func (s *FailureSuite) mustFind(cred *models.Credential) *models.Credential {
	c, err := s.credentials.FindByID(s.ctx, cred.ID)
	s.Require().NoError(err)
	return c
}
