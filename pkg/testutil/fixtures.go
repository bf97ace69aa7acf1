package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"verichain/internal/authz"
	credmodels "verichain/internal/credential/models"
	instmodels "verichain/internal/institution/models"
	principalmodels "verichain/internal/principal/models"
	id "verichain/pkg/domain"
)

// TestIDs provides deterministic identifiers for tests.
var TestIDs = struct {
	InstitutionID1 id.InstitutionID
	InstitutionID2 id.InstitutionID
	IssuerID1      id.PrincipalID
	HolderID1      id.PrincipalID
	HolderID2      id.PrincipalID
	CredentialID1  id.CredentialID
	PublicID1      id.PublicID
}{
	InstitutionID1: id.InstitutionID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	InstitutionID2: id.InstitutionID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
	IssuerID1:      id.PrincipalID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	HolderID1:      id.PrincipalID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	HolderID2:      id.PrincipalID(uuid.MustParse("33333333-3333-3333-3333-333333333333")),
	CredentialID1:  id.CredentialID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	PublicID1:      id.PublicID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
}

// TestAddresses are well-known custody addresses.
var TestAddresses = struct {
	Custody common.Address
	Holder1 common.Address
	Holder2 common.Address
}{
	Custody: common.HexToAddress("0x000000000000000000000000000000000000c0de"),
	Holder1: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	Holder2: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
}

// InstitutionBuilder builds test institutions.
type InstitutionBuilder struct {
	inst *instmodels.Institution
}

func NewInstitutionBuilder() *InstitutionBuilder {
	now := time.Now()
	return &InstitutionBuilder{
		inst: &instmodels.Institution{
			ID:        id.InstitutionID(uuid.New()),
			Name:      "Universitas Contoh",
			Status:    instmodels.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *InstitutionBuilder) WithID(institutionID id.InstitutionID) *InstitutionBuilder {
	b.inst.ID = institutionID
	return b
}

func (b *InstitutionBuilder) WithName(name string) *InstitutionBuilder {
	b.inst.Name = name
	return b
}

func (b *InstitutionBuilder) Inactive() *InstitutionBuilder {
	b.inst.Status = instmodels.StatusInactive
	return b
}

func (b *InstitutionBuilder) Build() *instmodels.Institution {
	return b.inst
}

// PrincipalBuilder builds test principals. Defaults to an active holder.
type PrincipalBuilder struct {
	p *principalmodels.Principal
}

func NewPrincipalBuilder() *PrincipalBuilder {
	now := time.Now()
	pid := id.PrincipalID(uuid.New())
	return &PrincipalBuilder{
		p: &principalmodels.Principal{
			ID:           pid,
			Email:        fmt.Sprintf("principal-%s@example.org", pid.String()[:8]),
			FullName:     "Test Principal",
			PasswordHash: "not-a-real-hash",
			Role:         authz.RoleHolder,
			Status:       principalmodels.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

func (b *PrincipalBuilder) WithID(principalID id.PrincipalID) *PrincipalBuilder {
	b.p.ID = principalID
	return b
}

func (b *PrincipalBuilder) WithEmail(email string) *PrincipalBuilder {
	b.p.Email = email
	return b
}

// AsIssuer makes the principal an approved issuer of institutionID.
func (b *PrincipalBuilder) AsIssuer(institutionID id.InstitutionID) *PrincipalBuilder {
	b.p.Role = authz.RoleIssuer
	b.p.InstitutionID = &institutionID
	return b
}

func (b *PrincipalBuilder) AsAdmin(institutionID id.InstitutionID) *PrincipalBuilder {
	b.p.Role = authz.RoleAdmin
	b.p.InstitutionID = &institutionID
	return b
}

func (b *PrincipalBuilder) Pending() *PrincipalBuilder {
	b.p.Status = principalmodels.StatusPendingApproval
	return b
}

func (b *PrincipalBuilder) WithAddress(addr common.Address) *PrincipalBuilder {
	b.p.CustodyAddress = &addr
	return b
}

func (b *PrincipalBuilder) Build() *principalmodels.Principal {
	return b.p
}

// CredentialBuilder builds issued credentials with placeholder verifiers.
// Tests that exercise claims should set real hashes with WithVerifiers.
type CredentialBuilder struct {
	c *credmodels.Credential
}

var tokenSeq atomic.Uint64

func NewCredentialBuilder() *CredentialBuilder {
	seq := tokenSeq.Add(1)
	return &CredentialBuilder{
		c: &credmodels.Credential{
			ID:            id.CredentialID(uuid.New()),
			PublicID:      id.PublicID(uuid.New()),
			InstitutionID: TestIDs.InstitutionID1,
			IssuerID:      TestIDs.IssuerID1,
			Payload: credmodels.Payload{
				RecipientName: "Maria Santos",
				RecipientID:   "2024000123",
				Program:       "Informatics",
				DocumentType:  "diploma",
				IssueDate:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			},
			SerialFingerprint: "fp-" + uuid.NewString(),
			SerialHash:        "serial-hash",
			SecretHash:        "secret-hash",
			AssetPointer:      "asset://documents/placeholder",
			MetadataPointer:   "asset://metadata/placeholder",
			TokenID:           fmt.Sprintf("%d", seq),
			MintTxRef:         fmt.Sprintf("0xmint%d", seq),
			Status:            credmodels.StatusIssued,
			IssuedAt:          time.Now(),
		},
	}
}

func (b *CredentialBuilder) WithID(credID id.CredentialID) *CredentialBuilder {
	b.c.ID = credID
	return b
}

func (b *CredentialBuilder) WithInstitution(institutionID id.InstitutionID) *CredentialBuilder {
	b.c.InstitutionID = institutionID
	return b
}

func (b *CredentialBuilder) WithIssuer(issuerID id.PrincipalID) *CredentialBuilder {
	b.c.IssuerID = issuerID
	return b
}

func (b *CredentialBuilder) WithRecipient(name, recipientID string) *CredentialBuilder {
	b.c.Payload.RecipientName = name
	b.c.Payload.RecipientID = recipientID
	return b
}

func (b *CredentialBuilder) WithFingerprint(fp string) *CredentialBuilder {
	b.c.SerialFingerprint = fp
	return b
}

func (b *CredentialBuilder) WithVerifiers(serialHash, secretHash string) *CredentialBuilder {
	b.c.SerialHash = serialHash
	b.c.SecretHash = secretHash
	return b
}

func (b *CredentialBuilder) WithToken(tokenID string) *CredentialBuilder {
	b.c.TokenID = tokenID
	return b
}

func (b *CredentialBuilder) IssuedAt(t time.Time) *CredentialBuilder {
	b.c.IssuedAt = t
	return b
}

// ClaimedBy moves the credential to claimed.
func (b *CredentialBuilder) ClaimedBy(holder id.PrincipalID, addr common.Address) *CredentialBuilder {
	if err := b.c.MarkClaimed(holder, addr, "0xtransfer"+b.c.TokenID, time.Now()); err != nil {
		panic(err)
	}
	return b
}

func (b *CredentialBuilder) Build() *credmodels.Credential {
	return b.c
}
