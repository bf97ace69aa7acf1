// Package seeder loads demo data into a development deployment: one
// institution with an admin, an approved issuer, two holders and a couple of
// issued credentials ready to be claimed.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verichain/internal/authz"
	credmodels "verichain/internal/credential/models"
	credservice "verichain/internal/credential/service"
	instmodels "verichain/internal/institution/models"
	pmodels "verichain/internal/principal/models"
	pservice "verichain/internal/principal/service"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
)

// DemoPassword is shared by every seeded account.
const DemoPassword = "demo-password"

// ErrAlreadySeeded means the demo institution exists, typically because a
// persistent database survived a restart.
var ErrAlreadySeeded = errors.New("demo data already present")

// demoPDF is the smallest body that still sniffs as application/pdf.
var demoPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type Institutions interface {
	CreateInstitution(ctx context.Context, name string) (*instmodels.Institution, error)
}

type Principals interface {
	Register(ctx context.Context, cmd pservice.RegisterCommand) (*pmodels.Principal, error)
	CreateAdmin(ctx context.Context, institutionID id.InstitutionID, email, password, fullName string) (*pmodels.Principal, error)
	ApproveIssuer(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) (*pmodels.Principal, error)
	LinkAddress(ctx context.Context, principalID id.PrincipalID, rawAddress string) (*pmodels.Principal, error)
}

type Credentials interface {
	Issue(ctx context.Context, cmd credservice.IssueCommand) (*credmodels.Credential, error)
}

// Seeder goes through the services, so seeded data obeys the same rules as
// data created over HTTP.
type Seeder struct {
	institutions Institutions
	principals   Principals
	credentials  Credentials
	logger       *slog.Logger
}

func New(institutions Institutions, principals Principals, credentials Credentials, logger *slog.Logger) *Seeder {
	return &Seeder{
		institutions: institutions,
		principals:   principals,
		credentials:  credentials,
		logger:       logger,
	}
}

// Result lists what was created so callers can print it or assert on it.
type Result struct {
	Institution *instmodels.Institution
	Admin       *pmodels.Principal
	Issuer      *pmodels.Principal
	Holders     []*pmodels.Principal
	Credentials []*credmodels.Credential
}

func (s *Seeder) SeedAll(ctx context.Context) (*Result, error) {
	s.logger.InfoContext(ctx, "seeding demo data")

	inst, err := s.institutions.CreateInstitution(ctx, "Universitas Demo")
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil, ErrAlreadySeeded
	}
	if err != nil {
		return nil, fmt.Errorf("seed institution: %w", err)
	}
	res := &Result{Institution: inst}

	if res.Admin, err = s.principals.CreateAdmin(ctx, inst.ID, "admin@demo.verichain.test", DemoPassword, "Demo Admin"); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if res.Issuer, err = s.seedIssuer(ctx, inst.ID); err != nil {
		return nil, err
	}
	if res.Holders, err = s.seedHolders(ctx); err != nil {
		return nil, err
	}
	if res.Credentials, err = s.seedCredentials(ctx, inst.ID, res.Issuer.ID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "demo data seeded",
		"institution_id", inst.ID,
		"institution", inst.Name,
		"password", DemoPassword,
		"credentials", len(res.Credentials),
	)
	return res, nil
}

func (s *Seeder) seedIssuer(ctx context.Context, institutionID id.InstitutionID) (*pmodels.Principal, error) {
	issuer, err := s.principals.Register(ctx, pservice.RegisterCommand{
		Email:         "registrar@demo.verichain.test",
		Password:      DemoPassword,
		FullName:      "Demo Registrar",
		Role:          authz.RoleIssuer,
		InstitutionID: &institutionID,
	})
	if err != nil {
		return nil, fmt.Errorf("seed issuer: %w", err)
	}
	if issuer, err = s.principals.ApproveIssuer(ctx, institutionID, issuer.ID); err != nil {
		return nil, fmt.Errorf("approve issuer: %w", err)
	}
	return issuer, nil
}

func (s *Seeder) seedHolders(ctx context.Context) ([]*pmodels.Principal, error) {
	demoHolders := []struct {
		email   string
		name    string
		address string
	}{
		{"siti@demo.verichain.test", "Siti Rahma", "0x1000000000000000000000000000000000000001"},
		{"budi@demo.verichain.test", "Budi Santoso", ""},
	}

	holders := make([]*pmodels.Principal, 0, len(demoHolders))
	for _, h := range demoHolders {
		p, err := s.principals.Register(ctx, pservice.RegisterCommand{
			Email:    h.email,
			Password: DemoPassword,
			FullName: h.name,
			Role:     authz.RoleHolder,
		})
		if err != nil {
			return nil, fmt.Errorf("seed holder %s: %w", h.email, err)
		}
		if h.address != "" {
			if p, err = s.principals.LinkAddress(ctx, p.ID, h.address); err != nil {
				return nil, fmt.Errorf("link address for %s: %w", h.email, err)
			}
		}
		holders = append(holders, p)
	}
	return holders, nil
}

func (s *Seeder) seedCredentials(ctx context.Context, institutionID id.InstitutionID, issuerID id.PrincipalID) ([]*credmodels.Credential, error) {
	demoCredentials := []struct {
		recipient   string
		recipientID string
		program     string
		serial      string
		secret      string
	}{
		{"Siti Rahma", "3201010101900001", "Teknik Informatika", "DEMO-2024-0001", "merapi"},
		{"Budi Santoso", "3201010101900002", "Sistem Informasi", "DEMO-2024-0002", "bromo"},
	}

	issued := make([]*credmodels.Credential, 0, len(demoCredentials))
	for _, c := range demoCredentials {
		cred, err := s.credentials.Issue(ctx, credservice.IssueCommand{
			RequestID:     "seed-" + c.serial,
			InstitutionID: institutionID,
			IssuerID:      issuerID,
			Payload: credmodels.Payload{
				RecipientName: c.recipient,
				RecipientID:   c.recipientID,
				Program:       c.program,
				DocumentType:  "ijazah",
				IssueDate:     time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC),
			},
			Serial: c.serial,
			Secret: c.secret,
			Asset:  demoPDF,
		})
		if err != nil {
			return nil, fmt.Errorf("seed credential %s: %w", c.serial, err)
		}
		s.logger.InfoContext(ctx, "demo credential ready to claim",
			"public_id", cred.PublicID,
			"recipient", c.recipient,
			"serial_number", c.serial,
			"secret_answer", c.secret,
		)
		issued = append(issued, cred)
	}
	return issued, nil
}
