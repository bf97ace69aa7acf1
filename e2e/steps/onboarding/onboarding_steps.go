package onboarding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

const password = "correct-horse-battery"

// TestContext is the part of the scenario context these steps use.
type TestContext interface {
	POST(path string, body any) error
	AdminPOST(path string, body any) error
	AuthPOST(actor, path string, body any) error
	AuthPUT(actor, path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Unique(s string) string
	SetInstitution(id, name string)
	Institution() (string, string)
	SetToken(actor, token string)
	SetPrincipalID(actor, id string)
	PrincipalID(actor string) string
}

// RegisterSteps registers institution and account setup steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &onboardingSteps{tc: tc}

	ctx.Step(`^an institution named "([^"]*)"$`, steps.institutionNamed)
	ctx.Step(`^the institution is deactivated$`, steps.deactivateInstitution)
	ctx.Step(`^an institution admin "([^"]*)"$`, steps.institutionAdmin)
	ctx.Step(`^a pending issuer "([^"]*)"$`, steps.pendingIssuer)
	ctx.Step(`^an approved issuer "([^"]*)"$`, steps.approvedIssuer)
	ctx.Step(`^a holder "([^"]*)" with wallet "([^"]*)"$`, steps.holderWithWallet)
	ctx.Step(`^a holder "([^"]*)" without a wallet$`, steps.holderWithoutWallet)
	ctx.Step(`^"([^"]*)" approves issuer "([^"]*)"$`, steps.approve)
	ctx.Step(`^"([^"]*)" links wallet "([^"]*)"$`, steps.linkWallet)
	ctx.Step(`^"([^"]*)" tries to log in$`, steps.attemptLogin)
	ctx.Step(`^"([^"]*)" logs in$`, steps.logIn)
}

type onboardingSteps struct {
	tc TestContext
}

func email(tc TestContext, actor string) string {
	return strings.ToLower(tc.Unique(actor)) + "@example.test"
}

func (s *onboardingSteps) expect(status int, action string) error {
	if got := s.tc.GetLastResponseStatus(); got != status {
		return fmt.Errorf("%s: expected status %d but got %d\nResponse: %s", action, status, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *onboardingSteps) field(name string) (string, error) {
	v, err := s.tc.GetResponseField(name)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is not a string", name)
	}
	return str, nil
}

func (s *onboardingSteps) institutionNamed(ctx context.Context, name string) error {
	unique := s.tc.Unique(name)
	if err := s.tc.AdminPOST("/admin/institutions", map[string]string{"name": unique}); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated, "create institution"); err != nil {
		return err
	}
	instID, err := s.field("id")
	if err != nil {
		return err
	}
	s.tc.SetInstitution(instID, unique)
	return nil
}

func (s *onboardingSteps) deactivateInstitution(ctx context.Context) error {
	instID, _ := s.tc.Institution()
	if err := s.tc.AdminPOST("/admin/institutions/"+instID+"/deactivate", map[string]string{}); err != nil {
		return err
	}
	return s.expect(http.StatusOK, "deactivate institution")
}

func (s *onboardingSteps) institutionAdmin(ctx context.Context, actor string) error {
	instID, _ := s.tc.Institution()
	if err := s.tc.AdminPOST("/admin/institutions/"+instID+"/admins", map[string]string{
		"email":     email(s.tc, actor),
		"password":  password,
		"full_name": actor,
	}); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated, "create admin"); err != nil {
		return err
	}
	return s.login(actor)
}

func (s *onboardingSteps) register(actor, role string) error {
	body := map[string]string{
		"email":     email(s.tc, actor),
		"password":  password,
		"full_name": actor,
		"role":      role,
	}
	if role == "issuer" {
		body["institution_id"], _ = s.tc.Institution()
	}
	if err := s.tc.POST("/auth/register", body); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated, "register "+actor); err != nil {
		return err
	}
	principalID, err := s.field("id")
	if err != nil {
		return err
	}
	s.tc.SetPrincipalID(actor, principalID)
	return nil
}

func (s *onboardingSteps) attemptLogin(ctx context.Context, actor string) error {
	return s.tc.POST("/auth/login", map[string]string{
		"email":    email(s.tc, actor),
		"password": password,
	})
}

func (s *onboardingSteps) login(actor string) error {
	if err := s.attemptLogin(context.Background(), actor); err != nil {
		return err
	}
	if err := s.expect(http.StatusOK, "login "+actor); err != nil {
		return err
	}
	token, err := s.field("access_token")
	if err != nil {
		return err
	}
	principalID, err := s.field("principal.id")
	if err != nil {
		return err
	}
	s.tc.SetToken(actor, token)
	s.tc.SetPrincipalID(actor, principalID)
	return nil
}

func (s *onboardingSteps) logIn(ctx context.Context, actor string) error {
	return s.login(actor)
}

func (s *onboardingSteps) pendingIssuer(ctx context.Context, actor string) error {
	return s.register(actor, "issuer")
}

func (s *onboardingSteps) approvedIssuer(ctx context.Context, actor string) error {
	if err := s.register(actor, "issuer"); err != nil {
		return err
	}
	const admin = "registrar"
	if s.tc.PrincipalID(admin) == "" {
		if err := s.institutionAdmin(ctx, admin); err != nil {
			return err
		}
	}
	if err := s.approve(ctx, admin, actor); err != nil {
		return err
	}
	return s.login(actor)
}

func (s *onboardingSteps) approve(ctx context.Context, admin, issuer string) error {
	if err := s.tc.AuthPOST(admin, "/admin/issuers/"+s.tc.PrincipalID(issuer)+"/approve", map[string]string{}); err != nil {
		return err
	}
	return s.expect(http.StatusOK, "approve "+issuer)
}

func (s *onboardingSteps) holderWithWallet(ctx context.Context, actor, wallet string) error {
	if err := s.holderWithoutWallet(ctx, actor); err != nil {
		return err
	}
	return s.linkWallet(ctx, actor, wallet)
}

func (s *onboardingSteps) holderWithoutWallet(ctx context.Context, actor string) error {
	if err := s.register(actor, "holder"); err != nil {
		return err
	}
	return s.login(actor)
}

func (s *onboardingSteps) linkWallet(ctx context.Context, actor, wallet string) error {
	if err := s.tc.AuthPUT(actor, "/profile/address", map[string]string{"address": wallet}); err != nil {
		return err
	}
	return s.expect(http.StatusOK, "link wallet for "+actor)
}
