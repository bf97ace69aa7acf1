package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cucumber/godog"
)

// samplePDF is enough for content sniffing to report application/pdf.
var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// TestContext is the part of the scenario context these steps use.
type TestContext interface {
	GET(path string, headers map[string]string) error
	AuthGET(actor, path string) error
	AuthPOST(actor, path string, body any) error
	AuthPOSTMultipart(actor, path string, fields map[string]string, file []byte, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Unique(s string) string
	Institution() (string, string)
}

// issued remembers what a scenario needs to refer back to a credential.
type issued struct {
	recipientName string
	recipientID   string
	serial        string
	secret        string
	credentialID  string
	publicID      string
}

// RegisterSteps registers issuance, claim and public lookup steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc, credentials: make(map[string]*issued)}

	ctx.Step(`^"([^"]*)" issues credential "([^"]*)" for "([^"]*)" with serial "([^"]*)" and secret "([^"]*)"$`, steps.issue)
	ctx.Step(`^"([^"]*)" retries issuing credential "([^"]*)"$`, steps.retryIssue)
	ctx.Step(`^"([^"]*)" uploads credential "([^"]*)" as plain text$`, steps.issueNonPDF)
	ctx.Step(`^the response refers to credential "([^"]*)"$`, steps.responseRefersTo)

	ctx.Step(`^"([^"]*)" claims credential "([^"]*)" with serial "([^"]*)" and secret "([^"]*)"$`, steps.claim)
	ctx.Step(`^"([^"]*)" claims credential "([^"]*)" into wallet "([^"]*)" with serial "([^"]*)" and secret "([^"]*)"$`, steps.claimInto)

	ctx.Step(`^anyone verifies credential "([^"]*)"$`, steps.verify)
	ctx.Step(`^anyone searches for "([^"]*)" at the institution$`, steps.search)
	ctx.Step(`^the search should return (\d+) credentials?$`, steps.searchCount)
	ctx.Step(`^anyone looks up the token of credential "([^"]*)"$`, steps.token)
	ctx.Step(`^"([^"]*)" views the issuer stats$`, steps.stats)
}

type credentialSteps struct {
	tc          TestContext
	credentials map[string]*issued
}

func (s *credentialSteps) credential(label string) (*issued, error) {
	c, ok := s.credentials[label]
	if !ok {
		return nil, fmt.Errorf("credential %q was never issued in this scenario", label)
	}
	return c, nil
}

func (s *credentialSteps) stringField(name string) (string, error) {
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

func (s *credentialSteps) upload(actor, label string, c *issued, file []byte) error {
	fields := map[string]string{
		"recipient_name": c.recipientName,
		"recipient_id":   c.recipientID,
		"program":        "Teknik Informatika",
		"document_type":  "diploma",
		"issue_date":     "2024-08-30",
		"serial_number":  c.serial,
		"secret_answer":  c.secret,
	}
	return s.tc.AuthPOSTMultipart(actor, "/credentials/issue", fields, file, map[string]string{
		"Idempotency-Key": s.tc.Unique(label),
	})
}

func (s *credentialSteps) issue(ctx context.Context, actor, label, recipient, serial, secret string) error {
	c := &issued{
		recipientName: recipient,
		recipientID:   s.tc.Unique(label),
		serial:        serial,
		secret:        secret,
	}
	if err := s.upload(actor, label, c, samplePDF); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return nil
	}
	var err error
	if c.credentialID, err = s.stringField("credential_id"); err != nil {
		return err
	}
	if c.publicID, err = s.stringField("public_id"); err != nil {
		return err
	}
	s.credentials[label] = c
	return nil
}

func (s *credentialSteps) retryIssue(ctx context.Context, actor, label string) error {
	c, err := s.credential(label)
	if err != nil {
		return err
	}
	return s.upload(actor, label, c, samplePDF)
}

func (s *credentialSteps) issueNonPDF(ctx context.Context, actor, label string) error {
	c := &issued{recipientName: "Plain Text", recipientID: s.tc.Unique(label), serial: "TXT-1", secret: "plain"}
	return s.upload(actor, label, c, []byte("this is not a pdf document"))
}

func (s *credentialSteps) responseRefersTo(ctx context.Context, label string) error {
	c, err := s.credential(label)
	if err != nil {
		return err
	}
	got, err := s.stringField("credential_id")
	if err != nil {
		return err
	}
	if got != c.credentialID {
		return fmt.Errorf("expected credential %s but got %s", c.credentialID, got)
	}
	return nil
}

func (s *credentialSteps) claim(ctx context.Context, actor, label, serial, secret string) error {
	return s.claimInto(ctx, actor, label, "", serial, secret)
}

func (s *credentialSteps) claimInto(ctx context.Context, actor, label, wallet, serial, secret string) error {
	c, err := s.credential(label)
	if err != nil {
		return err
	}
	body := map[string]string{
		"serial_number": serial,
		"secret_answer": secret,
	}
	if wallet != "" {
		body["target_address"] = wallet
	}
	return s.tc.AuthPOST(actor, "/credentials/"+c.credentialID+"/claim", body)
}

func (s *credentialSteps) verify(ctx context.Context, label string) error {
	c, err := s.credential(label)
	if err != nil {
		return err
	}
	return s.tc.GET("/credentials/verify/"+c.publicID, nil)
}

func (s *credentialSteps) search(ctx context.Context, name string) error {
	_, institution := s.tc.Institution()
	q := url.Values{}
	q.Set("name", name)
	q.Set("institution", institution)
	return s.tc.GET("/credentials/search?"+q.Encode(), nil)
}

func (s *credentialSteps) searchCount(ctx context.Context, expected int) error {
	v, err := s.tc.GetResponseField("credentials")
	if err != nil {
		return err
	}
	hits, ok := v.([]any)
	if !ok {
		return fmt.Errorf("credentials is not a list")
	}
	if len(hits) != expected {
		return fmt.Errorf("expected %d credentials but got %d\nResponse: %s", expected, len(hits), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *credentialSteps) token(ctx context.Context, label string) error {
	c, err := s.credential(label)
	if err != nil {
		return err
	}
	return s.tc.GET("/credentials/token?recipient_id="+url.QueryEscape(c.recipientID), nil)
}

func (s *credentialSteps) stats(ctx context.Context, actor string) error {
	return s.tc.AuthGET(actor, "/issuer/stats")
}
