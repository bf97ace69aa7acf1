package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"verichain/internal/authz"
	"verichain/internal/credential/assets"
	"verichain/internal/credential/ledger"
	"verichain/internal/credential/lock"
	"verichain/internal/credential/models"
	"verichain/internal/credential/service"
	credstore "verichain/internal/credential/store/credential"
	"verichain/internal/credential/store/journal"
	"verichain/internal/credential/verifier"
	instservice "verichain/internal/institution/service"
	inststore "verichain/internal/institution/store"
	pservice "verichain/internal/principal/service"
	pstore "verichain/internal/principal/store"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/platform/httputil"
	"verichain/pkg/platform/tx"
	"verichain/pkg/requestcontext"
	"verichain/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctx     context.Context
	ledger  *ledger.Memory
	handler *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()

	instStore := inststore.NewInMemory()
	s.Require().NoError(instStore.Create(s.ctx, testutil.NewInstitutionBuilder().
		WithID(testutil.TestIDs.InstitutionID1).WithName("Universitas Contoh").Build()))
	institutions := instservice.New(instStore)

	principals := pstore.NewInMemory()
	for _, p := range []*testutil.PrincipalBuilder{
		testutil.NewPrincipalBuilder().WithID(testutil.TestIDs.IssuerID1).AsIssuer(testutil.TestIDs.InstitutionID1),
		testutil.NewPrincipalBuilder().WithID(testutil.TestIDs.HolderID1).WithAddress(testutil.TestAddresses.Holder1),
		testutil.NewPrincipalBuilder().WithID(testutil.TestIDs.HolderID2),
	} {
		s.Require().NoError(principals.Create(s.ctx, p.Build()))
	}

	fingerprints, err := verifier.NewFingerprinter([]byte("0123456789abcdef0123456789abcdef"))
	s.Require().NoError(err)
	s.ledger = ledger.NewMemory(testutil.TestAddresses.Custody, ledger.WithFirstTokenID(7))

	svc := service.New(service.Deps{
		Credentials:  credstore.NewInMemory(),
		Journal:      journal.NewInMemory(),
		Tx:           tx.NewMemory(),
		Ledger:       s.ledger,
		Assets:       assets.NewMemory(),
		Hasher:       verifier.New(verifier.WithParams(verifier.Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})),
		Fingerprints: fingerprints,
		Principals:   pservice.New(principals, institutions, nil, nil),
		Institutions: institutions,
		Locker:       lock.NewLocal(),
	}, service.WithLogger(quietLogger()))
	s.handler = New(svc, quietLogger())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// as builds a router whose requests carry the given identity, standing in for RequireAuth.
func (s *HandlerSuite) as(principalID id.PrincipalID, role authz.Role, inst *id.InstitutionID) *chi.Mux {
	return routerAs(s.handler, principalID, role, inst)
}

func routerAs(h *Handler, principalID id.PrincipalID, role authz.Role, inst *id.InstitutionID) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithPrincipalID(req.Context(), principalID)
			ctx = requestcontext.WithRole(ctx, string(role))
			if inst != nil {
				ctx = requestcontext.WithInstitutionID(ctx, *inst)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterAuthenticated(r)
	return r
}

func (s *HandlerSuite) issuer() *chi.Mux {
	inst := testutil.TestIDs.InstitutionID1
	return s.as(testutil.TestIDs.IssuerID1, authz.RoleIssuer, &inst)
}

func (s *HandlerSuite) public() *chi.Mux {
	r := chi.NewRouter()
	s.handler.RegisterPublic(r)
	return r
}

func (s *HandlerSuite) do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

type upload struct {
	fields map[string]string
	file   []byte
	key    string
}

func issueUpload(serial string) upload {
	return upload{
		fields: map[string]string{
			"recipient_name": "Maria Santos",
			"recipient_id":   "3201123456789012",
			"program":        "Informatika",
			"document_type":  "ijazah",
			"issue_date":     "2024-06-30",
			"serial_number":  serial,
			"secret_answer":  "Maria",
		},
		file: []byte("%PDF-1.7\n" + serial),
		key:  "req-" + serial,
	}
}

func (s *HandlerSuite) postIssue(r http.Handler, u upload) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range u.fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	if u.file != nil {
		fw, err := mw.CreateFormFile("file", "ijazah.pdf")
		s.Require().NoError(err)
		_, err = fw.Write(u.file)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/credentials/issue", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.key != "" {
		req.Header.Set(IdempotencyKeyHeader, u.key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) issue(serial string) CredentialResponse {
	w := s.postIssue(s.issuer(), issueUpload(serial))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp CredentialResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestIssue() {
	resp := s.issue("S-001")
	s.Equal("7", resp.TokenID)
	s.Equal("issued", resp.Status)
	s.NotEmpty(resp.MintTxRef)
	s.True(strings.HasPrefix(resp.AssetPointer, "assets/"))
	s.True(strings.HasPrefix(resp.MetadataPointer, "metadata/"))

	s.Run("same idempotency key returns the same credential", func() {
		again := s.issue("S-001")
		s.Equal(resp.CredentialID, again.CredentialID)
		s.Equal(1, s.ledger.MintCount())
	})

	s.Run("duplicate serial under a new key conflicts", func() {
		u := issueUpload("S-001")
		u.key = "req-other"
		w := s.postIssue(s.issuer(), u)
		s.Equal(http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestIssueRejectsBadUploads() {
	cases := []struct {
		name   string
		mutate func(*upload)
	}{
		{"missing serial", func(u *upload) { delete(u.fields, "serial_number") }},
		{"blank secret", func(u *upload) { u.fields["secret_answer"] = "   " }},
		{"bad date", func(u *upload) { u.fields["issue_date"] = "30/06/2024" }},
		{"missing file", func(u *upload) { u.file = nil }},
		{"not a pdf", func(u *upload) { u.file = []byte("plain text") }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			u := issueUpload("S-100")
			tc.mutate(&u)
			w := s.postIssue(s.issuer(), u)
			s.Equal(http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	s.Equal(0, s.ledger.MintCount())
}

func (s *HandlerSuite) TestIssueRequiresIssuerRole() {
	w := s.postIssue(s.as(testutil.TestIDs.HolderID1, authz.RoleHolder, nil), issueUpload("S-001"))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.postIssue(s.as(testutil.TestIDs.IssuerID1, authz.RoleIssuer, nil), issueUpload("S-001"))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerSuite) TestClaim() {
	cred := s.issue("S-001")
	holder := s.as(testutil.TestIDs.HolderID1, authz.RoleHolder, nil)

	w := s.do(holder, http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
		`{"serial_number":"S-001","secret_answer":"wrong"}`)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(holder, http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
		`{"serial_number":" S-001 ","secret_answer":"  MARIA "}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp ClaimResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("7", resp.TokenID)
	s.Equal("claimed", resp.Status)
	s.Equal(testutil.TestAddresses.Holder1.Hex(), resp.HolderAddress)
	s.False(resp.AlreadyClaimed)

	other := s.as(testutil.TestIDs.HolderID2, authz.RoleHolder, nil)
	w = s.do(other, http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
		`{"serial_number":"S-001","secret_answer":"maria","target_address":"`+testutil.TestAddresses.Holder2.Hex()+`"}`)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *HandlerSuite) TestClaimErrors() {
	cred := s.issue("S-001")
	holder2 := s.as(testutil.TestIDs.HolderID2, authz.RoleHolder, nil)

	s.Run("no linked address", func() {
		w := s.do(holder2, http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
			`{"serial_number":"S-001","secret_answer":"maria"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
	s.Run("malformed target", func() {
		w := s.do(holder2, http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
			`{"serial_number":"S-001","secret_answer":"maria","target_address":"0x1234"}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
	s.Run("unknown credential", func() {
		w := s.do(holder2, http.MethodPost, "/credentials/"+testutil.TestIDs.CredentialID1.String()+"/claim",
			`{"serial_number":"S-001","secret_answer":"maria"}`)
		s.Equal(http.StatusNotFound, w.Code)
	})
	s.Run("invalid id", func() {
		w := s.do(holder2, http.MethodPost, "/credentials/not-a-uuid/claim", `{}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
	s.Run("issuer cannot claim", func() {
		w := s.do(s.issuer(), http.MethodPost, "/credentials/"+cred.CredentialID+"/claim",
			`{"serial_number":"S-001","secret_answer":"maria"}`)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *HandlerSuite) TestVerify() {
	cred := s.issue("S-001")

	w := s.do(s.public(), http.MethodGet, "/credentials/verify/"+cred.PublicID, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp VerifyResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("Maria Santos", resp.RecipientName)
	s.Equal("Universitas Contoh", resp.InstitutionName)
	s.Equal("2024-06-30", resp.IssueDate)
	s.Equal("issued", resp.Status)
	s.True(resp.OnChain.Available)
	s.True(resp.OnChain.Consistent)
	s.Require().NotNil(resp.OnChain.OwnerAddress)
	s.Equal(testutil.TestAddresses.Custody.Hex(), *resp.OnChain.OwnerAddress)
	s.Nil(resp.HolderAddress)
	s.NotContains(w.Body.String(), "S-001")

	w = s.do(s.public(), http.MethodGet, "/credentials/verify/"+testutil.TestIDs.PublicID1.String(), "")
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(s.public(), http.MethodGet, "/credentials/verify/nope", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestSearchAndToken() {
	cred := s.issue("S-001")

	w := s.do(s.public(), http.MethodGet, "/credentials/search?name=maria&institution=contoh", "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var search struct {
		Credentials []SummaryResponse `json:"credentials"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &search))
	s.Require().Len(search.Credentials, 1)
	s.Equal(cred.PublicID, search.Credentials[0].PublicID)
	s.NotContains(w.Body.String(), "3201123456789012")

	w = s.do(s.public(), http.MethodGet, "/credentials/search?name=maria", "")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(s.public(), http.MethodGet, "/credentials/token?recipient_id=3201123456789012", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"public_id":"`+cred.PublicID+`","token_id":"7"}`, w.Body.String())

	w = s.do(s.public(), http.MethodGet, "/credentials/token?recipient_id=unknown", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestStats() {
	s.issue("S-001")
	s.issue("S-002")

	w := s.do(s.issuer(), http.MethodGet, "/issuer/stats", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"institution_id":"`+testutil.TestIDs.InstitutionID1.String()+`","issued":2,"claimed":0}`, w.Body.String())

	w = s.do(s.as(testutil.TestIDs.HolderID1, authz.RoleHolder, nil), http.MethodGet, "/issuer/stats", "")
	s.Equal(http.StatusForbidden, w.Code)
}

// incompleteService fails every issuance after the mint was submitted.
type incompleteService struct {
	Service
}

func (incompleteService) Issue(context.Context, service.IssueCommand) (*models.Credential, error) {
	return nil, &service.IncompleteError{
		RequestID:       "req-9",
		Stage:           models.StageMintSubmitted,
		AssetPointer:    "assets/abc",
		MetadataPointer: "metadata/abc",
		MintTxRef:       "0xfeed",
	}
}

func TestIssueIncompleteReportsProgress(t *testing.T) {
	s := new(HandlerSuite)
	s.SetT(t)
	inst := testutil.TestIDs.InstitutionID1
	h := New(incompleteService{}, quietLogger())

	w := s.postIssue(routerAs(h, testutil.TestIDs.IssuerID1, authz.RoleIssuer, &inst), issueUpload("S-001"))
	s.Require().Equal(http.StatusBadGateway, w.Code)
	var resp IncompleteResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(httputil.DomainCodeToHTTPCode(dErrors.CodeExternalService), resp.Error)
	s.Equal("req-9", resp.IssuanceRequestID)
	s.Equal(string(models.StageMintSubmitted), resp.Stage)
	s.Equal("0xfeed", resp.MintTxRef)
	s.Equal("metadata/abc", resp.MetadataPointer)
}
