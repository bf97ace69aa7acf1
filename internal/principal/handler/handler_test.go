package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"verichain/internal/authz"
	instservice "verichain/internal/institution/service"
	inststore "verichain/internal/institution/store"
	jwttoken "verichain/internal/jwt_token"
	"verichain/internal/principal/service"
	"verichain/internal/principal/store"
	id "verichain/pkg/domain"
	"verichain/pkg/requestcontext"
	"verichain/pkg/secrets"
)

type HandlerSuite struct {
	suite.Suite
	ctx     context.Context
	service *service.Service
	handler *Handler
	inst    id.InstitutionID
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	institutions := instservice.New(inststore.NewInMemory())
	inst, err := institutions.CreateInstitution(s.ctx, "Universitas Contoh")
	s.Require().NoError(err)
	s.inst = inst.ID

	jwt := jwttoken.NewJWTService("test-signing-key-32-bytes-long!!", "verichain", "verichain-api", time.Hour)
	s.service = service.New(store.NewInMemory(), institutions, secrets.NewHasher(bcrypt.MinCost), jwt)
	s.handler = New(s.service, slog.Default())
}

// as builds a router whose requests carry the given identity, standing in for RequireAuth.
func (s *HandlerSuite) as(principalID id.PrincipalID, role authz.Role, inst *id.InstitutionID) *chi.Mux {
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
	s.handler.RegisterAuthenticated(r)
	return r
}

func (s *HandlerSuite) public() *chi.Mux {
	r := chi.NewRouter()
	s.handler.RegisterPublic(r)
	s.handler.RegisterPlatform(r)
	return r
}

func (s *HandlerSuite) do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func (s *HandlerSuite) TestRegisterAndLogin() {
	w := s.do(s.public(), http.MethodPost, "/auth/register",
		`{"email":"Maria@Example.org","password":"password123","full_name":"Maria","role":"holder"}`)
	s.Require().Equal(http.StatusCreated, w.Code)

	var p PrincipalResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &p))
	s.Equal("maria@example.org", p.Email)
	s.Equal("active", string(p.Status))

	w = s.do(s.public(), http.MethodPost, "/auth/login", `{"email":"maria@example.org","password":"password123"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	var login LoginResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &login))
	s.NotEmpty(login.AccessToken)
	s.Equal("Bearer", login.TokenType)

	w = s.do(s.public(), http.MethodPost, "/auth/login", `{"email":"maria@example.org","password":"nope-nope"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestRegister_Validation() {
	cases := map[string]string{
		"admin role":          `{"email":"a@example.org","password":"password123","full_name":"A","role":"admin"}`,
		"issuer without inst": `{"email":"i@example.org","password":"password123","full_name":"I","role":"issuer"}`,
		"bad email":           `{"email":"nope","password":"password123","full_name":"I","role":"holder"}`,
		"short password":      `{"email":"h@example.org","password":"short","full_name":"H","role":"holder"}`,
	}
	for name, body := range cases {
		s.Run(name, func() {
			w := s.do(s.public(), http.MethodPost, "/auth/register", body)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (s *HandlerSuite) TestLinkAddress() {
	maria, err := s.service.Register(s.ctx, service.RegisterCommand{
		Email: "maria@example.org", Password: "password123", FullName: "Maria", Role: authz.RoleHolder,
	})
	s.Require().NoError(err)
	other, err := s.service.Register(s.ctx, service.RegisterCommand{
		Email: "other@example.org", Password: "password123", FullName: "Other", Role: authz.RoleHolder,
	})
	s.Require().NoError(err)

	body := `{"address":"0x00000000000000000000000000000000000000a1"}`
	w := s.do(s.as(maria.ID, authz.RoleHolder, nil), http.MethodPut, "/profile/address", body)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(s.as(other.ID, authz.RoleHolder, nil), http.MethodPut, "/profile/address", body)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(s.as(other.ID, authz.RoleHolder, nil), http.MethodPut, "/profile/address", `{"address":"0x1234"}`)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(s.as(other.ID, authz.RoleIssuer, &s.inst), http.MethodPut, "/profile/address", body)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlerSuite) TestAdminIssuerLifecycle() {
	w := s.do(s.public(), http.MethodPost, "/admin/institutions/"+s.inst.String()+"/admins",
		`{"email":"admin@example.org","password":"password123","full_name":"Pak Admin"}`)
	s.Require().Equal(http.StatusCreated, w.Code)
	var admin PrincipalResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &admin))
	adminID, err := id.ParsePrincipalID(admin.ID)
	s.Require().NoError(err)

	issuer, err := s.service.Register(s.ctx, service.RegisterCommand{
		Email: "issuer@example.org", Password: "password123", FullName: "Ibu Issuer",
		Role: authz.RoleIssuer, InstitutionID: &s.inst,
	})
	s.Require().NoError(err)

	asAdmin := s.as(adminID, authz.RoleAdmin, &s.inst)
	w = s.do(asAdmin, http.MethodGet, "/admin/issuers", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "pending_approval")

	w = s.do(s.as(issuer.ID, authz.RoleIssuer, &s.inst), http.MethodPost, "/admin/issuers/"+issuer.ID.String()+"/approve", "")
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(asAdmin, http.MethodPost, "/admin/issuers/"+issuer.ID.String()+"/approve", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"active"`)

	w = s.do(asAdmin, http.MethodDelete, "/admin/issuers/"+issuer.ID.String(), "")
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(asAdmin, http.MethodDelete, "/admin/issuers/"+issuer.ID.String(), "")
	s.Equal(http.StatusNotFound, w.Code)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}
