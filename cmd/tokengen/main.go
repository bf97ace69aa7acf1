// Package main generates local tokens for the verichain API. Access tokens are
// signed with JWT_SIGNING_KEY, or the development key when it is unset, so they
// only work against a server started with the same environment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"verichain/internal/authz"
	jwttoken "verichain/internal/jwt_token"
	"verichain/internal/platform/config"
	id "verichain/pkg/domain"
	"verichain/pkg/secrets"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	Claims    map[string]string `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessRole := accessCmd.String("role", "holder", "Role: issuer, holder or admin")
	accessPrincipal := accessCmd.String("principal-id", "", "Principal ID (UUID). Generated if empty.")
	accessInstitution := accessCmd.String("institution-id", "", "Institution ID (UUID). Required for issuer and admin.")
	accessTTL := accessCmd.Duration("ttl", 0, "Token time-to-live. Defaults to TOKEN_TTL.")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	adminCmd := flag.NewFlagSet("admin-token", flag.ExitOnError)
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		accessCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generateAccessToken(*accessRole, *accessPrincipal, *accessInstitution, *accessTTL, *accessJSON)
	case "admin-token":
		adminCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generateAdminToken(*adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - local tokens for the verichain API

Usage:
  tokengen <command> [flags]

Commands:
  access       Sign an access token (JWT) for a principal
  admin-token  Generate a random value for ADMIN_API_TOKEN

Examples:
  tokengen access -role holder
  tokengen access -role issuer -institution-id 3f0c...
  tokengen admin-token -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateAccessToken(rawRole, rawPrincipal, rawInstitution string, ttl time.Duration, jsonOutput bool) {
	cfg, err := config.FromEnv()
	if err != nil {
		fail("invalid configuration: %v", err)
	}
	if ttl <= 0 {
		ttl = cfg.Security.TokenTTL
	}

	role, err := authz.ParseRole(rawRole)
	if err != nil {
		fail("invalid role %q", rawRole)
	}

	principalID := id.PrincipalID(uuid.New())
	if rawPrincipal != "" {
		if principalID, err = id.ParsePrincipalID(rawPrincipal); err != nil {
			fail("invalid principal-id: %v", err)
		}
	}

	var institutionID *id.InstitutionID
	if rawInstitution != "" {
		inst, err := id.ParseInstitutionID(rawInstitution)
		if err != nil {
			fail("invalid institution-id: %v", err)
		}
		institutionID = &inst
	}
	if role != authz.RoleHolder && institutionID == nil {
		fail("%s tokens need -institution-id", role)
	}

	svc := jwttoken.NewJWTService(cfg.Security.JWTSigningKey, cfg.Security.JWTIssuer, cfg.Security.JWTAudience, ttl)
	token, expiresAt, err := svc.GenerateAccessToken(context.Background(), principalID, role, institutionID)
	if err != nil {
		fail("generate token: %v", err)
	}

	claims := map[string]string{
		"principal_id": principalID.String(),
		"role":         string(role),
	}
	if institutionID != nil {
		claims["institution_id"] = institutionID.String()
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
			Claims:    claims,
			Usage:     map[string]string{"header": "Authorization: Bearer <token>"},
		})
		return
	}
	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Role:        %s\n", role)
	fmt.Printf("Principal:   %s\n", principalID)
	if institutionID != nil {
		fmt.Printf("Institution: %s\n", institutionID)
	}
	fmt.Printf("Expires At:  %s\n", expiresAt.UTC().Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
}

func generateAdminToken(jsonOutput bool) {
	token, err := secrets.Generate()
	if err != nil {
		fail("generate admin token: %v", err)
	}
	if jsonOutput {
		printJSON(tokenOutput{
			Token: token,
			Type:  "admin_token",
			Usage: map[string]string{
				"env":    "ADMIN_API_TOKEN=" + token,
				"header": "X-Admin-Token: " + token,
			},
		})
		return
	}
	fmt.Println("ADMIN_API_TOKEN=" + token)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("encode json: %v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
