// Package main provides a CLI tool for generating feed tokens for local
// development. Tokens use the dev signing key unless -key is given.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "walletfeed/internal/jwt_token"
	"walletfeed/pkg/platform/strings"
	"walletfeed/pkg/platform/validation"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "http://localhost:8080"
	defaultAudience = "walletfeed"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string         `json:"token"`
	ExpiresIn string         `json:"expires_in"`
	Claims    map[string]any `json:"claims"`
}

func main() {
	agentID := flag.String("agent-id", "local-agent", "Agent ID the token is issued for")
	scopes := flag.String("scopes", jwttoken.ScopeFeedRead+","+jwttoken.ScopeFeedAck, "Comma-separated scopes")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := flag.String("key", devSigningKey, "HS256 signing key")
	issuer := flag.String("issuer", defaultIssuer, "Token issuer")
	audience := flag.String("audience", defaultAudience, "Token audience")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	scopeList := strings.SplitCSV(*scopes)
	if err := validation.CheckSliceCount("scopes", len(scopeList), validation.MaxScopes); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	svc := jwttoken.NewJWTService(*key, *issuer, *audience, *ttl)

	token, jti, err := svc.GenerateFeedToken(*agentID, scopeList, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tokenOutput{
			Token:     token,
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"agent_id": *agentID,
				"scope":    scopeList,
				"jti":      jti,
			},
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Feed Token (JWT)")
	fmt.Println("================")
	fmt.Printf("Agent ID:   %s\n", *agentID)
	fmt.Printf("Scopes:     %v\n", scopeList)
	fmt.Printf("Expires In: %s\n", *ttl)
	fmt.Printf("JTI:        %s\n", jti)
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/notifications")
}
