// Command devicegrant-cli demonstrates the device authorization grant from
// the device's side: it requests a code pair, shows the verification URI,
// and polls the token endpoint until the user decides.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "devicegrantd base URL")
	clientID := flag.String("client", "", "OAuth client_id (required)")
	scope := flag.String("scope", "", "space-delimited scopes to request")
	flag.Parse()

	if *clientID == "" {
		fmt.Fprintln(os.Stderr, "usage: devicegrant-cli -client <client_id> [-server URL] [-scope \"read write\"]")
		os.Exit(2)
	}

	cfg := &oauth2.Config{
		ClientID: *clientID,
		Scopes:   strings.Fields(*scope),
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: *serverURL + "/oauth/device/code",
			TokenURL:      *serverURL + "/oauth/token",
		},
	}

	ctx := context.Background()

	auth, err := cfg.DeviceAuth(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "requesting device code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Open %s\n", auth.VerificationURI)
	fmt.Printf("and enter the code: %s\n", auth.UserCode)
	if auth.VerificationURIComplete != "" {
		fmt.Printf("or open %s\n", auth.VerificationURIComplete)
	}
	fmt.Println("\nWaiting for authorization...")

	// DeviceAccessToken polls the token endpoint honoring interval and
	// slow_down until the code is approved, denied, or expired.
	token, err := cfg.DeviceAccessToken(ctx, auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authorization failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Authorized.")
	fmt.Printf("access_token:  %s\n", token.AccessToken)
	fmt.Printf("token_type:    %s\n", token.TokenType)
	if token.RefreshToken != "" {
		fmt.Printf("refresh_token: %s\n", token.RefreshToken)
	}
}
