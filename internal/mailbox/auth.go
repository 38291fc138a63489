package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// TokenSourceFromFiles builds a refreshing token source from an OAuth
// client credentials file and a previously stored user token. Obtaining
// the initial token (the consent flow) is handled outside this module.
func TokenSourceFromFiles(ctx context.Context, credentialsPath, tokenPath string) (oauth2.TokenSource, error) {
	credBytes, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("TokenSourceFromFiles: reading credentials: %w", err)
	}

	config, err := google.ConfigFromJSON(credBytes, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("TokenSourceFromFiles: parsing credentials: %w", err)
	}

	tokenBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("TokenSourceFromFiles: reading token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("TokenSourceFromFiles: parsing token: %w", err)
	}

	return config.TokenSource(ctx, &token), nil
}
