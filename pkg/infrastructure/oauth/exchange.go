package oauth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Endpoint is Strava's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: DefaultTokenURL,
}

// NewConfig builds the oauth2 config for the authorization-code flow.
func NewConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		// Read to import webhook activities, write to upload rides.
		Scopes:   []string{"activity:read,activity:write"},
		Endpoint: Endpoint,
	}
}

// AuthCodeURL builds the user-facing authorize URL. approval_prompt=force
// makes Strava re-show the consent screen so a re-connect always issues
// a fresh refresh token.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Exchange trades an authorization code for a credential pair, also
// extracting the athlete id Strava includes in the token response.
// The athlete id is what later links webhook owner_id values back to
// the local account.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*Token, string, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("code exchange failed: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, "", fmt.Errorf("token endpoint returned incomplete credential pair")
	}

	expiry := tok.Expiry
	// Strava reports absolute expiry; prefer it over the derived one.
	if v, ok := tok.Extra("expires_at").(float64); ok && v != 0 {
		expiry = time.Unix(int64(v), 0)
	}

	athleteID := ""
	if athlete, ok := tok.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			athleteID = fmt.Sprintf("%.0f", id)
		}
	}

	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiry,
	}, athleteID, nil
}
