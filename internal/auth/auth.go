// Package auth handles the Strava OAuth2 authorization code flow.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/justestif/go-strava-leaderboard/internal/strava"
)

// Scope requests read access to the athlete and all of their activities.
// Strava expects the scopes comma separated in a single value.
const Scope = "read,activity:read_all"

// Endpoint is Strava's OAuth2 endpoint. Strava wants client credentials in
// the request body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.strava.com/oauth/authorize",
	TokenURL:  "https://www.strava.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var (
	// ErrMissingCredentials is returned when the client ID or secret is not set.
	ErrMissingCredentials = errors.New("missing Strava client ID or secret")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrMissingAthlete is returned when the token response carries no athlete.
	ErrMissingAthlete = errors.New("token response has no athlete")
)

// Config holds the Strava application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Authenticator handles Strava OAuth2 authentication.
type Authenticator struct {
	config *oauth2.Config
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithEndpoint overrides the OAuth2 endpoint.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Authenticator) {
		a.config.Endpoint = endpoint
	}
}

// New creates an Authenticator. Returns ErrMissingCredentials if the client
// ID or secret is empty.
func New(cfg Config, opts ...Option) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	a := &Authenticator{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     Endpoint,
			Scopes:       []string{Scope},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AuthURL returns the Strava consent page URL for the given state.
func (a *Authenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Exchange trades an authorization code for a token. Strava embeds the
// athlete summary in the token response, which is returned alongside.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, *strava.Athlete, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("exchanging code for token: %w", err)
	}

	athlete, err := athleteFromToken(token)
	if err != nil {
		return nil, nil, err
	}
	return token, athlete, nil
}

// TokenSource returns a refreshing token source seeded with token.
func (a *Authenticator) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return a.config.TokenSource(ctx, token)
}

// VerifyState compares the state echoed by Strava with the expected one.
func VerifyState(expected, got string) error {
	if expected == "" || got != expected {
		return ErrStateMismatch
	}
	return nil
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func athleteFromToken(token *oauth2.Token) (*strava.Athlete, error) {
	raw := token.Extra("athlete")
	if raw == nil {
		return nil, ErrMissingAthlete
	}

	// Extra yields the decoded JSON value, so re-encode it into the typed struct.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding athlete: %w", err)
	}
	var athlete strava.Athlete
	if err := json.Unmarshal(encoded, &athlete); err != nil {
		return nil, fmt.Errorf("decoding athlete: %w", err)
	}
	if athlete.ID == 0 {
		return nil, ErrMissingAthlete
	}
	return &athlete, nil
}
