package salesforce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuthConfig holds the connected-app settings for the web-server flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	LoginURL     string // e.g. https://login.salesforce.com or https://test.salesforce.com
	RedirectURI  string
	Scopes       []string
}

// Refresher obtains a new session when the current access token is rejected.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// OAuth implements the authorization-code and refresh-token flows.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuth builds the flow against LoginURL's /services/oauth2 endpoints.
func NewOAuth(cfg OAuthConfig, httpClient *http.Client) *OAuth {
	loginURL := strings.TrimRight(cfg.LoginURL, "/")
	if loginURL == "" {
		loginURL = "https://login.salesforce.com"
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"api", "refresh_token"}
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   loginURL + "/services/oauth2/authorize",
				TokenURL:  loginURL + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Configured reports whether client credentials are present.
func (o *OAuth) Configured() bool {
	return o != nil && o.config.ClientID != "" && o.config.ClientSecret != ""
}

// AuthorizationURL returns the consent page URL; state guards the callback
// against CSRF.
func (o *OAuth) AuthorizationURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a session.
func (o *OAuth) Exchange(ctx context.Context, code string) (*Session, error) {
	tok, err := o.config.Exchange(o.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("salesforce: exchange code: %w", err)
	}
	return o.sessionFromToken(tok, "")
}

// Refresh uses a refresh token to mint a new access token. Salesforce does
// not rotate refresh tokens, so the previous one is kept.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("salesforce: no refresh token available")
	}
	tok, err := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("salesforce: refresh token: %w", err)
	}
	return o.sessionFromToken(tok, refreshToken)
}

func (o *OAuth) sessionFromToken(tok *oauth2.Token, fallbackRefresh string) (*Session, error) {
	instanceURL, _ := tok.Extra("instance_url").(string)
	if instanceURL == "" {
		return nil, errors.New("salesforce: token response missing instance_url")
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		InstanceURL:  strings.TrimRight(instanceURL, "/"),
		IssuedAt:     o.now().UTC(),
	}, nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

var _ Refresher = (*OAuth)(nil)
