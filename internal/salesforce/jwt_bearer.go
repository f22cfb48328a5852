package salesforce

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// JWTBearer authenticates a server integration user without a browser by
// signing an assertion with the connected app's certificate key.
type JWTBearer struct {
	clientID   string
	username   string
	loginURL   string
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// NewJWTBearer parses the PEM private key and prepares the flow.
func NewJWTBearer(clientID, username, loginURL string, keyPEM []byte, httpClient *http.Client) (*JWTBearer, error) {
	if clientID == "" || username == "" {
		return nil, errors.New("salesforce: jwt bearer requires client id and username")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("salesforce: parse jwt key: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	loginURL = strings.TrimRight(loginURL, "/")
	if loginURL == "" {
		loginURL = "https://login.salesforce.com"
	}
	return &JWTBearer{
		clientID:   clientID,
		username:   username,
		loginURL:   loginURL,
		key:        key,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Assertion returns a signed RS256 assertion valid for three minutes.
func (j *JWTBearer) Assertion() (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Issuer:    j.clientID,
		Subject:   j.username,
		Audience:  jwt.ClaimStrings{j.loginURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(3 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("salesforce: sign assertion: %w", err)
	}
	return signed, nil
}

// Session requests a new access token.
func (j *JWTBearer) Session(ctx context.Context) (*Session, error) {
	assertion, err := j.Assertion()
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("salesforce: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("salesforce: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("salesforce: parse token response: %w", err)
	}
	session := &Session{
		AccessToken: tokenResp.AccessToken,
		InstanceURL: strings.TrimRight(tokenResp.InstanceURL, "/"),
		IssuedAt:    j.now().UTC(),
	}
	if !session.Valid() {
		return nil, errors.New("salesforce: incomplete jwt bearer token response")
	}
	return session, nil
}

// Refresh ignores the refresh token: a fresh assertion is always accepted.
func (j *JWTBearer) Refresh(ctx context.Context, _ string) (*Session, error) {
	return j.Session(ctx)
}

var _ Refresher = (*JWTBearer)(nil)
