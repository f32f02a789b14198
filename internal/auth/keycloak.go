package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// TokenSet is the token endpoint response.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	IDToken          string `json:"id_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

// KeycloakUser is the admin API representation used for user creation.
type KeycloakUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// KeycloakClient talks to a Keycloak realm: the OIDC token endpoint for
// grants and the admin REST API for user management. The admin token is
// obtained from the master realm with the admin-cli client and reused
// until shortly before it expires.
type KeycloakClient struct {
	serverURL     string
	realm         string
	clientID      string
	clientSecret  string
	adminUsername string
	adminPassword string
	httpClient    *http.Client

	adminMu         sync.Mutex
	adminToken      string
	adminTokenValid time.Time
}

func NewKeycloakClient(keycloakConfig config.KeycloakConfig) *KeycloakClient {
	return &KeycloakClient{
		serverURL:     strings.TrimRight(keycloakConfig.ServerURL, "/"),
		realm:         keycloakConfig.Realm,
		clientID:      keycloakConfig.ClientID,
		clientSecret:  keycloakConfig.ClientSecret,
		adminUsername: keycloakConfig.AdminUsername,
		adminPassword: keycloakConfig.AdminPassword,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *KeycloakClient) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", c.serverURL, c.realm)
}

func (c *KeycloakClient) CertsURL() string {
	return c.Issuer() + "/protocol/openid-connect/certs"
}

func (c *KeycloakClient) tokenEndpoint() string {
	return c.Issuer() + "/protocol/openid-connect/token"
}

func (c *KeycloakClient) clientForm() url.Values {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	return form
}

// Login performs the resource-owner password grant.
func (c *KeycloakClient) Login(ctx context.Context, username, password string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", "openid")

	var tokens TokenSet
	if err := c.postForm(ctx, c.tokenEndpoint(), form, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a fresh token set.
func (c *KeycloakClient) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var tokens TokenSet
	if err := c.postForm(ctx, c.tokenEndpoint(), form, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// ExchangeCode redeems an authorization code from the browser flow.
func (c *KeycloakClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	form := c.clientForm()
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	var tokens TokenSet
	if err := c.postForm(ctx, c.tokenEndpoint(), form, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout invalidates the session behind refreshToken.
func (c *KeycloakClient) Logout(ctx context.Context, refreshToken string) error {
	form := c.clientForm()
	form.Set("refresh_token", refreshToken)
	endpoint := c.Issuer() + "/protocol/openid-connect/logout"
	return c.postForm(ctx, endpoint, form, nil)
}

// adminAccessToken logs in to the master realm as admin-cli and caches
// the token until 30 seconds before expiry.
func (c *KeycloakClient) adminAccessToken(ctx context.Context) (string, error) {
	c.adminMu.Lock()
	defer c.adminMu.Unlock()
	if c.adminToken != "" && time.Now().Before(c.adminTokenValid) {
		return c.adminToken, nil
	}

	form := url.Values{}
	form.Set("client_id", "admin-cli")
	form.Set("grant_type", "password")
	form.Set("username", c.adminUsername)
	form.Set("password", c.adminPassword)

	endpoint := fmt.Sprintf("%s/realms/master/protocol/openid-connect/token", c.serverURL)
	var tokens TokenSet
	if err := c.postForm(ctx, endpoint, form, &tokens); err != nil {
		return "", gerrors.Wrapf(err, "admin login")
	}
	c.adminToken = tokens.AccessToken
	c.adminTokenValid = time.Now().Add(time.Duration(tokens.ExpiresIn-30) * time.Second)
	return c.adminToken, nil
}

func (c *KeycloakClient) adminUsersURL(parts ...string) string {
	u := fmt.Sprintf("%s/admin/realms/%s/users", c.serverURL, c.realm)
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

// CreateUser registers a user in the realm and returns the new Keycloak
// id, taken from the Location header of the 201 response.
func (c *KeycloakClient) CreateUser(ctx context.Context, user KeycloakUser, password string) (string, error) {
	adminToken, err := c.adminAccessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"username":      user.Username,
		"email":         user.Email,
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"enabled":       true,
		"emailVerified": true,
		"credentials": []map[string]interface{}{
			{"type": "password", "value": password, "temporary": false},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", gerrors.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminUsersURL(), bytes.NewReader(body))
	if err != nil {
		return "", gerrors.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", gerrors.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", gerrors.Wrapf(ErrUserExists, "create keycloak user %s", user.Username)
	default:
		return "", gerrors.Newf("create keycloak user %s: %s", user.Username, responseDetail(resp))
	}

	location := resp.Header.Get("Location")
	idx := strings.LastIndex(location, "/")
	if idx < 0 || idx == len(location)-1 {
		return "", gerrors.Newf("create keycloak user %s: missing Location header", user.Username)
	}
	keycloakID := location[idx+1:]
	log.Debug(ctx, "Created keycloak user", "username", user.Username, "keycloak_id", keycloakID)
	return keycloakID, nil
}

// DeleteUser removes the user from the realm. Missing users are treated
// as already deleted.
func (c *KeycloakClient) DeleteUser(ctx context.Context, keycloakID string) error {
	adminToken, err := c.adminAccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.adminUsersURL(keycloakID), nil)
	if err != nil {
		return gerrors.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gerrors.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Warning(ctx, "Keycloak user already deleted", "keycloak_id", keycloakID)
		return nil
	}
	if resp.StatusCode >= 300 {
		return gerrors.Newf("delete keycloak user %s: %s", keycloakID, responseDetail(resp))
	}
	return nil
}

// ResetPassword sets a permanent password for the user.
func (c *KeycloakClient) ResetPassword(ctx context.Context, keycloakID, newPassword string) error {
	adminToken, err := c.adminAccessToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"type": "password", "value": newPassword, "temporary": false}
	body, err := json.Marshal(payload)
	if err != nil {
		return gerrors.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.adminUsersURL(keycloakID, "reset-password"), bytes.NewReader(body))
	if err != nil {
		return gerrors.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gerrors.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return gerrors.Newf("reset password for %s: %s", keycloakID, responseDetail(resp))
	}
	return nil
}

// postForm submits a form-encoded request and decodes the JSON response
// into dst when provided. 400/401 from the token endpoints map to
// ErrInvalidCredentials so handlers can reply 401 without inspecting
// Keycloak error codes.
func (c *KeycloakClient) postForm(ctx context.Context, endpoint string, form url.Values, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gerrors.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gerrors.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return gerrors.Wrapf(ErrInvalidCredentials, "%s", responseDetail(resp))
	}
	if resp.StatusCode >= 300 {
		return gerrors.Newf("keycloak request to %s failed: %s", endpoint, responseDetail(resp))
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return gerrors.Wrapf(err, "decode keycloak response")
	}
	return nil
}

func responseDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, detail)
}
