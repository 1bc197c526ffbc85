// Package idp implements the IdP Admin Client: it acquires and caches a
// service-account bearer token via the OAuth2 client-credentials grant,
// paginates through an OIDC-compatible admin API's enabled users, and
// exposes a connectivity probe. It knows nothing about reconciliation —
// it only ever produces reconcile.RawUser records for the Normalizer.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lariatlabs/dirsync/internal/reconcile"
)

// tokenSafetyMargin is subtracted from a cached token's expiry so a
// request never starts with a token that expires mid-flight.
const tokenSafetyMargin = 60 * time.Second

// maxFetchedUsers is a hard stop on pagination to prevent a misbehaving
// admin API (or a batchSize of zero) from looping forever.
const maxFetchedUsers = 100000

// Config configures one Client instance.
type Config struct {
	// AdminURL is the IdP base URL, no trailing slash.
	AdminURL string
	// Realm is the realm name path segment used by both the token and
	// admin endpoints.
	Realm string
	// ClientID and ClientSecret are the service-account credentials for
	// the client-credentials grant.
	ClientID     string
	ClientSecret string
	// HTTPClient overrides the transport used for both token acquisition
	// and admin calls. Defaults to http.DefaultClient. Tests supply one
	// pointed at an httptest.Server.
	HTTPClient *http.Client
}

// Client is a short-lived, single-tick IdP Admin Client. Its cached token
// is local to the instance and is discarded along with it; callers
// construct a fresh Client at the start of every scheduled tick.
type Client struct {
	cfg        Config
	ccConfig   clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// New constructs a Client for one tick's use.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		cfg: cfg,
		ccConfig: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", cfg.AdminURL, cfg.Realm),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// bearerToken returns a cached token when it is still valid past the
// safety margin, otherwise acquires and caches a fresh one.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && time.Now().Add(tokenSafetyMargin).Before(c.token.Expiry) {
		return c.token.AccessToken, nil
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.ccConfig.Token(tokenCtx)
	if err != nil {
		return "", &AuthError{StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}

	c.token = tok

	return tok.AccessToken, nil
}

// invalidateToken drops the cached token so the next request re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = nil
}

// adminGet issues one authenticated GET against the admin API and decodes
// the JSON response into out. On a 401/403 it invalidates the cached
// token and retries exactly once with a fresh one.
func (c *Client) adminGet(ctx context.Context, path string, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.bearerToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AdminURL+path, nil)
		if err != nil {
			return &RequestError{Message: err.Error()}
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &RequestError{Message: err.Error()}
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			c.invalidateToken()

			if attempt == 0 {
				continue
			}

			return &AuthError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &RequestError{StatusCode: resp.StatusCode, Message: string(body)}
		}

		if readErr != nil {
			return &RequestError{Message: readErr.Error()}
		}

		if out == nil {
			return nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			return &RequestError{Message: fmt.Sprintf("decoding response: %s", err)}
		}

		return nil
	}

	return &AuthError{StatusCode: http.StatusUnauthorized, Message: "token refresh did not resolve authorization failure"}
}

// rawAdminUser is the wire shape of one record from the admin users
// endpoint; only the fields the Normalizer needs are decoded.
type rawAdminUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Enabled   bool   `json:"enabled"`
}

// FetchEnabledUsers pages through the admin users endpoint with the given
// batch size until a short page is returned, and returns the accumulated
// records as reconcile.RawUser. A hard stop at maxFetchedUsers guards
// against a misconfigured or malicious admin API returning full pages
// forever.
func (c *Client) FetchEnabledUsers(ctx context.Context, batchSize int) ([]reconcile.RawUser, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var out []reconcile.RawUser

	for first := 0; first < maxFetchedUsers; first += batchSize {
		path := fmt.Sprintf(
			"/admin/realms/%s/users?first=%d&max=%d&enabled=true",
			url.PathEscape(c.cfg.Realm), first, batchSize,
		)

		var page []rawAdminUser
		if err := c.adminGet(ctx, path, &page); err != nil {
			return nil, err
		}

		for _, u := range page {
			out = append(out, reconcile.RawUser{
				ID:        u.ID,
				Username:  u.Username,
				Email:     u.Email,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Enabled:   u.Enabled,
			})
		}

		if len(page) < batchSize {
			break
		}
	}

	return out, nil
}

// TestConnection performs the count probe and reports whether the admin
// API is reachable and the credentials are accepted. It never returns an
// error; any failure is reported as false.
func (c *Client) TestConnection(ctx context.Context) bool {
	var count int

	path := fmt.Sprintf("/admin/realms/%s/users/count?enabled=true", url.PathEscape(c.cfg.Realm))

	return c.adminGet(ctx, path, &count) == nil
}
