// Package qbo is a minimal QuickBooks Online REST client: paginated entity
// queries, entity creation, single-object reads and OAuth2 token refresh.
package qbo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qbcopy-dev/qbcopy/internal/config"
)

const (
	sandboxAPIBase    = "https://sandbox-quickbooks.api.intuit.com"
	productionAPIBase = "https://quickbooks.api.intuit.com"
	tokenEndpoint     = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// minorVersion pins the API revision the entity schemas were written
	// against.
	minorVersion = "75"

	defaultPageSize = 1000
)

// Client is an authenticated QuickBooks client for one company (realm).
type Client struct {
	httpClient   *http.Client
	apiBase      string
	tokenURL     string
	clientID     string
	clientSecret string
	companyID    string
	redirectURI  string

	accessToken  string
	refreshToken string

	onTokens func(accessToken, refreshToken string) error
	log      *slog.Logger
	pageSize int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API host. Used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimSuffix(base, "/") }
}

// WithTokenURL points token refresh at a different endpoint. Used by tests.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithTokenSaver registers a hook invoked after every successful token
// refresh so new tokens can be persisted.
func WithTokenSaver(fn func(accessToken, refreshToken string) error) Option {
	return func(c *Client) { c.onTokens = fn }
}

// WithLogger replaces the client's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithPageSize overrides the query page size. Used by tests.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// New creates a Client for a company block from credentials.yml.
func New(clientID, clientSecret string, company config.Company, opts ...Option) *Client {
	apiBase := sandboxAPIBase
	if company.Environment == config.EnvProduction {
		apiBase = productionAPIBase
	}
	c := &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		apiBase:      apiBase,
		tokenURL:     tokenEndpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		companyID:    company.CompanyID,
		redirectURI:  company.RedirectURI,
		accessToken:  company.AccessToken,
		refreshToken: company.RefreshToken,
		log:          slog.Default(),
		pageSize:     defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompanyID returns the realm ID the client operates on.
func (c *Client) CompanyID() string { return c.companyID }

// Query fetches every entity of one type matching an optional WHERE clause,
// following STARTPOSITION/MAXRESULTS pagination until a short page.
func Query[T any](ctx context.Context, c *Client, entity, where string) ([]T, error) {
	var all []T
	for start := 1; ; start += c.pageSize {
		stmt := "SELECT * FROM " + entity
		if where != "" {
			stmt += " WHERE " + where
		}
		stmt += fmt.Sprintf(" STARTPOSITION %d MAXRESULTS %d", start, c.pageSize)

		var env struct {
			QueryResponse map[string]json.RawMessage `json:"QueryResponse"`
		}
		q := url.Values{"query": {stmt}}
		if err := c.do(ctx, http.MethodGet, c.companyPath("query"), q, nil, &env); err != nil {
			return nil, fmt.Errorf("querying %s: %w", entity, err)
		}

		raw, ok := env.QueryResponse[entity]
		if !ok {
			break
		}
		var batch []T
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("decoding %s query response: %w", entity, err)
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}
	c.log.Debug("query complete", "entity", entity, "count", len(all))
	return all, nil
}

// Create submits a new entity to the company and returns the created object
// with its server-assigned ID.
func Create[T any](ctx context.Context, c *Client, entity string, payload T) (T, error) {
	var zero T
	q := url.Values{
		"minorversion": {minorVersion},
		// requestid makes the create idempotent on the QuickBooks side.
		"requestid": {uuid.NewString()},
	}

	var env map[string]json.RawMessage
	path := c.companyPath(strings.ToLower(entity))
	if err := c.do(ctx, http.MethodPost, path, q, payload, &env); err != nil {
		return zero, err
	}

	raw, ok := env[entity]
	if !ok {
		return zero, fmt.Errorf("create %s: response missing %q object", entity, entity)
	}
	var created T
	if err := json.Unmarshal(raw, &created); err != nil {
		return zero, fmt.Errorf("decoding created %s: %w", entity, err)
	}
	return created, nil
}

// Get reads a single entity by ID.
func Get[T any](ctx context.Context, c *Client, entity, id string) (T, error) {
	var zero T
	q := url.Values{"minorversion": {minorVersion}}

	var env map[string]json.RawMessage
	path := c.companyPath(strings.ToLower(entity) + "/" + url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return zero, err
	}

	raw, ok := env[entity]
	if !ok {
		return zero, fmt.Errorf("get %s %s: response missing %q object", entity, id, entity)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decoding %s %s: %w", entity, id, err)
	}
	return out, nil
}

func (c *Client) companyPath(suffix string) string {
	return "/v3/company/" + url.PathEscape(c.companyID) + "/" + suffix
}

// do performs one API request, refreshing tokens and replaying once on a
// 401 response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, respBody, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Info("access token rejected, refreshing", "company_id", c.companyID)
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		resp, respBody, err = c.send(ctx, method, path, query, body)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, resp.Header.Get("intuit_tid"), respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, []byte, error) {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp, respBody, nil
}

// Refresh exchanges the refresh token for a new token pair and invokes the
// token saver, if any.
func (c *Client) Refresh(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refreshing tokens: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &AuthError{Err: parseAPIError(resp.StatusCode, resp.Header.Get("intuit_tid"), respBody)}
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("token refresh returned no access token")
	}

	c.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		c.refreshToken = tokens.RefreshToken
	}
	c.log.Info("refreshed tokens", "company_id", c.companyID)

	if c.onTokens != nil {
		if err := c.onTokens(c.accessToken, c.refreshToken); err != nil {
			c.log.Warn("failed to persist refreshed tokens", "error", err)
		}
	}
	return nil
}
