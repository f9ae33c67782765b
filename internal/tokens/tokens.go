// Package tokens obtains QuickBooks OAuth2 token pairs through the
// authorization-code flow: a local HTTP server captures the callback while
// the user authorizes the app in a browser.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	authorizeEndpoint = "https://appcenter.intuit.com/connect/oauth2"
	bearerEndpoint    = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
)

// scopes requested during authorization. Accounting covers the entity APIs;
// the rest identify the authorizing user.
var scopes = []string{
	"com.intuit.quickbooks.accounting",
	"openid",
	"email",
	"profile",
}

// Pair is an access/refresh token pair from a completed exchange.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Flow drives one authorization-code exchange for one company.
type Flow struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthorizeURL and TokenURL default to the Intuit endpoints.
	AuthorizeURL string
	TokenURL     string

	// OpenBrowser launches the authorization URL. When nil the URL is only
	// reported through Notify and the user opens it by hand.
	OpenBrowser func(url string) error

	// Notify receives user-facing progress messages.
	Notify func(msg string)

	HTTPClient *http.Client

	// listener is replaceable in tests.
	listener net.Listener
}

// Run starts a callback server on the redirect URI's host, directs the user
// to the authorization URL, waits for the callback, and exchanges the code
// for tokens.
func (f *Flow) Run(ctx context.Context) (Pair, error) {
	u, err := url.Parse(f.RedirectURI)
	if err != nil {
		return Pair{}, fmt.Errorf("parsing redirect URI %q: %w", f.RedirectURI, err)
	}
	if u.Host == "" {
		return Pair{}, fmt.Errorf("redirect URI %q has no host", f.RedirectURI)
	}

	state, err := randomState()
	if err != nil {
		return Pair{}, err
	}

	ln := f.listener
	if ln == nil {
		ln, err = net.Listen("tcp", u.Host)
		if err != nil {
			return Pair{}, fmt.Errorf("listening for OAuth callback on %s: %w", u.Host, err)
		}
	}

	type callback struct {
		code string
		err  error
	}
	result := make(chan callback, 1)

	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "Authorization failed: state mismatch.", http.StatusBadRequest)
			result <- callback{err: errors.New("authorization callback state mismatch")}
		case q.Get("code") == "":
			http.Error(w, "Authorization failed: no code received.", http.StatusBadRequest)
			result <- callback{err: errors.New("authorization callback carried no code")}
		default:
			fmt.Fprint(w, "Authorization successful! You can close this window.")
			result <- callback{code: q.Get("code")}
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	authURL := f.AuthorizationURL(state)
	f.notify("Open this URL to authorize access:\n  " + authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			f.notify("Could not open a browser automatically: " + err.Error())
		}
	}

	select {
	case <-ctx.Done():
		return Pair{}, ctx.Err()
	case cb := <-result:
		if cb.err != nil {
			return Pair{}, cb.err
		}
		return f.exchange(ctx, cb.code)
	}
}

// AuthorizationURL builds the URL the user visits to grant access.
func (f *Flow) AuthorizationURL(state string) string {
	base := f.AuthorizeURL
	if base == "" {
		base = authorizeEndpoint
	}
	q := url.Values{
		"client_id":     {f.ClientID},
		"redirect_uri":  {f.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
	}
	return base + "?" + q.Encode()
}

// exchange trades the authorization code for a token pair.
func (f *Flow) exchange(ctx context.Context, code string) (Pair, error) {
	tokenURL := f.TokenURL
	if tokenURL == "" {
		tokenURL = bearerEndpoint
	}
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {f.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Pair{}, err
	}
	req.SetBasicAuth(f.ClientID, f.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return Pair{}, fmt.Errorf("exchanging authorization code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Pair{}, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Pair{}, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return Pair{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return Pair{}, errors.New("token exchange returned an incomplete token pair")
	}
	return Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (f *Flow) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (f *Flow) notify(msg string) {
	if f.Notify != nil {
		f.Notify(msg)
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Browser opens url in the system's default browser.
func Browser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
