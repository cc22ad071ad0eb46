package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoRefreshToken is returned when a refresh is attempted for a token that
// was issued without a refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// DefaultTokenExchangeTimeout bounds calls to Google's token endpoint.
const DefaultTokenExchangeTimeout = 30 * time.Second

// NewOAuthConfig returns the OAuth2 configuration for the Google Calendar
// events scope.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// NewHTTPTransport returns the base transport for all calls to Google.
// HTTP/2 is disabled to avoid the stream errors seen against googleapis.com
// and every request is traced.
func NewHTTPTransport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	return otelhttp.NewTransport(base)
}

// OAuthClient performs the OAuth 2.0 authorization code flow against Google.
type OAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

// NewOAuthClient creates a client for the given configuration.
// If httpClient is nil, a client using NewHTTPTransport is created, bounded
// by DefaultTokenExchangeTimeout.
func NewOAuthClient(config *oauth2.Config, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: NewHTTPTransport(),
			Timeout:   DefaultTokenExchangeTimeout,
		}
	}
	return &OAuthClient{
		config:     config,
		httpClient: httpClient,
		timeout:    DefaultTokenExchangeTimeout,
	}
}

// AuthCodeURL returns the consent URL. access_type=offline and
// prompt=consent make Google issue a refresh token on every authorization.
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades a one-time authorization code for a token.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(c.withHTTPClient(ctx), c.timeout)
	defer cancel()

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Refresh obtains a new access token using the token's refresh token,
// regardless of the current expiry. The refresh token is carried over when
// Google does not rotate it.
func (c *OAuthClient) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(c.withHTTPClient(ctx), c.timeout)
	defer cancel()

	expired := &oauth2.Token{
		RefreshToken: token.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	fresh, err := c.config.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

// TokenSource returns a token source that refreshes token when it expires.
// onRefresh, if non-nil, is called with every token that differs from the
// previous one so callers can persist it.
func (c *OAuthClient) TokenSource(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) oauth2.TokenSource {
	src := c.config.TokenSource(c.withHTTPClient(ctx), token)
	if onRefresh == nil {
		return src
	}
	return &notifyingTokenSource{src: src, last: token.AccessToken, onRefresh: onRefresh}
}

// HTTPClient returns an HTTP client that authorizes every request with ts.
func (c *OAuthClient) HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(c.withHTTPClient(ctx), ts)
}

func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// IsTokenExpired reports whether token has expired or will within threshold.
// Tokens without an expiry never expire.
func IsTokenExpired(token *oauth2.Token, threshold time.Duration) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(token.Expiry)
}

// IsGrantRejected reports whether a refresh failed because Google refused
// the grant, as opposed to a timeout or an unreachable token endpoint.
// Server errors from the token endpoint are not rejections.
func IsGrantRejected(err error) bool {
	if errors.Is(err, ErrNoRefreshToken) {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	return retrieveErr.Response == nil || retrieveErr.Response.StatusCode < http.StatusInternalServerError
}

type notifyingTokenSource struct {
	mu        sync.Mutex
	src       oauth2.TokenSource
	last      string
	onRefresh func(*oauth2.Token)
}

func (s *notifyingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		s.onRefresh(token)
	}
	return token, nil
}
