package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// defaultTokenTTL applies when the token endpoint omits expires_in.
const defaultTokenTTL = time.Hour

// OAuth2Config configures the client-credentials grant.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OAuth2ClientCredentials implements Strategy using the OAuth2
// client-credentials grant. Tokens are cached until shortly before expiry;
// refreshes are single-flighted so concurrent callers trigger at most one
// network round trip and all share its result.
type OAuth2ClientCredentials struct {
	cfg        OAuth2Config
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *logrus.Logger

	group singleflight.Group
	mu    sync.Mutex
	cred  *Credential
}

// NewOAuth2ClientCredentials creates the strategy. A nil httpClient falls
// back to a dedicated client with a 30s timeout; a nil logger to logrus.New().
func NewOAuth2ClientCredentials(cfg OAuth2Config, httpClient *http.Client, logger *logrus.Logger) *OAuth2ClientCredentials {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OAuth2ClientCredentials{
		cfg:        cfg,
		httpClient: httpClient,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

// SetClock swaps the clock; used by tests to control expiry.
func (o *OAuth2ClientCredentials) SetClock(clock clockwork.Clock) { o.clock = clock }

// Token returns the cached access token, refreshing it when missing,
// expired, or within the expiry buffer.
func (o *OAuth2ClientCredentials) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	cred := o.cred
	o.mu.Unlock()

	if !cred.Expired(o.clock.Now()) {
		return cred.Value, nil
	}
	return o.refresh(ctx)
}

// Apply sets the bearer token on the request.
func (o *OAuth2ClientCredentials) Apply(ctx context.Context, req *http.Request) error {
	token, err := o.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Refresh forces a new token fetch, replacing any cached credential.
func (o *OAuth2ClientCredentials) Refresh(ctx context.Context) error {
	o.mu.Lock()
	o.cred = nil
	o.mu.Unlock()
	_, err := o.refresh(ctx)
	return err
}

// refresh performs the client-credentials POST. All concurrent callers
// funnel through one singleflight execution and receive its result.
func (o *OAuth2ClientCredentials) refresh(ctx context.Context) (string, error) {
	value, err, _ := o.group.Do("token", func() (interface{}, error) {
		// A racing caller may have refreshed while this one queued.
		o.mu.Lock()
		cred := o.cred
		o.mu.Unlock()
		if !cred.Expired(o.clock.Now()) {
			return cred.Value, nil
		}

		cred, err := o.fetchToken(ctx)
		if err != nil {
			return "", err
		}
		o.mu.Lock()
		o.cred = cred
		o.mu.Unlock()
		o.logger.WithField("tokenUrl", o.cfg.TokenURL).Debug("oauth2 access token refreshed")
		return cred.Value, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (o *OAuth2ClientCredentials) fetchToken(ctx context.Context) (*Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", o.cfg.ClientID)
	form.Set("client_secret", o.cfg.ClientSecret)
	if len(o.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(o.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthenticationError{Msg: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Msg: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthenticationError{Msg: "read token response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthenticationError{Msg: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &AuthenticationError{Msg: "decode token response", Err: err}
	}
	if payload.AccessToken == "" {
		return nil, &AuthenticationError{Msg: "token response missing access_token"}
	}

	ttl := defaultTokenTTL
	if payload.ExpiresIn > 0 {
		ttl = time.Duration(payload.ExpiresIn) * time.Second
	}
	return &Credential{
		Value:     payload.AccessToken,
		ExpiresAt: o.clock.Now().Add(ttl),
	}, nil
}
