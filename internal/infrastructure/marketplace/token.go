package marketplace

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

	"github.com/shopscan/backend/internal/domain"
	"go.uber.org/zap"
)

// tokenSafetyMargin is subtracted from the reported TTL when checking
// liveness, so a token is never handed out moments before it expires.
const tokenSafetyMargin = 300 * time.Second

// credential is an immutable token snapshot. A stale credential is replaced
// atomically under the tokenSource mutex, never mutated in place.
type credential struct {
	token     string
	expiresAt time.Time
}

func (c *credential) live(now time.Time) bool {
	return c != nil && c.token != "" && now.Before(c.expiresAt.Add(-tokenSafetyMargin))
}

// tokenResponse is the wire format of the token endpoint
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type,omitempty"`
}

// tokenSource obtains and caches a bearer token for the marketplace API using
// the OAuth2 client-credentials flow. It holds at most one credential.
//
// The mutex is held across the exchange call, which gives single-flight
// refresh semantics: concurrent callers observing a stale credential block on
// the one in-progress exchange and are then served by its result, so at most
// one token exchange is in flight process-wide.
type tokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	logger       *zap.Logger

	mu   sync.Mutex
	cred *credential
}

func newTokenSource(httpClient *http.Client, baseURL, clientID, clientSecret string, logger *zap.Logger) *tokenSource {
	return &tokenSource{
		httpClient:   httpClient,
		tokenURL:     fmt.Sprintf("%s/token/", baseURL),
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        "public_data",
		logger:       logger,
	}
}

// Token returns a live bearer token, refreshing it through the token endpoint
// when the cached credential is missing or within the safety margin of its
// expiry. A cache hit performs no network call. Failures are not retried
// here; retry policy belongs to the caller.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cred.live(time.Now()) {
		return ts.cred.token, nil
	}

	cred, err := ts.exchange(ctx)
	if err != nil {
		return "", err
	}

	ts.cred = cred
	return cred.token, nil
}

// exchange performs the client-credentials grant against the token endpoint
func (ts *tokenSource) exchange(ctx context.Context) (*credential, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.clientID)
	form.Set("scope", ts.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	req.SetBasicAuth(ts.clientID, ts.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		ts.logger.Warn("token exchange rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrAuthFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", domain.ErrAuthFailed, err)
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: malformed token response", domain.ErrAuthFailed)
	}

	ts.logger.Debug("marketplace token refreshed",
		zap.Int64("expires_in", tr.ExpiresIn))

	return &credential{
		token:     tr.AccessToken,
		expiresAt: time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
