// Package credentials manages the OAuth credential document that another
// tool (the Claude Code CLI) owns on disk. This gateway only reads it and,
// when the access token is expiring, refreshes it in place — preserving
// every sibling key the file carries.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/howard-nolan/claude-gateway/internal/metrics"
)

const (
	// refreshEndpoint is Anthropic's OAuth token refresh endpoint.
	refreshEndpoint = "https://api.anthropic.com/v1/oauth/token"

	// expiryBuffer is how far ahead of the real expiry we treat a token as
	// stale, so a request never races the upstream's own expiry check.
	expiryBuffer = 5 * time.Minute

	// refreshTimeout bounds the OAuth HTTP call itself (spec.md §4.3 step 5).
	refreshTimeout = 10 * time.Second

	// refreshCooldown prevents a broken refresh endpoint from being hammered
	// once per incoming request (spec.md §4.3 step 4 / §9 OAuth cooldown).
	refreshCooldown = 60 * time.Second

	// singleflightKey is constant because there is exactly one credentials
	// document for the whole process — every concurrent refresh call
	// coalesces onto it.
	singleflightKey = "oauth-refresh"
)

type oauthData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Manager owns reading, refreshing, and rewriting the credentials file.
type Manager struct {
	path      string
	endpoint  string
	client    *http.Client
	logger    *zap.Logger
	collector *metrics.Collector

	group singleflight.Group

	mu            sync.Mutex
	lastFailureAt time.Time
}

// New creates a credential Manager for the file at path.
func New(path string, logger *zap.Logger) *Manager {
	return &Manager{
		path:     path,
		endpoint: refreshEndpoint,
		client:   &http.Client{Timeout: refreshTimeout},
		logger:   logger.With(zap.String("component", "oauth")),
	}
}

// WithEndpoint overrides the OAuth refresh endpoint URL, for tests.
func (m *Manager) WithEndpoint(url string) *Manager {
	m.endpoint = url
	return m
}

// WithCollector attaches a metrics collector so every refresh attempt is
// recorded. Optional — a Manager with no collector just skips recording.
func (m *Manager) WithCollector(collector *metrics.Collector) *Manager {
	m.collector = collector
	return m
}

// CurrentAccessToken implements spec.md §4.3's currentAccessToken(): it
// returns a still-valid token without any I/O beyond a file read, or
// refreshes once for all concurrent callers when the token is expiring.
func (m *Manager) CurrentAccessToken(ctx context.Context) (string, error) {
	doc, err := m.read()
	if err != nil {
		return "", nil // "no token" — never fails the caller, per spec.md §4.3 step 1/7.
	}

	if !m.isExpiring(doc.OAuth) {
		return doc.OAuth.AccessToken, nil
	}

	// Single-flight: every concurrent caller that observes an expiring
	// token joins the same in-flight refresh instead of issuing its own
	// HTTPS call (spec.md §4.3 step 3, §8 "single-flight refresh").
	v, _, _ := m.group.Do(singleflightKey, func() (any, error) {
		return m.refreshOnce(ctx)
	})
	return v.(string), nil
}

// HasCredentials reports whether the file exists and carries a non-empty
// access token, without ever triggering a refresh (spec.md §4.3 "Probe").
func (m *Manager) HasCredentials() bool {
	doc, err := m.read()
	if err != nil {
		return false
	}
	return doc.OAuth.AccessToken != ""
}

func (m *Manager) isExpiring(o oauthData) bool {
	if o.ExpiresAt == 0 {
		return true
	}
	remaining := time.Until(time.UnixMilli(o.ExpiresAt))
	return remaining <= expiryBuffer
}

// refreshOnce re-reads the file (another process may have already
// refreshed it while we waited to acquire the singleflight slot), honors
// the failure cooldown, and otherwise performs the HTTP refresh.
func (m *Manager) refreshOnce(ctx context.Context) (string, error) {
	doc, err := m.read()
	if err != nil {
		return "", nil
	}
	if !m.isExpiring(doc.OAuth) {
		m.logger.Debug("token already refreshed by another caller")
		return doc.OAuth.AccessToken, nil
	}
	if doc.OAuth.RefreshToken == "" {
		m.logger.Warn("no refresh token available")
		return doc.OAuth.AccessToken, nil
	}

	m.mu.Lock()
	inCooldown := !m.lastFailureAt.IsZero() && time.Since(m.lastFailureAt) < refreshCooldown
	m.mu.Unlock()
	if inCooldown {
		m.logger.Warn("refresh in cooldown after recent failure, returning stale token")
		return doc.OAuth.AccessToken, nil
	}

	newToken, newExpiry, newRefresh, err := m.callRefreshEndpoint(ctx, doc.OAuth.RefreshToken)
	if err != nil {
		m.mu.Lock()
		m.lastFailureAt = time.Now()
		m.mu.Unlock()
		m.logger.Error("refresh failed", zap.Error(err))
		m.observeRefresh(false)
		return doc.OAuth.AccessToken, nil
	}

	doc.OAuth.AccessToken = newToken
	doc.OAuth.ExpiresAt = newExpiry
	if newRefresh != "" {
		doc.OAuth.RefreshToken = newRefresh
	}
	if err := m.write(doc); err != nil {
		m.logger.Error("failed to persist refreshed credentials", zap.Error(err))
	}

	m.mu.Lock()
	m.lastFailureAt = time.Time{}
	m.mu.Unlock()
	m.logger.Info("token refreshed successfully")
	m.observeRefresh(true)
	return doc.OAuth.AccessToken, nil
}

func (m *Manager) observeRefresh(success bool) {
	if m.collector != nil {
		m.collector.ObserveOAuthRefresh(success)
	}
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (m *Manager) callRefreshEndpoint(ctx context.Context, refreshToken string) (token string, expiresAtMs int64, newRefresh string, err error) {
	body, err := json.Marshal(refreshRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
	if err != nil {
		return "", 0, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, "", &httpStatusError{status: resp.StatusCode}
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, "", err
	}
	if parsed.ExpiresIn == 0 {
		parsed.ExpiresIn = 3600
	}
	return parsed.AccessToken, time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second).UnixMilli(), parsed.RefreshToken, nil
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}

func (m *Manager) read() (*fullDocument, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var full fullDocument
	if err := json.Unmarshal(data, &full.raw); err != nil {
		return nil, err
	}
	if oauthRaw, ok := full.raw["claudeAiOauth"]; ok {
		_ = json.Unmarshal(oauthRaw, &full.OAuth)
	}
	return &full, nil
}

func (m *Manager) write(full *fullDocument) error {
	oauthRaw, err := json.Marshal(full.OAuth)
	if err != nil {
		return err
	}
	if full.raw == nil {
		full.raw = map[string]json.RawMessage{}
	}
	full.raw["claudeAiOauth"] = oauthRaw

	data, err := json.MarshalIndent(full.raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o600)
}

// fullDocument preserves every sibling key in the credentials file across
// a rewrite — only the claudeAiOauth sub-object is ever touched.
type fullDocument struct {
	raw   map[string]json.RawMessage
	OAuth oauthData
}
