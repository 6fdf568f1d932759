package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"
	"github.com/harunnryd/mezame/internal/host"
)

// expiryBuffer treats tokens as expired slightly early so an in-flight wake
// call never races the real expiry.
const expiryBuffer = 5 * time.Minute

const refreshTimeout = 30 * time.Second

// Credentials is the OAuth token pair plus the metadata the wake trigger
// needs. It lives in the secret store as one JSON blob.
type Credentials struct {
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	ProjectID    string    `json:"project_id,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Email        string    `json:"email,omitempty"`
}

// Manager is the single owner of the persisted credential. All mutations go
// through it; no other component touches the secret store directly.
type Manager struct {
	cfg     config.AuthConfig
	secrets host.SecretStore
	client  *http.Client

	mu     sync.Mutex
	cached *Credentials
	now    func() time.Time
}

func NewManager(cfg config.AuthConfig, secrets host.SecretStore) *Manager {
	return &Manager{
		cfg:     cfg,
		secrets: secrets,
		client:  &http.Client{Timeout: refreshTimeout},
		now:     time.Now,
	}
}

// Save persists the credential and updates the in-memory cache.
func (m *Manager) Save(ctx context.Context, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := m.secrets.Set(ctx, host.KeyCredentialBlob, string(data)); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}

	m.mu.Lock()
	m.cached = creds
	m.mu.Unlock()
	return nil
}

// Get returns the credential, memory-cache-first. A blob that no longer
// parses is deleted rather than surfaced as a loop of parse errors.
func (m *Manager) Get(ctx context.Context) (*Credentials, error) {
	m.mu.Lock()
	if m.cached != nil {
		creds := m.cached
		m.mu.Unlock()
		return creds, nil
	}
	m.mu.Unlock()

	blob, ok, err := m.secrets.Get(ctx, host.KeyCredentialBlob)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if !ok || blob == "" {
		return nil, mezameErrors.ErrReauthRequired
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(blob), &creds); err != nil {
		slog.Warn("Stored credential blob is malformed, clearing", "error", err)
		m.secrets.Delete(ctx, host.KeyCredentialBlob)
		return nil, mezameErrors.ErrReauthRequired
	}

	m.mu.Lock()
	m.cached = &creds
	m.mu.Unlock()
	return &creds, nil
}

// Clear drops the credential from memory and the secret store.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
	return m.secrets.Delete(ctx, host.KeyCredentialBlob)
}

func (m *Manager) UpdateAccessToken(ctx context.Context, accessToken string, expiresAt time.Time) error {
	creds, err := m.Get(ctx)
	if err != nil {
		return err
	}
	updated := *creds
	updated.AccessToken = accessToken
	updated.ExpiresAt = expiresAt
	return m.Save(ctx, &updated)
}

func (m *Manager) UpdateProjectID(ctx context.Context, projectID string) error {
	creds, err := m.Get(ctx)
	if err != nil {
		return err
	}
	updated := *creds
	updated.ProjectID = projectID
	return m.Save(ctx, &updated)
}

// IsExpired applies the safety buffer; a token with no recorded expiry counts
// as expired.
func (m *Manager) IsExpired(creds *Credentials) bool {
	if creds == nil || creds.AccessToken == "" {
		return true
	}
	if creds.ExpiresAt.IsZero() {
		return true
	}
	return !m.now().Add(expiryBuffer).Before(creds.ExpiresAt)
}

// Token returns a valid access token, refreshing when expired. An
// invalid_grant refresh response is terminal: the credential is cleared and
// the user must re-authorize from scratch.
func (m *Manager) Token(ctx context.Context) (string, error) {
	creds, err := m.Get(ctx)
	if err != nil {
		return "", err
	}

	if !m.IsExpired(creds) {
		return creds.AccessToken, nil
	}

	if creds.RefreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token: %w", mezameErrors.ErrReauthRequired)
	}

	refreshed, err := m.refresh(ctx, creds)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (m *Manager) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", m.clientID(creds))
	if secret := m.clientSecret(creds); secret != "" {
		form.Set("client_secret", secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", mezameErrors.ErrTransient)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("token refresh returned malformed JSON: %w", mezameErrors.ErrTransient)
	}

	if tok.Error == "invalid_grant" {
		slog.Warn("Refresh token revoked, clearing credentials")
		m.Clear(ctx)
		return nil, fmt.Errorf("refresh token revoked: %w", mezameErrors.ErrReauthRequired)
	}
	if resp.StatusCode != http.StatusOK || tok.AccessToken == "" {
		return nil, fmt.Errorf("token refresh failed (%d): %w", resp.StatusCode, mezameErrors.ErrTransient)
	}

	updated := *creds
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	updated.ExpiresAt = m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	if err := m.Save(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (m *Manager) clientID(creds *Credentials) string {
	if creds.ClientID != "" {
		return creds.ClientID
	}
	return m.cfg.ClientID
}

func (m *Manager) clientSecret(creds *Credentials) string {
	if creds.ClientSecret != "" {
		return creds.ClientSecret
	}
	return m.cfg.ClientSecret
}

// SetHTTPClient overrides the refresh transport; tests point it at a local
// server.
func (m *Manager) SetHTTPClient(client *http.Client) {
	m.client = client
}
