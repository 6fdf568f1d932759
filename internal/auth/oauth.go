package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/harunnryd/mezame/internal/config"
)

const oauthSuccessHTML = "<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\" /><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\" /><title>Authentication successful</title></head><body><p>Authentication successful. Return to your terminal to continue.</p></body></html>"

// LoginInteractive performs the PKCE OAuth flow: local callback server,
// browser hand-off, code exchange. The resulting credential is saved through
// the manager.
func (m *Manager) LoginInteractive(ctx context.Context) (*Credentials, error) {
	timeout, err := config.DurationOrDefault(m.cfg.OAuthTimeout, config.DefaultAuthOAuthTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse oauth timeout: %w", err)
	}

	verifier, challenge, err := generatePKCE()
	if err != nil {
		return nil, fmt.Errorf("pkce generation failed: %w", err)
	}

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("state generation failed: %w", err)
	}

	codeCh := make(chan string, 1)
	server, err := m.startCallbackServer(state, codeCh)
	if err != nil {
		return nil, fmt.Errorf("failed to start local server: %w", err)
	}
	defer server.Close()

	authURL := m.buildAuthorizeURL(state, challenge)
	fmt.Printf("Opening browser to: %s\n", authURL)
	if err := openBrowser(authURL); err != nil {
		fmt.Println("Failed to open browser automatically. Please visit the URL above manually.")
	}

	fmt.Println("Waiting for authentication callback...")
	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("authentication timed out")
	}

	if code == "" {
		return nil, fmt.Errorf("received empty authorization code")
	}

	fmt.Println("Exchanging code for token...")
	creds, err := m.exchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	if err := m.Save(ctx, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func generatePKCE() (verifier, challenge string, err error) {
	rnd := make([]byte, 32)
	if _, err := rand.Read(rnd); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(rnd)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func randomState() (string, error) {
	rnd := make([]byte, 16)
	if _, err := rand.Read(rnd); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(rnd), nil
}

func (m *Manager) buildAuthorizeURL(state, challenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", m.cfg.ClientID)
	q.Set("redirect_uri", m.cfg.RedirectURI)
	q.Set("scope", m.cfg.Scope)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return m.cfg.AuthorizeURL + "?" + q.Encode()
}

func (m *Manager) startCallbackServer(expectedState string, codeCh chan<- string) (io.Closer, error) {
	callbackPath, err := callbackPathFromRedirectURI(m.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		if state != expectedState {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing code", http.StatusBadRequest)
			return
		}

		select {
		case codeCh <- code:
		default:
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(oauthSuccessHTML))
	})

	ln, err := net.Listen("tcp", m.cfg.CallbackAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()

	return srv, nil
}

func callbackPathFromRedirectURI(redirectURI string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(redirectURI))
	if err != nil {
		return "", fmt.Errorf("parse redirect URI: %w", err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("redirect URI path is empty")
	}
	return u.EscapedPath(), nil
}

func (m *Manager) exchangeCode(ctx context.Context, code, verifier string) (*Credentials, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", m.cfg.ClientID)
	if m.cfg.ClientSecret != "" {
		form.Set("client_secret", m.cfg.ClientSecret)
	}
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("redirect_uri", m.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token exchange failed: %s", string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, err
	}

	return &Credentials{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
		Scopes:       strings.Fields(m.cfg.Scope),
	}, nil
}

func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default:
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
