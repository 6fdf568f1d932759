package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"
	"github.com/harunnryd/mezame/internal/host"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, tokenURL string) (*Manager, *host.MemorySecretStore) {
	t.Helper()
	secrets := host.NewMemorySecretStore()
	cfg := config.AuthConfig{
		ClientID: "client-1",
		TokenURL: tokenURL,
	}
	return NewManager(cfg, secrets), secrets
}

func TestManager_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, "")

	creds := &Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		Email:        "dev@example.com",
	}
	require.NoError(t, m.Save(ctx, creds))

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-1", got.AccessToken)
	assert.Equal(t, "dev@example.com", got.Email)
}

func TestManager_GetLoadsFromSecretStore(t *testing.T) {
	ctx := context.Background()
	m, secrets := newManager(t, "")

	blob, _ := json.Marshal(&Credentials{AccessToken: "persisted"})
	require.NoError(t, secrets.Set(ctx, host.KeyCredentialBlob, string(blob)))

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.AccessToken)
}

func TestManager_GetClearsMalformedBlob(t *testing.T) {
	ctx := context.Background()
	m, secrets := newManager(t, "")

	require.NoError(t, secrets.Set(ctx, host.KeyCredentialBlob, "{not json"))

	_, err := m.Get(ctx)
	assert.ErrorIs(t, err, mezameErrors.ErrReauthRequired)

	_, ok, _ := secrets.Get(ctx, host.KeyCredentialBlob)
	assert.False(t, ok, "malformed blob should be deleted")
}

func TestManager_GetMissingCredential(t *testing.T) {
	m, _ := newManager(t, "")
	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, mezameErrors.ErrReauthRequired)
}

func TestManager_IsExpired(t *testing.T) {
	m, _ := newManager(t, "")

	assert.True(t, m.IsExpired(nil))
	assert.True(t, m.IsExpired(&Credentials{AccessToken: "x"}))
	assert.True(t, m.IsExpired(&Credentials{AccessToken: "x", ExpiresAt: time.Now().Add(time.Minute)}),
		"inside the 5m safety buffer counts as expired")
	assert.False(t, m.IsExpired(&Credentials{AccessToken: "x", ExpiresAt: time.Now().Add(time.Hour)}))
}

func TestManager_TokenRefreshesExpired(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "at-new",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	m, _ := newManager(t, srv.URL)
	require.NoError(t, m.Save(ctx, &Credentials{
		AccessToken:  "at-old",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)

	// The refreshed expiry is persisted.
	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.False(t, m.IsExpired(got))
}

func TestManager_TokenValidSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, "http://127.0.0.1:0") // would fail if contacted

	require.NoError(t, m.Save(ctx, &Credentials{
		AccessToken: "at-valid",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at-valid", token)
}

func TestManager_InvalidGrantIsTerminal(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	m, secrets := newManager(t, srv.URL)
	require.NoError(t, m.Save(ctx, &Credentials{
		AccessToken:  "at-old",
		RefreshToken: "rt-revoked",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	_, err := m.Token(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mezameErrors.ErrReauthRequired))

	// Credential is cleared; nothing to silently retry with.
	_, ok, _ := secrets.Get(ctx, host.KeyCredentialBlob)
	assert.False(t, ok)
}

func TestManager_UpdateHelpers(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, "")

	require.NoError(t, m.Save(ctx, &Credentials{AccessToken: "a"}))
	require.NoError(t, m.UpdateProjectID(ctx, "proj-42"))
	require.NoError(t, m.UpdateAccessToken(ctx, "a2", time.Now().Add(time.Hour)))

	got, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "proj-42", got.ProjectID)
	assert.Equal(t, "a2", got.AccessToken)
}
