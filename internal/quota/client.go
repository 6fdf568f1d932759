package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/mezame/internal/config"
	mezameErrors "github.com/harunnryd/mezame/internal/errors"

	"github.com/oklog/ulid/v2"
)

// TokenSource yields a valid bearer token. auth.Manager satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ModelQuota is one model's usage window as reported by the cloud API.
type ModelQuota struct {
	Model       string    `json:"model"`
	DisplayName string    `json:"display_name,omitempty"`
	PercentUsed float64   `json:"percent_used"`
	ResetAt     time.Time `json:"reset_at"`
}

// Client speaks the quota/chat API: model listing, project resolution, and a
// minimal content-generation call. Every response degrades to a typed failure
// on non-200 status or malformed JSON.
type Client struct {
	baseURL   string
	userAgent string
	tokens    TokenSource
	http      *http.Client
}

func NewClient(cfg config.WakeConfig, tokens TokenSource) (*Client, error) {
	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultWakeRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse wake request timeout: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultWakeBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultWakeUserAgent
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		tokens:    tokens,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type listModelsResponse struct {
	Models []struct {
		ID          string  `json:"id"`
		DisplayName string  `json:"displayName"`
		PercentUsed float64 `json:"percentUsed"`
		ResetTime   string  `json:"resetTime"`
	} `json:"models"`
}

// ListModels fetches the live quota snapshot.
func (c *Client) ListModels(ctx context.Context) ([]ModelQuota, error) {
	var parsed listModelsResponse
	if err := c.call(ctx, "listModels", map[string]interface{}{}, &parsed); err != nil {
		return nil, err
	}

	models := make([]ModelQuota, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		mq := ModelQuota{
			Model:       m.ID,
			DisplayName: m.DisplayName,
			PercentUsed: m.PercentUsed,
		}
		if m.ResetTime != "" {
			if resetAt, err := time.Parse(time.RFC3339, m.ResetTime); err == nil {
				mq.ResetAt = resetAt
			}
		}
		models = append(models, mq)
	}
	return models, nil
}

type loadProjectResponse struct {
	CloudProjectID string `json:"cloudaicompanionProject"`
}

// ResolveProject asks the metadata endpoint for the companion project ID. When
// the API has none, a locally generated placeholder keeps the trigger usable.
func (c *Client) ResolveProject(ctx context.Context) (string, error) {
	var parsed loadProjectResponse
	if err := c.call(ctx, "loadProject", map[string]interface{}{
		"metadata": map[string]string{"pluginType": "mezame"},
	}, &parsed); err != nil {
		return "", err
	}
	if parsed.CloudProjectID == "" {
		return PlaceholderProjectID(), nil
	}
	return parsed.CloudProjectID, nil
}

// PlaceholderProjectID generates a local stand-in project identifier.
func PlaceholderProjectID() string {
	return "local-" + ulid.Make().String()
}

type generateResponse struct {
	Response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	} `json:"response"`
}

// Generate sends the minimal completion that keeps a quota window alive.
func (c *Client) Generate(ctx context.Context, projectID, model, prompt string) (string, error) {
	if prompt == "" {
		prompt = config.DefaultWakePrompt
	}

	body := map[string]interface{}{
		"project": projectID,
		"model":   model,
		"request": map[string]interface{}{
			"contents": []map[string]interface{}{
				{
					"role":  "user",
					"parts": []map[string]string{{"text": prompt}},
				},
			},
		},
	}

	var parsed generateResponse
	if err := c.call(ctx, "generateContent", body, &parsed); err != nil {
		return "", err
	}

	for _, cand := range parsed.Response.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", nil
}

func (c *Client) call(ctx context.Context, method string, body interface{}, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s:%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, mezameErrors.ErrTransient)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read body: %w", method, mezameErrors.ErrTransient)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s returned %d: %w", method, resp.StatusCode, mezameErrors.ErrReauthRequired)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %w", method, resp.StatusCode, mezameErrors.ErrTransient)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s returned malformed JSON: %w", method, mezameErrors.ErrTransient)
	}
	return nil
}
