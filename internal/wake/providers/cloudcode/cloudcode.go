package cloudcode

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/mezame/internal/quota"
)

// Provider wakes models through the cloud companion API. The companion project
// ID is resolved once and reused; a failed resolution degrades to a local
// placeholder rather than blocking the wake.
type Provider struct {
	client *quota.Client

	mu        sync.Mutex
	projectID string
}

func New(client *quota.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "cloudcode"
}

func (p *Provider) Wake(ctx context.Context, model, prompt string) error {
	projectID, err := p.project(ctx)
	if err != nil {
		return err
	}
	if _, err := p.client.Generate(ctx, projectID, model, prompt); err != nil {
		return fmt.Errorf("wake %s: %w", model, err)
	}
	return nil
}

// SetProjectID seeds the cached project, bypassing resolution. Used when the
// ID is already persisted from an earlier run.
func (p *Provider) SetProjectID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projectID = id
}

func (p *Provider) project(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.projectID != "" {
		return p.projectID, nil
	}

	id, err := p.client.ResolveProject(ctx)
	if err != nil {
		id = quota.PlaceholderProjectID()
	}
	p.projectID = id
	return id, nil
}
