package wake

import "context"

// Provider sends the minimal request that touches a model's usage quota.
type Provider interface {
	Name() string
	Wake(ctx context.Context, model, prompt string) error
}
