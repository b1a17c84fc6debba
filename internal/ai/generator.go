package ai

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/ragserver/internal/pkg/retry"
)

type GeneratorConfig struct {
	Model       string
	MaxRetries  int
	BaseDelay   time.Duration
	CallTimeout time.Duration
}

// Generator wraps a chat provider with the model name and retry policy the
// rest of the pipeline should not have to care about.
type Generator struct {
	provider IChatProvider
	cfg      GeneratorConfig
	policy   retry.Policy
}

func NewGenerator(provider IChatProvider, cfg GeneratorConfig) *Generator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	policy := retry.Default()
	policy.MaxAttempts = cfg.MaxRetries
	policy.BaseDelay = cfg.BaseDelay
	return &Generator{provider: provider, cfg: cfg, policy: policy}
}

func (g *Generator) Model() string {
	return g.cfg.Model
}

func (g *Generator) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	var answer string
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
		out, err := g.provider.Complete(callCtx, g.cfg.Model, prompt, temperature)
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
