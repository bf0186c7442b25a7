// Package genaisvc implements assistant.Generator over generative model providers.
package genaisvc

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assistant"
)

// Providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderEcho   = "echo"
)

// New returns the Generator of the configured provider.
func New(conf core.AssistantConfig) (assistant.Generator, error) {
	switch conf.Provider {
	case ProviderGemini:
		if conf.APIKey == "" {
			return nil, errors.New("the gemini provider needs an API key")
		}
		return NewGemini(conf), nil
	case ProviderOpenAI:
		if conf.APIKey == "" {
			return nil, errors.New("the openai provider needs an API key")
		}
		return NewOpenAI(conf), nil
	case ProviderEcho, "":
		return NewEcho(), nil
	default:
		return nil, errors.Errorf("unknown assistant provider %q", conf.Provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// temperature prefers the prompt's own temperature over the configured default.
func temperature(p assistant.Prompt, conf core.AssistantConfig) float32 {
	if p.Temperature > 0 {
		return p.Temperature
	}
	return conf.Temperature
}
