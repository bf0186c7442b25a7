package genaisvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assistant"
)

type geminiGenerator struct {
	conf core.AssistantConfig

	mu     sync.Mutex
	client *genai.Client
}

var _ assistant.Generator = (*geminiGenerator)(nil)

// NewGemini returns a Generator backed by the Gemini API. The client is created on first use.
func NewGemini(conf core.AssistantConfig) assistant.Generator {
	return &geminiGenerator{conf: conf}
}

func (g *geminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.conf.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating Gemini client")
	}
	g.client = client
	return client, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, p assistant.Prompt) (assistant.Completion, error) {
	ctx, cancel := withTimeout(ctx, g.conf.Timeout)
	defer cancel()

	client, err := g.getClient(ctx)
	if err != nil {
		return assistant.Completion{}, err
	}

	temp := temperature(p, g.conf)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(g.conf.MaxOutputTokens),
	}
	if p.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	if p.JSON {
		config.ResponseMIMEType = "application/json"
	}

	result, err := client.Models.GenerateContent(ctx, g.conf.Model, genai.Text(p.User), config)
	if err != nil {
		return assistant.Completion{}, errors.Wrap(err, "calling Gemini")
	}
	if result == nil || len(result.Candidates) == 0 {
		return assistant.Completion{}, errors.New("empty response from Gemini")
	}

	comp := assistant.Completion{Text: result.Text(), Model: g.conf.Model}
	if result.ModelVersion != "" {
		comp.Model = result.ModelVersion
	}
	if u := result.UsageMetadata; u != nil {
		comp.PromptTokens = int(u.PromptTokenCount)
		comp.CompletionTokens = int(u.CandidatesTokenCount)
	}
	return comp, nil
}
