package genaisvc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assistant"
)

type openAIGenerator struct {
	conf   core.AssistantConfig
	client *openai.Client
}

var _ assistant.Generator = (*openAIGenerator)(nil)

// NewOpenAI returns a Generator backed by the OpenAI chat completions API.
func NewOpenAI(conf core.AssistantConfig) assistant.Generator {
	return &openAIGenerator{conf: conf, client: openai.NewClient(conf.APIKey)}
}

func (g *openAIGenerator) Generate(ctx context.Context, p assistant.Prompt) (assistant.Completion, error) {
	ctx, cancel := withTimeout(ctx, g.conf.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:               g.conf.Model,
		Temperature:         temperature(p, g.conf),
		MaxCompletionTokens: g.conf.MaxOutputTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return assistant.Completion{}, errors.Wrap(err, "calling OpenAI")
	}
	if len(resp.Choices) == 0 {
		return assistant.Completion{}, errors.New("OpenAI returned no choices")
	}
	return assistant.Completion{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
