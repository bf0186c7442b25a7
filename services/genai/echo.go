package genaisvc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/teachhub/backend/core/assistant"
)

// EchoGenerator is an offline Generator for development & tests.
// Queued replies are returned first; afterwards it answers every flow with a
// placeholder object quoting the prompt.
type EchoGenerator struct {
	mu      sync.Mutex
	replies []string
	prompts []assistant.Prompt
}

var _ assistant.Generator = (*EchoGenerator)(nil)

func NewEcho() *EchoGenerator {
	return new(EchoGenerator)
}

// Queue adds replies returned by the next calls, in order.
func (g *EchoGenerator) Queue(replies ...string) {
	g.mu.Lock()
	g.replies = append(g.replies, replies...)
	g.mu.Unlock()
}

// Prompts returns the prompts received so far.
func (g *EchoGenerator) Prompts() []assistant.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	ps := make([]assistant.Prompt, len(g.prompts))
	copy(ps, g.prompts)
	return ps
}

func (g *EchoGenerator) Generate(_ context.Context, p assistant.Prompt) (assistant.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)

	var text string
	if len(g.replies) > 0 {
		text, g.replies = g.replies[0], g.replies[1:]
	} else {
		text = placeholder(p)
	}
	return assistant.Completion{
		Text:             text,
		Model:            "echo",
		PromptTokens:     len(strings.Fields(p.System + " " + p.User)),
		CompletionTokens: len(strings.Fields(text)),
	}, nil
}

// placeholder satisfies the output schema of every flow.
func placeholder(p assistant.Prompt) string {
	quote := strings.TrimSpace(p.User)
	if i := strings.IndexByte(quote, '\n'); i > 0 {
		quote = quote[:i]
	}
	item := []string{quote}
	out := map[string]interface{}{
		"title":                quote,
		"learning_outcomes":    item,
		"introduction":         quote,
		"sections":             []map[string]string{{"heading": "Echo", "content": quote}},
		"activities":           item,
		"assessment_questions": item,
		"summary":              quote,
		"answer":               quote,
		"explanation":          quote,
		"follow_ups":           []string{},
		"suggestions":          item,
		"strengths":            item,
		"concerns":             item,
		"recommendations":      item,
	}
	b, _ := json.Marshal(out)
	return string(b)
}
