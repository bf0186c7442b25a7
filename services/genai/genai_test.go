package genaisvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assistant"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.AssistantConfig
		wantErr bool
	}{
		{name: "default", conf: core.AssistantConfig{}},
		{name: "echo", conf: core.AssistantConfig{Provider: ProviderEcho}},
		{name: "gemini", conf: core.AssistantConfig{Provider: ProviderGemini, APIKey: "k", Model: "gemini-2.0-flash"}},
		{name: "gemini without key", conf: core.AssistantConfig{Provider: ProviderGemini}, wantErr: true},
		{name: "openai", conf: core.AssistantConfig{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"}},
		{name: "openai without key", conf: core.AssistantConfig{Provider: ProviderOpenAI}, wantErr: true},
		{name: "unknown", conf: core.AssistantConfig{Provider: "ollama"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen, err := New(tc.conf)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, gen)
		})
	}
}

func TestEchoGenerator(t *testing.T) {
	gen := NewEcho()
	gen.Queue(`{"answer": "queued"}`)

	comp, err := gen.Generate(context.Background(), assistant.Prompt{User: "first line\nsecond line"})
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "queued"}`, comp.Text)
	assert.Equal(t, "echo", comp.Model)

	comp, err = gen.Generate(context.Background(), assistant.Prompt{System: "sys", User: "first line\nsecond line"})
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(comp.Text), &out))
	assert.Equal(t, "first line", out["summary"])
	assert.Equal(t, 5, comp.PromptTokens)
	assert.Len(t, gen.Prompts(), 2)
}

func TestTemperature(t *testing.T) {
	conf := core.AssistantConfig{Temperature: 0.4}
	assert.Equal(t, float32(0.7), temperature(assistant.Prompt{Temperature: 0.7}, conf))
	assert.Equal(t, float32(0.4), temperature(assistant.Prompt{}, conf))
}
