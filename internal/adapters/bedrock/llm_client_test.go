package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestCompleteClaude(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"[]"}],"stop_reason":"end_turn"}`}
	c := NewBedrockClient(inv, "anthropic.claude-3-haiku-20240307-v1:0", 500, 0.1, 0.9, nil)

	text, err := c.Complete(context.Background(), "sys", "classify this")
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", *inv.input.ModelId)

	var payload struct {
		Version   string `json:"anthropic_version"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(inv.input.Body, &payload))
	assert.Equal(t, anthropicVersion, payload.Version)
	assert.Equal(t, 500, payload.MaxTokens)
	assert.Equal(t, "sys", payload.System)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "user", payload.Messages[0].Role)
	assert.Equal(t, "classify this", payload.Messages[0].Content[0].Text)
}

func TestCompleteClaudeInferenceProfile(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"ok"}]}`}
	c := NewBedrockClient(inv, "us.anthropic.claude-3-5-sonnet-20240620-v1:0", 100, 0, 1, nil)
	text, err := c.Complete(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestCompleteTitan(t *testing.T) {
	inv := &fakeInvoker{body: `{"results":[{"outputText":"[{\"idx\":0}]"}]}`}
	c := NewBedrockClient(inv, "amazon.titan-text-express-v1", 100, 0, 1, nil)

	text, err := c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `[{"idx":0}]`, text)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(inv.input.Body, &payload))
	assert.Equal(t, "sys\n\nprompt", payload["inputText"])
	assert.Contains(t, payload, "textGenerationConfig")
}

func TestCompleteGeneric(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"output":"a"}`, "a"},
		{`{"text":"b"}`, "b"},
		{`{"response":"c"}`, "c"},
		{`{"other":"d"}`, `{"other":"d"}`},
	}
	for _, tt := range tests {
		c := NewBedrockClient(&fakeInvoker{body: tt.body}, "meta.llama3-8b-instruct-v1:0", 100, 0, 1, nil)
		text, err := c.Complete(context.Background(), "s", "p")
		require.NoError(t, err)
		assert.Equal(t, tt.want, text)
	}
}

func TestCompleteErrors(t *testing.T) {
	c := NewBedrockClient(&fakeInvoker{err: errors.New("throttled")}, "anthropic.claude-v2", 100, 0, 1, nil)
	_, err := c.Complete(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "throttled")

	c = NewBedrockClient(&fakeInvoker{body: `{"content":[]}`}, "anthropic.claude-v2", 100, 0, 1, nil)
	_, err = c.Complete(context.Background(), "s", "p")
	assert.Error(t, err)

	c = NewBedrockClient(&fakeInvoker{body: `{"results":[]}`}, "amazon.titan-text-lite-v1", 100, 0, 1, nil)
	_, err = c.Complete(context.Background(), "s", "p")
	assert.Error(t, err)
}
