package ai

import (
	"context"
	"os"
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRateLimits(t *testing.T) {
	assert.Equal(t, RateLimits{RPM: 10, TPM: 250000, RPD: 250}, getRateLimits("free"))
	assert.Equal(t, 1000, getRateLimits("tier1").RPM)
	assert.Equal(t, 2000, getRateLimits("tier2").RPM)
	assert.Equal(t, getRateLimits("free"), getRateLimits("unknown"))
}

func TestTokenCounterLimits(t *testing.T) {
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 3})

	assert.True(t, tc.CanConsume(50, 1))
	tc.RecordUsage(50, 1)
	assert.False(t, tc.CanConsume(60, 1), "token budget per minute")
	assert.True(t, tc.CanConsume(40, 1))
	tc.RecordUsage(40, 1)
	assert.False(t, tc.CanConsume(1, 1), "request budget per minute")
}

func TestResponseTextAndUsage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("The total is "), genai.Text("42. ")}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
		},
	}
	text := responseText(resp)
	assert.Equal(t, "The total is 42.", text)
	assert.Equal(t, 4, extractTokenUsage(resp, text))

	resp.UsageMetadata = &genai.UsageMetadata{TotalTokenCount: 321}
	assert.Equal(t, 321, extractTokenUsage(resp, text))

	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("  What is the due date? ", "Invoice due 2024-05-01")
	assert.Contains(t, p, "Invoice due 2024-05-01")
	assert.Contains(t, p, "Question: What is the due date?")
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "gemini-2.0-flash", "free")
	assert.Error(t, err)
}

func TestAnswerLive(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	gc, err := NewGeminiClient(context.Background(), key, "gemini-2.0-flash", "free")
	require.NoError(t, err)
	defer gc.Close()

	ans, err := gc.Answer(context.Background(), "What colour is the sky in the document?", "The sky in this story is green.")
	require.NoError(t, err)
	assert.NotEmpty(t, ans.Text)
}
