package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1715000000,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		LLMAPIKey:              "test-key",
		LLMBaseURL:             srv.URL,
		LLMExtractionModel:     "extract-model",
		LLMClassificationModel: "classify-model",
		LLMGroupingModel:       "group-model",
		LLMDigestModel:         "digest-model",
		LLMRequestTimeout:      5 * time.Second,
	}
	return NewClient(cfg, zap.NewNop())
}

func TestClient_Extract(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody(`{"tasks":[{"name":"Question Answering","evidence":"open-domain question answering","confidence":0.9}],"datasets":[],"methods":[{"name":"RAG","evidence":"retrieval augmented generation","confidence":0.8}],"libraries":[]}`))
	})

	res, err := c.Extract(context.Background(), "We study open-domain question answering with retrieval augmented generation.")
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "Question Answering", res.Tasks[0].Name)
	require.Len(t, res.Methods, 1)
	assert.Equal(t, 0.8, res.Methods[0].Confidence)
	assert.Equal(t, 2, res.Count())

	assert.Equal(t, "extract-model", gotBody["model"])
	format, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestClient_ClassifyAndGroup(t *testing.T) {
	responses := []string{
		`{"tags":[{"tag":"Retrieval/RAG","confidence":0.92},{"tag":"Evaluation/Benchmarks","confidence":0.4}]}`,
		`{"groups":[{"canonical":"Retrieval-Augmented Generation","aliases":["RAG"]}]}`,
	}
	call := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody(responses[call]))
		call++
	})

	tags, err := c.Classify(context.Background(), "abstract")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, models.TagRetrieval, tags[0].Tag)

	groups, err := c.Group(context.Background(), []string{"Retrieval-Augmented Generation", "RAG"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"RAG"}, groups[0].Aliases)
}

func TestClient_RateLimitMapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit","code":"429"}}`)
	})

	_, err := c.Summarize(context.Background(), time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), "- none")
	var rl *models.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(&config.Config{}, zap.NewNop())
	_, err := c.Classify(context.Background(), "abstract")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
