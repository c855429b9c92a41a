package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLLMClient(baseURL string) *LLMClient {
	return &LLMClient{
		apiKey:        "test-key",
		model:         "mistral-large-latest",
		baseURL:       baseURL,
		maxPromptSize: 16 << 10,
		retries:       3,
		retryDelay:    time.Millisecond,
		httpClient:    http.DefaultClient,
	}
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestParseIntentSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		chatReply(t, w, `{"action":"download_and_trim","video_url":"https://example.com/v","start_time":10,"end_time":20,"use_last_video":false,"confidence":0.92}`)
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	intent, exchange, err := c.ParseIntent(context.Background(), "cut https://example.com/v from 10 to 20", nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)

	assert.Equal(t, ActionDownloadAndTrim, intent.Action)
	assert.Equal(t, "https://example.com/v", intent.VideoURL)
	require.NotNil(t, intent.StartTime)
	require.NotNil(t, intent.EndTime)
	assert.Equal(t, 10, *intent.StartTime)
	assert.Equal(t, 20, *intent.EndTime)
	assert.InDelta(t, 0.92, intent.Confidence, 1e-9)

	assert.Equal(t, http.StatusOK, exchange.Status)
	assert.False(t, exchange.Truncated)
}

func TestParseIntentIncludesMemoryContext(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		chatReply(t, w, `{"action":"trim","video_url":null,"start_time":0,"end_time":5,"use_last_video":true,"confidence":0.9}`)
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	memory := &VideoMemory{URL: "https://example.com/last", Title: "Last clip", Duration: 120}

	intent, _, err := c.ParseIntent(context.Background(), "first 5 seconds of this video", memory)
	require.NoError(t, err)
	assert.True(t, intent.UseLastVideo)

	require.Len(t, gotReq.Messages, 2)
	assert.Contains(t, gotReq.Messages[0].Content, "https://example.com/last")
	assert.Contains(t, gotReq.Messages[0].Content, "Last clip")
}

func TestParseIntentRetriesRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatReply(t, w, `{"action":"download","video_url":"https://example.com/v","start_time":null,"end_time":null,"use_last_video":false,"confidence":0.8}`)
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	intent, _, err := c.ParseIntent(context.Background(), "https://example.com/v", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, ActionDownload, intent.Action)
}

func TestParseIntentAuthFailureNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	_, exchange, err := c.ParseIntent(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusUnauthorized, llmErr.Status)
	assert.Equal(t, http.StatusUnauthorized, exchange.Status)
}

func TestParseIntentMalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "sorry, I cannot answer in JSON")
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	_, _, err := c.ParseIntent(context.Background(), "hello", nil)

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
}

func TestParseIntentRejectsInvalidSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"action":"explode","video_url":null,"start_time":null,"end_time":null,"use_last_video":false,"confidence":0.9}`)
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	_, _, err := c.ParseIntent(context.Background(), "hello", nil)

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
}

func TestParseIntentNoChoices(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := testLLMClient(server.URL)
	_, _, err := c.ParseIntent(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestTruncatePrompt(t *testing.T) {
	s, truncated := truncatePrompt("short", 100)
	assert.Equal(t, "short", s)
	assert.False(t, truncated)

	// Cyrillic runes are two bytes; the cut never splits one.
	s, truncated = truncatePrompt(strings.Repeat("я", 10), 5)
	assert.Equal(t, "яяяя", s)
	assert.True(t, truncated)

	s, truncated = truncatePrompt("anything", 0)
	assert.Equal(t, "anything", s)
	assert.False(t, truncated)
}

func TestValidIntent(t *testing.T) {
	assert.True(t, validIntent(&Intent{Action: ActionDownload, Confidence: 0.5}))
	assert.True(t, validIntent(&Intent{Action: ActionTrim, Confidence: 0}))
	assert.True(t, validIntent(&Intent{Action: ActionDownloadAndTrim, Confidence: 1}))
	assert.False(t, validIntent(&Intent{Action: ActionUnknown, Confidence: 0.5}))
	assert.False(t, validIntent(&Intent{Action: "", Confidence: 0.5}))
	assert.False(t, validIntent(&Intent{Action: ActionDownload, Confidence: 1.5}))
	assert.False(t, validIntent(&Intent{Action: ActionDownload, Confidence: -0.1}))
}

func TestFallbackIntent(t *testing.T) {
	t.Run("plain link", func(t *testing.T) {
		intent := fallbackIntent("https://example.com/v")
		assert.Equal(t, ActionDownload, intent.Action)
		assert.Equal(t, "https://example.com/v", intent.VideoURL)
		assert.InDelta(t, 0.3, intent.Confidence, 1e-9)
	})

	t.Run("trailing punctuation stripped", func(t *testing.T) {
		intent := fallbackIntent("look at this: https://example.com/v.")
		assert.Equal(t, "https://example.com/v", intent.VideoURL)
	})

	t.Run("link with time range", func(t *testing.T) {
		intent := fallbackIntent("cut https://example.com/clip from 10 to 20")
		assert.Equal(t, ActionDownloadAndTrim, intent.Action)
		require.NotNil(t, intent.StartTime)
		require.NotNil(t, intent.EndTime)
		assert.Equal(t, 10, *intent.StartTime)
		assert.Equal(t, 20, *intent.EndTime)
	})

	t.Run("russian trim of the last video", func(t *testing.T) {
		intent := fallbackIntent("обрежь это видео с 1:30 до 2:45")
		assert.Equal(t, ActionTrim, intent.Action)
		assert.True(t, intent.UseLastVideo)
		require.NotNil(t, intent.StartTime)
		require.NotNil(t, intent.EndTime)
		assert.Equal(t, 90, *intent.StartTime)
		assert.Equal(t, 165, *intent.EndTime)
	})

	t.Run("reversed range ignored", func(t *testing.T) {
		intent := fallbackIntent("clip from 20 to 10")
		// The keyword alone still marks a trim request.
		assert.Equal(t, ActionTrim, intent.Action)
		assert.Nil(t, intent.StartTime)
		assert.Nil(t, intent.EndTime)
	})

	t.Run("unintelligible", func(t *testing.T) {
		intent := fallbackIntent("what is the weather like")
		assert.Equal(t, ActionUnknown, intent.Action)
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"90", 90, true},
		{"0", 0, true},
		{"1:30", 90, true},
		{"2:45", 165, true},
		{"1:02:03", 3723, true},
		{"1:2:3:4", 0, false},
		{"abc", 0, false},
		{"-5", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
