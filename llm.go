package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const llmSystemPrompt = `You are an assistant that interprets user requests about video processing.
The user may send a video link, ask to cut a clip out of a video, or both in one message.
References like "this video" or "the last video" mean the user's previous video.

Always answer ONLY with JSON of this exact shape:
{
  "action": "download|trim|download_and_trim",
  "video_url": "url or null",
  "start_time": seconds or null,
  "end_time": seconds or null,
  "use_last_video": true or false,
  "confidence": 0.0-1.0
}

Time formats: "from 10 to 20" -> start_time 10, end_time 20; "from 1:30 to 2:45" -> 90 and 165;
"first 5 seconds" -> 0 and 5. If unsure, set confidence below 0.5.`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// LLMClient talks to the hosted chat-completions endpoint in JSON mode.
type LLMClient struct {
	apiKey        string
	model         string
	baseURL       string
	maxPromptSize int
	retries       uint
	retryDelay    time.Duration
	httpClient    *http.Client
}

func NewLLMClient(cfg *Config) *LLMClient {
	if cfg.MistralAPIKey == "" {
		return nil
	}
	return &LLMClient{
		apiKey:        cfg.MistralAPIKey,
		model:         cfg.MistralModel,
		baseURL:       cfg.MistralBaseURL,
		maxPromptSize: cfg.LLMMaxPromptSize,
		retries:       cfg.LLMRetries,
		retryDelay:    time.Second,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ParseIntent interprets a free-form message, optionally with the user's
// last-video memory as context. Rate limits are retried with backoff;
// auth failures are fatal. On any terminal failure the caller falls back
// to fallbackIntent.
func (c *LLMClient) ParseIntent(ctx context.Context, text string, memory *VideoMemory) (*Intent, *LLMExchange, error) {
	system := llmSystemPrompt
	if memory != nil {
		system += fmt.Sprintf(
			"\n\nUSER CONTEXT: the user's last video is %q (title %q, duration %ds).",
			memory.URL, memory.Title, memory.Duration)
	}

	prompt, truncated := truncatePrompt("User request: "+text, c.maxPromptSize)
	exchange := &LLMExchange{Prompt: prompt, Truncated: truncated}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}
	body.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, exchange, &LLMError{Err: err}
	}

	started := time.Now()
	content, status, err := c.complete(ctx, payload)
	exchange.Latency = time.Since(started)
	exchange.Status = status
	if err != nil {
		return nil, exchange, err
	}
	exchange.Response = content

	var intent Intent
	if err := json.Unmarshal([]byte(content), &intent); err != nil {
		return nil, exchange, &LLMError{Status: status, Err: errors.Wrap(err, "malformed response")}
	}
	if !validIntent(&intent) {
		return nil, exchange, &LLMError{Status: status, Err: errors.New("response failed schema validation")}
	}
	return &intent, exchange, nil
}

func (c *LLMClient) complete(ctx context.Context, payload []byte) (string, int, error) {
	var content string
	var lastStatus int

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(&LLMError{Err: err})
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return &LLMError{Err: err}
			}
			defer resp.Body.Close()
			lastStatus = resp.StatusCode

			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return &LLMError{Status: resp.StatusCode, Err: err}
			}

			switch {
			case resp.StatusCode == http.StatusOK:
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return &LLMError{Status: resp.StatusCode, Err: errors.New("transient failure")}
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(&LLMError{Status: resp.StatusCode, Err: errors.New("authentication failed")})
			default:
				return retry.Unrecoverable(&LLMError{Status: resp.StatusCode, Err: errors.Errorf("unexpected status: %s", tail(string(raw)))})
			}

			var parsed chatResponse
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return retry.Unrecoverable(&LLMError{Status: resp.StatusCode, Err: errors.Wrap(err, "malformed response")})
			}
			if parsed.Error != nil {
				return retry.Unrecoverable(&LLMError{Status: resp.StatusCode, Err: errors.New(parsed.Error.Message)})
			}
			if len(parsed.Choices) == 0 {
				return retry.Unrecoverable(&LLMError{Status: resp.StatusCode, Err: errors.New("no choices in response")})
			}
			content = strings.TrimSpace(parsed.Choices[0].Message.Content)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var llmErr *LLMError
		if errors.As(err, &llmErr) {
			return "", lastStatus, llmErr
		}
		return "", lastStatus, &LLMError{Status: lastStatus, Err: err}
	}
	log.Debug().Int("status", lastStatus).Msg("llm request completed")
	return content, lastStatus, nil
}

// truncatePrompt cuts oversized input at a rune boundary so the payload
// cap never splits a character or silently drops the whole message.
func truncatePrompt(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func validIntent(intent *Intent) bool {
	switch intent.Action {
	case ActionDownload, ActionTrim, ActionDownloadAndTrim:
	default:
		return false
	}
	return intent.Confidence >= 0 && intent.Confidence <= 1
}

var (
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	rangeRe = regexp.MustCompile(`(\d+(?::\d+)?)\s*(?:-|to|по|до)\s*(\d+(?::\d+)?)`)
)

var trimKeywords = []string{"trim", "cut", "clip", "обреж", "обрезать", "вырежи"}

var lastVideoKeywords = []string{
	"this video", "last video", "previous video",
	"это видео", "последнее видео", "предыдущее видео",
}

// fallbackIntent is the regex interpretation used when no LLM is
// configured or the bridge failed terminally.
func fallbackIntent(text string) *Intent {
	intent := &Intent{Action: ActionUnknown, Confidence: 0.3}
	lower := strings.ToLower(text)

	if url := urlRe.FindString(text); url != "" {
		intent.VideoURL = strings.TrimRight(url, ".,;)")
	}

	hasTrim := false
	for _, keyword := range trimKeywords {
		if strings.Contains(lower, keyword) {
			hasTrim = true
			break
		}
	}
	if match := rangeRe.FindStringSubmatch(lower); match != nil {
		start, okStart := parseClock(match[1])
		end, okEnd := parseClock(match[2])
		if okStart && okEnd && start < end {
			intent.StartTime = &start
			intent.EndTime = &end
			hasTrim = true
		}
	}

	for _, keyword := range lastVideoKeywords {
		if strings.Contains(lower, keyword) {
			intent.UseLastVideo = true
			break
		}
	}

	switch {
	case intent.VideoURL != "" && hasTrim:
		intent.Action = ActionDownloadAndTrim
	case intent.VideoURL != "":
		intent.Action = ActionDownload
	case hasTrim:
		intent.Action = ActionTrim
	}
	return intent
}

// parseClock converts "90", "1:30" or "1:02:03" into seconds.
func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
