package main

import (
	"context"
	"errors"
	"fmt"
)

// DownloadError wraps a failure to fetch the source artifact. Permanent
// failures (bad URL, 4xx, deleted content) are never retried.
type DownloadError struct {
	URL       string
	Permanent bool
	Err       error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ConfigError means a required setting for the chosen path is missing.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

// SizeLimitError means the artifact exceeds the configured maximum.
type SizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("artifact size %d exceeds limit %d", e.Size, e.Limit)
}

// TranscodeError carries the tail of the external tool's log output.
type TranscodeError struct {
	Err error
	Log string
}

func (e *TranscodeError) Error() string {
	if e.Log != "" {
		return fmt.Sprintf("transcode: %v: %s", e.Err, e.Log)
	}
	return fmt.Sprintf("transcode: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// LLMError wraps a failure talking to the inference API.
type LLMError struct {
	Status int
	Err    error
}

func (e *LLMError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("llm: %v", e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// DeliveryError wraps a failure to send the final artifact to the chat.
type DeliveryError struct {
	Route Route
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s route: %v", e.Route, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// userMessage maps a pipeline failure to the text shown in the chat.
// Raw error details stay in the logs.
func userMessage(err error) string {
	var (
		dlErr   *DownloadError
		cfgErr  *ConfigError
		sizeErr *SizeLimitError
		tcErr   *TranscodeError
		llmErr  *LLMError
		sendErr *DeliveryError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "❌ Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "❌ Processing took too long and was stopped. Try a shorter video."
	case errors.As(err, &sizeErr):
		return fmt.Sprintf("❌ Video is too large (%dMB, limit %dMB).",
			sizeErr.Size>>20, sizeErr.Limit>>20)
	case errors.As(err, &cfgErr):
		return "❌ Videos over 50MB are not supported on this bot instance."
	case errors.As(err, &dlErr):
		return "❌ Could not download the video. Check the link and try again."
	case errors.As(err, &tcErr):
		return "❌ Could not process the video. The file may be corrupt or use an unsupported codec."
	case errors.As(err, &llmErr):
		return "❌ Could not understand the request right now. Try again in a minute."
	case errors.As(err, &sendErr):
		return "❌ Processing succeeded but sending the video failed. Try again."
	default:
		return "❌ Something went wrong while processing the video."
	}
}
