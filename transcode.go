package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Transcoder normalizes or trims an artifact through an external tool.
// The subprocess runs under the job context, so cancellation kills it
// and no output handle outlives the call.
type Transcoder struct {
	backend Backend
}

func NewTranscoder(backend Backend) (*Transcoder, error) {
	if !backend.isAvailable() {
		return nil, NotAvailable
	}
	return &Transcoder{backend: backend}, nil
}

func (t *Transcoder) Run(ctx context.Context, inputPath string, profile Profile) (*TranscodeResult, error) {
	outputPath := filepath.Join(filepath.Dir(inputPath), "processed.mp4")

	cmd, err := t.backend.buildCmd(ctx, inputPath, outputPath, profile)
	if err != nil {
		return nil, &TranscodeError{Err: err}
	}

	var logBuffer bytes.Buffer
	t.backend.setupLogOutput(cmd, &logBuffer)

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TranscodeError{Err: err, Log: logTail(&logBuffer)}
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return nil, &TranscodeError{
			Err: errors.New("tool exited cleanly but produced no output"),
			Log: logTail(&logBuffer),
		}
	}

	result := &TranscodeResult{Path: outputPath, Size: info.Size()}
	if meta, err := probe(ctx, outputPath); err == nil {
		result.Duration = meta.Duration
		result.Width = meta.Width
		result.Height = meta.Height
	} else {
		log.Warn().Err(err).Str("path", outputPath).Msg("failed to probe the output")
	}

	if thumb, err := t.thumbnail(ctx, outputPath); err == nil {
		result.Thumbnail = thumb
	} else {
		log.Warn().Err(err).Msg("failed to generate the thumbnail")
	}
	return result, nil
}

// thumbnail is best effort; delivery proceeds without one.
func (t *Transcoder) thumbnail(ctx context.Context, videoPath string) (string, error) {
	thumbPath := filepath.Join(filepath.Dir(videoPath), "thumb.jpg")

	offset := 5
	if meta, err := probe(ctx, videoPath); err == nil && meta.Duration.Seconds() < 5 {
		offset = 0
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", thumbnailArgs(videoPath, thumbPath, offset)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(thumbPath)
		return "", errors.Wrapf(err, "ffmpeg thumbnail: %s", tail(string(out)))
	}
	return thumbPath, nil
}

func logTail(buffer *bytes.Buffer) string {
	return tail(buffer.String())
}

func tail(s string) string {
	const max = 512
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
