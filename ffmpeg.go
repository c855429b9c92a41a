package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

type FfmpegBackend struct{}

func (b *FfmpegBackend) setupLogOutput(cmd *exec.Cmd, buffer *bytes.Buffer) {
	cmd.Stderr = buffer
}

func (b *FfmpegBackend) isAvailable() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	return true
}

func (b *FfmpegBackend) buildCmd(ctx context.Context, inputPath, outputPath string, profile Profile) (*exec.Cmd, error) {
	var args []string
	if profile.IsTrim() {
		if profile.TrimStart >= profile.TrimEnd {
			return nil, fmt.Errorf("invalid trim range %d-%d", profile.TrimStart, profile.TrimEnd)
		}
		args = trimArgs(inputPath, outputPath, profile)
	} else {
		args = normalizeArgs(inputPath, outputPath, profile)
	}
	return exec.CommandContext(ctx, "ffmpeg", args...), nil
}

// trimArgs cuts the clip with stream copy, no re-encoding.
func trimArgs(inputPath, outputPath string, profile Profile) []string {
	duration := profile.TrimEnd - profile.TrimStart
	return []string{
		"-i", inputPath,
		"-ss", strconv.Itoa(profile.TrimStart),
		"-t", strconv.Itoa(duration),
		"-c:v", "copy",
		"-c:a", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outputPath,
	}
}

// normalizeArgs re-encodes into H.264/AAC mp4 with faststart so Telegram
// clients can stream the result.
func normalizeArgs(inputPath, outputPath string, profile Profile) []string {
	maxHeight := profile.MaxHeight
	if maxHeight == 0 {
		maxHeight = 720
	}
	crf := profile.CRF
	if crf == 0 {
		crf = 23
	}
	preset := profile.Preset
	if preset == "" {
		preset = "veryfast"
	}
	return []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", maxHeight),
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-profile:v", "high",
		"-level", "4.0",
		"-c:a", "aac",
		"-ar", "48000",
		"-b:a", "128k",
		"-ac", "2",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

// thumbnailArgs extracts a single padded frame for the upload preview.
func thumbnailArgs(inputPath, outputPath string, offsetSeconds int) []string {
	return []string{
		"-i", inputPath,
		"-ss", strconv.Itoa(offsetSeconds),
		"-vframes", "1",
		"-q:v", "2",
		"-vf", "scale=320:240:force_original_aspect_ratio=decrease,pad=320:240:(ow-iw)/2:(oh-ih)/2",
		"-y",
		outputPath,
	}
}
