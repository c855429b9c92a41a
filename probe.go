package main

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probe asks ffprobe for the video stream's dimensions and duration.
func probe(ctx context.Context, path string) (*VideoMeta, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "ffprobe")
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*VideoMeta, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe output")
	}

	meta := &VideoMeta{}
	if seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		meta.Duration = time.Duration(seconds * float64(time.Second))
	}
	for _, stream := range parsed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.Width = stream.Width
		meta.Height = stream.Height
		meta.Codec = stream.CodecName
		return meta, nil
	}
	return nil, errors.New("no video stream found")
}
