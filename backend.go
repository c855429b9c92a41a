package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

var NotAvailable = errors.New("the selected backend is not available")

// Profile describes the target the backend should produce. A zero
// TrimEnd means the whole artifact is normalized; otherwise the backend
// cuts the requested clip without re-encoding.
type Profile struct {
	MaxHeight int
	CRF       int
	Preset    string
	TrimStart int
	TrimEnd   int
}

func (p Profile) IsTrim() bool { return p.TrimEnd > 0 }

type Backend interface {
	isAvailable() bool
	buildCmd(ctx context.Context, inputPath, outputPath string, profile Profile) (*exec.Cmd, error)
	setupLogOutput(cmd *exec.Cmd, buffer *bytes.Buffer)
}
