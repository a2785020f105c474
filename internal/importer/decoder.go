package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

const decodedSuffix = "_TRADUCIDO.csv"

// ErrDecoderOutputMissing is returned when the decoder exits cleanly but the
// translated file is absent.
var ErrDecoderOutputMissing = errors.New("importer: decoder output missing")

// CommandRunner executes an external command. Injectable so tests never spawn
// processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command, honoring ctx cancellation.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Decoder invokes the external CAN raw-to-CSV decoder. The collaborator is
// expected to write a sibling "<original>_TRADUCIDO.csv"; its absence after a
// clean exit is still a decode failure.
type Decoder struct {
	runner  CommandRunner
	command string
	timeout time.Duration
}

// NewDecoder constructs a decoder. An empty command disables decoding.
func NewDecoder(command string, timeout time.Duration, runner CommandRunner) *Decoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Decoder{runner: runner, command: command, timeout: timeout}
}

// Enabled reports whether a decoder command is configured.
func (d *Decoder) Enabled() bool {
	return d != nil && d.command != ""
}

// Decode runs the decoder on filePath and returns the translated file's path.
func (d *Decoder) Decode(ctx context.Context, filePath string) (string, error) {
	if !d.Enabled() {
		return "", errors.New("importer: no decoder configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.runner.Run(runCtx, d.command, filePath); err != nil {
		return "", fmt.Errorf("importer: decoder: %w", err)
	}

	decoded := filePath + decodedSuffix
	if _, err := os.Stat(decoded); err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecoderOutputMissing, decoded)
	}
	return decoded, nil
}
