package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// How much trailing stderr to keep for diagnostics. ffmpeg writes the actual
// failure reason last, after pages of progress output.
const stderrTailLimit = 2048

// ToolRunner executes an external processing tool and returns its stdout.
// A non-zero exit code and an elapsed context deadline both surface as
// errors; callers treat them identically.
type ToolRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Prefer the deadline error so timeouts are distinguishable in logs.
		if ctx.Err() != nil {
			return stdout.Bytes(), ctx.Err()
		}
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, tail)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func stderrTail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTailLimit {
		b = b[len(b)-stderrTailLimit:]
	}
	return string(b)
}
