package video

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerCapturesStdout(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo width=1920")
	require.NoError(t, err)
	assert.Equal(t, "width=1920\n", string(out))
}

func TestExecRunnerIncludesStderrInError(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "sh", "-c",
		"echo 'Invalid data found when processing input' >&2; exit 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "Invalid data found when processing input")
}

func TestExecRunnerReportsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ExecRunner{}.Run(ctx, "sh", "-c", "sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStderrTailBounded(t *testing.T) {
	long := strings.Repeat("x", 3*stderrTailLimit) + "the actual error"
	tail := stderrTail([]byte(long))
	assert.Len(t, tail, stderrTailLimit)
	assert.True(t, strings.HasSuffix(tail, "the actual error"))

	assert.Equal(t, "boom", stderrTail([]byte("boom\n")))
	assert.Empty(t, stderrTail(nil))
}
