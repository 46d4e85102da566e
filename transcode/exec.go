package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// runTool executes an ffmpeg tool with an optional timeout and returns its
// stdout. Failures carry the tool's stderr; when ctx ended first, its error is
// joined so callers can match context.Canceled or DeadlineExceeded.
func runTool(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err == nil {
		return output, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Join(fmt.Errorf("%s failed: %w", bin, err), ctxErr)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", bin, err, msg)
	}
	return nil, fmt.Errorf("%s failed: %w", bin, err)
}
