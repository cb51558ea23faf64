// Package osscript runs AppleScript snippets through osascript.
package osscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

var ErrUnavailable = errors.New("osascript is only available on macOS")

// Runner executes a script and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

type Exec struct {
	Timeout time.Duration
}

func (e Exec) Run(ctx context.Context, script string) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", ErrUnavailable
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("osascript: %w", ctx.Err())
		}
		return "", fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Quote renders s as an AppleScript string literal.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
