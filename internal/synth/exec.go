package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// killDelay is how long a subprocess gets to exit after an interrupt.
const killDelay = 100 * time.Millisecond

// runner executes a command and returns its stdout.
type runner func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)

// runCommand runs name with the given stdin already attached, so the child
// never waits on a pipe we have yet to write. On cancellation the process is
// interrupted first and killed if it lingers.
func runCommand(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = killDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, newError(ErrorCodeTimeout, name+" timed out", ctxErr)
			}
			return nil, ctxErr
		}
		return nil, newError(ErrorCodeSynthesis,
			fmt.Sprintf("%s failed, stderr: %s", name, strings.TrimSpace(stderr.String())), err)
	}

	if stdout.Len() == 0 {
		return nil, newError(ErrorCodeSynthesis,
			fmt.Sprintf("%s produced no output, stderr: %s", name, strings.TrimSpace(stderr.String())), nil)
	}
	return stdout.Bytes(), nil
}
