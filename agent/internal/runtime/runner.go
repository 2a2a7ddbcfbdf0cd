package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay is how long Run waits for the output pipes to close after the
// process exits or ctx kills it. Children of docker that inherit the pipes
// would otherwise keep Run blocked past the deadline.
const waitDelay = 2 * time.Second

// ErrNonZeroExit is wrapped by TailLogs when docker logs ran but exited with
// a non-zero status.
var ErrNonZeroExit = errors.New("runtime: non-zero exit")

// Result is the captured outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner runs an external command. A non-zero exit is reported through
// Result.ExitCode with a nil error; the error is reserved for commands that
// could not be started or were killed by ctx.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, bin string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("runtime: %s: %w", bin, ctxErr)
	}
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The command itself exited cleanly; an orphaned child held the pipes.
		err = nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("runtime: %s: %w", bin, err)
	}
	return res, nil
}
