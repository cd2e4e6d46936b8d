package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const defaultWaitDelay = 2 * time.Second

// ErrBinaryNotFound is returned when the executable cannot be located.
var ErrBinaryNotFound = errors.New("executable not found")

// Result is the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Command runs an external program to completion.
type Command interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// CommandError describes a command that could not be started or exited non-zero.
type CommandError struct {
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Name)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += " (" + e.Stderr + ")"
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands as subprocesses. Each run is bounded by
// Timeout; on expiry the process is killed and its pipes are closed
// after WaitDelay so Run always returns.
type ExecRunner struct {
	Timeout   time.Duration
	WaitDelay time.Duration
}

// Run implements Command.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return res, nil
	}

	cerr := &CommandError{
		Name:     name,
		ExitCode: res.ExitCode,
		Stderr:   string(bytes.TrimSpace(stderr.Bytes())),
		Err:      err,
	}
	switch {
	case errors.Is(err, exec.ErrNotFound):
		cerr.Err = fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	case ctx.Err() != nil:
		cerr.Err = ctx.Err()
	}
	return res, cerr
}
