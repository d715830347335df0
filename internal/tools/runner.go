package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Exit codes reported when the process never ran to completion.
const (
	ExitSpawnFailed int32 = 127
	ExitKilled      int32 = 137
)

// DefaultWaitDelay bounds how long Run waits for output pipes after a kill.
const DefaultWaitDelay = 2 * time.Second

var (
	ErrSpawn   = errors.New("tools: spawn failed")
	ErrTimeout = errors.New("tools: command timed out")
)

// SpawnError reports an executable that could not be located or started.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("tools: spawn %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSpawn) match any SpawnError.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// Invocation is one external command line.
type Invocation struct {
	Executable string
	Args       []string
}

// NewInvocation copies args so later mutation by the caller is not observed.
func NewInvocation(executable string, args ...string) Invocation {
	return Invocation{Executable: executable, Args: slices.Clone(args)}
}

// String renders the command line for logs.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Executable
	}
	return inv.Executable + " " + strings.Join(inv.Args, " ")
}

// Result is the captured outcome of one Run.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
	Duration time.Duration
}

// CommandRunner abstracts command execution for the optimizer.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

// Run blocks until the command exits or ctx is done.
// A non-zero exit is returned as a Result with a nil error.
func (r ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if strings.TrimSpace(inv.Executable) == "" {
		return Result{ExitCode: ExitSpawnFailed}, &SpawnError{Executable: inv.Executable, Err: exec.ErrNotFound}
	}

	cmd := exec.CommandContext(ctx, inv.Executable, slices.Clone(inv.Args)...)
	cmd.WaitDelay = DefaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", inv.String()).Msg("tools.ExecRunner.Run start")
	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = ExitKilled
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%w after %s: %s", ErrTimeout, res.Duration.Round(time.Millisecond), inv.Executable)
		}
		return res, fmt.Errorf("tools: %s canceled: %w", inv.Executable, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		log.Debug().
			Str("cmd", inv.Executable).
			Int32("exit_code", res.ExitCode).
			Int("stderr_bytes", len(res.Stderr)).
			Msg("tools.ExecRunner.Run non-zero exit")
		return res, nil
	}

	res.ExitCode = ExitSpawnFailed
	return res, &SpawnError{Executable: inv.Executable, Err: err}
}
