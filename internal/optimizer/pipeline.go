package optimizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/danmuck/closurectl/internal/observability"
	"github.com/danmuck/closurectl/internal/scratch"
	"github.com/danmuck/closurectl/internal/tools"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// Phase marks where a call is in its lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseWriting    Phase = "writing"
	PhaseInvoking   Phase = "invoking"
	PhaseCleaningUp Phase = "cleaning_up"
	PhaseDone       Phase = "done"
)

// Result is the outcome of one optimize call.
type Result struct {
	Output      string
	Diagnostics string
	ExitCode    int32
	Artifact    string
	InputDigest string
	InputBytes  int
	OutputBytes int
	Duration    time.Duration
}

// Clean reports whether the compiler exited zero without diagnostics.
func (r Result) Clean() bool {
	return r.ExitCode == 0 && r.Diagnostics == ""
}

// Pipeline stages a script, runs the compiler on it and releases the stage.
type Pipeline struct {
	cfg    Config
	store  *scratch.Store
	runner tools.CommandRunner
	namer  Namer
	gate   *semaphore.Weighted
	onStep func(artifact string, phase Phase)

	mu        sync.Mutex
	lastPhase Phase
}

type Option func(*Pipeline)

func WithRunner(r tools.CommandRunner) Option {
	return func(p *Pipeline) { p.runner = r }
}

func WithStore(s *scratch.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

func WithNamer(n Namer) Option {
	return func(p *Pipeline) { p.namer = n }
}

// WithPhaseHook observes every phase transition.
func WithPhaseHook(fn func(artifact string, phase Phase)) Option {
	return func(p *Pipeline) { p.onStep = fn }
}

func New(cfg Config, opts ...Option) (*Pipeline, error) {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		store:     scratch.New(cfg.ScratchDir),
		runner:    tools.ExecRunner{},
		namer:     namerFor(cfg.Naming),
		lastPhase: PhaseIdle,
	}
	for _, opt := range opts {
		opt(p)
	}

	slots := int64(cfg.MaxConcurrent)
	if p.namer.Shared() {
		slots = 1
	}
	p.gate = semaphore.NewWeighted(slots)
	return p, nil
}

func (p *Pipeline) Store() *scratch.Store {
	return p.store
}

func (p *Pipeline) LastPhase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPhase
}

// OptimizeString returns only the optimized text.
func (p *Pipeline) OptimizeString(ctx context.Context, script string) (string, error) {
	res, err := p.Optimize(ctx, script)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Optimize runs the compiler over script. The scratch artifact is removed
// before Optimize returns, whatever the outcome.
func (p *Pipeline) Optimize(ctx context.Context, script string) (res Result, err error) {
	start := time.Now()
	defer func() {
		observability.RecordOptimize(string(p.cfg.Level), outcomeLabel(err), time.Since(start), len(script), res.OutputBytes)
	}()

	if err := p.gate.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("optimizer: waiting for compiler slot: %w", err)
	}
	defer p.gate.Release(1)

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	name := p.namer.Name()
	p.step(name, PhaseWriting)
	artifact, err := p.store.Write(name, script)
	if err != nil {
		if !errors.Is(err, scratch.ErrInvalidName) {
			p.step(name, PhaseCleaningUp)
			err = multierr.Append(err, p.store.Remove(name))
		}
		p.step(name, PhaseDone)
		return Result{}, err
	}
	observability.ScratchStaged()

	defer func() {
		p.step(name, PhaseCleaningUp)
		rmErr := p.store.Remove(name)
		observability.ScratchReleased(rmErr == nil)
		if rmErr != nil {
			log.Warn().Str("artifact", name).Err(rmErr).Msg("optimizer.Pipeline.Optimize scratch cleanup failed")
			if err != nil {
				err = multierr.Append(err, rmErr)
			}
		}
		p.step(name, PhaseDone)
	}()

	p.step(name, PhaseInvoking)
	if err := p.checkCompiler(); err != nil {
		return Result{}, err
	}
	inv := tools.NewInvocation(p.cfg.Runtime, p.cfg.Args(artifact.Path)...)
	run, err := p.runner.Run(ctx, inv)
	if err != nil {
		log.Error().Str("artifact", name).Str("cmd", inv.String()).Err(err).Msg("optimizer.Pipeline.Optimize run failed")
		return Result{}, err
	}

	if run.ExitCode != 0 && p.cfg.FailOnToolError {
		return Result{}, &ToolFailureError{ExitCode: run.ExitCode, Diagnostics: string(run.Stderr)}
	}

	res = Result{
		Output:      string(run.Stdout),
		Diagnostics: string(run.Stderr),
		ExitCode:    run.ExitCode,
		Artifact:    name,
		InputDigest: Digest(script),
		InputBytes:  len(script),
		OutputBytes: len(run.Stdout),
		Duration:    run.Duration,
	}
	if !res.Clean() {
		log.Debug().
			Str("artifact", name).
			Int32("exit_code", res.ExitCode).
			Str("diagnostics", firstLine(res.Diagnostics)).
			Msg("optimizer.Pipeline.Optimize compiler reported diagnostics")
	}
	return res, nil
}

// Check verifies the scratch area, runtime and compiler jar are reachable.
func (p *Pipeline) Check() error {
	if err := p.store.Writable(); err != nil {
		return err
	}
	if _, err := exec.LookPath(p.cfg.Runtime); err != nil {
		return &tools.SpawnError{Executable: p.cfg.Runtime, Err: err}
	}
	return p.checkCompiler()
}

func (p *Pipeline) checkCompiler() error {
	info, err := os.Stat(p.cfg.CompilerJar)
	if err != nil {
		return &tools.SpawnError{Executable: p.cfg.CompilerJar, Err: err}
	}
	if info.IsDir() {
		return &tools.SpawnError{Executable: p.cfg.CompilerJar, Err: fmt.Errorf("is a directory")}
	}
	return nil
}

func (p *Pipeline) step(artifact string, phase Phase) {
	p.mu.Lock()
	p.lastPhase = phase
	p.mu.Unlock()
	log.Trace().Str("artifact", artifact).Str("phase", string(phase)).Msg("optimizer.Pipeline phase")
	if p.onStep != nil {
		p.onStep(artifact, phase)
	}
}

// Digest fingerprints a script for logs and responses.
func Digest(script string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(script))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, scratch.ErrWrite):
		return "scratch_error"
	case errors.Is(err, tools.ErrSpawn):
		return "spawn_error"
	case errors.Is(err, tools.ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrToolFailure):
		return "tool_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
