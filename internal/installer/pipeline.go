// Package installer runs ordered installation pipelines for a managed
// service: external commands executed strictly one at a time, each with its
// own working directory, timeout and failure policy.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/thenullengine/ailab/internal/pump"
)

// Policy decides what a step's non-zero exit does to the rest of the
// pipeline. Optional component installs are Warn so a best-effort failure
// never aborts an otherwise-successful primary installation.
type Policy string

const (
	// Fatal aborts the remaining steps and fails the pipeline.
	Fatal Policy = "fatal"
	// Warn logs the failure and proceeds to the next step.
	Warn Policy = "warn"
)

// DefaultTimeout bounds a step that declares no timeout of its own.
const DefaultTimeout = 5 * time.Minute

// Step is one external command invocation in an installation sequence.
// Commands holds the ordered candidate strategies for the step (a fast-path
// tool first, slower fallbacks after); the first candidate that exits zero
// wins and the rest are skipped.
type Step struct {
	Desc     string
	Commands [][]string
	Dir      string
	Timeout  time.Duration
	Policy   Policy
}

// Cmd is a convenience constructor for the common single-strategy step.
func Cmd(desc string, policy Policy, dir string, argv ...string) Step {
	return Step{Desc: desc, Commands: [][]string{argv}, Dir: dir, Policy: policy}
}

// StepError reports the step that failed a pipeline.
type StepError struct {
	Desc string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Desc, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes steps in order on the calling goroutine, appending every
// step's combined output to sink. It returns the first Fatal failure, nil
// otherwise. Warn-policy failures and timeouts are logged and skipped; a
// timeout aborts the pipeline only when the step is explicitly Fatal.
func Run(ctx context.Context, steps []Step, sink pump.Sink) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		sink.Append(fmt.Sprintf("==> %s", step.Desc))
		err := runStep(ctx, step, sink)
		if err == nil {
			continue
		}
		if step.Policy == Fatal {
			sink.Append(fmt.Sprintf("ERROR: %s: %v", step.Desc, err))
			return &StepError{Desc: step.Desc, Err: err}
		}
		sink.Append(fmt.Sprintf("WARNING: %s: %v (continuing)", step.Desc, err))
	}
	return nil
}

// runStep tries each candidate strategy in order until one exits zero.
func runStep(ctx context.Context, step Step, sink pump.Sink) error {
	if len(step.Commands) == 0 {
		return errors.New("no command")
	}
	var lastErr error
	for i, argv := range step.Commands {
		if len(argv) == 0 {
			lastErr = errors.New("empty command")
			continue
		}
		if i > 0 {
			sink.Append(fmt.Sprintf("falling back to %s", argv[0]))
		}
		lastErr = runCommand(ctx, argv, step.Dir, step.Timeout, sink)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func runCommand(ctx context.Context, argv []string, dir string, timeout time.Duration, sink pump.Sink) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	pw.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pump.Run(pr, sink)
		pr.Close()
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if stepCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timed out after %s", timeout)
	}
	if waitErr != nil {
		return fmt.Errorf("%s: %w", argv[0], waitErr)
	}
	return nil
}
