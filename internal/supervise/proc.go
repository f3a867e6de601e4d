package supervise

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Proc is the managed OS process tracked for a service's current run. It is
// exclusively owned by its Controller, which clears the reference once the
// process has been confirmed terminated.
type Proc struct {
	cmd    *exec.Cmd
	output io.ReadCloser

	waitDone chan struct{}
	waitErr  error
}

// spawn launches argv in dir with stdout and stderr merged into a single
// stream. The parent environment is inherited unchanged.
func spawn(argv []string, dir string) (*Proc, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("spawn: empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: pipe: %w", argv[0], err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	p := &Proc{
		cmd:      cmd,
		output:   pr,
		waitDone: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()
	return p, nil
}

// PID returns the OS process identifier.
func (p *Proc) PID() int {
	return p.cmd.Process.Pid
}

// Output is the combined stdout/stderr stream. It reaches end-of-stream when
// the process and every inheritor of its output pipe have exited or closed it.
func (p *Proc) Output() io.ReadCloser {
	return p.output
}

// Wait blocks until the process has exited or the context is cancelled.
func (p *Proc) Wait(ctx context.Context) error {
	select {
	case <-p.waitDone:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exited reports whether the process has already been reaped.
func (p *Proc) Exited() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}

// ExitCode returns the recorded exit code once the process has terminated.
func (p *Proc) ExitCode() (int, bool) {
	select {
	case <-p.waitDone:
	default:
		return 0, false
	}
	if state := p.cmd.ProcessState; state != nil {
		return state.ExitCode(), true
	}
	return 0, true
}
