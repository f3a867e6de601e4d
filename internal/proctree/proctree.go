// Package proctree terminates a process together with every live descendant.
//
// A started service routinely spawns grandchildren (node servers, build
// helpers, short-lived tools) under its own children, so signalling the root
// alone would orphan part of the tree. The descendant set is enumerated fresh
// on every call; helpers appear and disappear across a service's runtime, so a
// cached tree would be stale by the time termination is requested.
package proctree

import (
	"context"
	"errors"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// DefaultGrace is the bounded wait after the graceful signal before survivors
// are forcefully killed.
const DefaultGrace = 3 * time.Second

const pollInterval = 100 * time.Millisecond

// Process is one node of a process tree. The narrow surface lets tests stand
// in a fake tree and keeps the gopsutil dependency behind one seam.
type Process interface {
	Pid() int32
	Children() ([]Process, error)
	Terminate() error
	Kill() error
	IsRunning() (bool, error)
}

// Tree resolves live processes by pid.
type Tree interface {
	Lookup(pid int) (Process, error)
}

// ErrNotFound is returned by Lookup when no live process has the pid. It is
// an expected outcome during termination races, never surfaced to callers of
// Terminate.
var ErrNotFound = errors.New("process not found")

// System returns the Tree backed by the operating system's process table.
func System() Tree {
	return systemTree{}
}

type systemTree struct{}

func (systemTree) Lookup(pid int) (Process, error) {
	proc, err := gops.NewProcess(int32(pid))
	if err != nil {
		return nil, ErrNotFound
	}
	return systemProcess{proc}, nil
}

type systemProcess struct {
	proc *gops.Process
}

func (p systemProcess) Pid() int32 { return p.proc.Pid }

func (p systemProcess) Children() ([]Process, error) {
	kids, err := p.proc.Children()
	if err != nil {
		if errors.Is(err, gops.ErrorNoChildren) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Process, 0, len(kids))
	for _, kid := range kids {
		out = append(out, systemProcess{kid})
	}
	return out, nil
}

func (p systemProcess) Terminate() error         { return p.proc.Terminate() }
func (p systemProcess) Kill() error              { return p.proc.Kill() }
func (p systemProcess) IsRunning() (bool, error) { return p.proc.IsRunning() }

// Terminate signals root and all of its current descendants gracefully, waits
// up to grace for the set to exit, then kills whatever is still alive.
// Processes that vanish between enumeration and signalling are expected and
// ignored; a root that is already gone is a no-op.
func Terminate(ctx context.Context, tree Tree, pid int, grace time.Duration) error {
	root, err := tree.Lookup(pid)
	if err != nil {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGrace
	}

	group := []Process{}
	group = append(group, descendants(root)...)
	// Children first so no child is reparented under a supervisor that
	// would respawn it before its own signal arrives.
	group = append(group, root)

	for _, proc := range group {
		_ = proc.Terminate()
	}

	remaining := awaitExit(ctx, group, grace)
	for _, proc := range remaining {
		_ = proc.Kill()
	}
	if len(remaining) > 0 {
		awaitExit(ctx, remaining, grace)
	}
	return ctx.Err()
}

// descendants walks the tree depth-first and returns every live descendant of
// root. Enumeration errors on a branch end that branch; the processes already
// gathered are still signalled.
func descendants(root Process) []Process {
	kids, err := root.Children()
	if err != nil || len(kids) == 0 {
		return nil
	}
	var out []Process
	for _, kid := range kids {
		out = append(out, kid)
		out = append(out, descendants(kid)...)
	}
	return out
}

// awaitExit polls liveness until every process in group has exited, the
// deadline passes, or the context is cancelled. It returns the survivors.
func awaitExit(ctx context.Context, group []Process, deadline time.Duration) []Process {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	remaining := group
	for {
		remaining = alive(remaining)
		if len(remaining) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return remaining
		case <-timer.C:
			return remaining
		case <-ticker.C:
		}
	}
}

func alive(group []Process) []Process {
	var out []Process
	for _, proc := range group {
		running, err := proc.IsRunning()
		if err != nil {
			continue
		}
		if running {
			out = append(out, proc)
		}
	}
	return out
}
