package proctree

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProcess struct {
	pid      int32
	children []*fakeProcess

	mu         sync.Mutex
	running    bool
	termOrder  *[]int32
	killed     bool
	dieOnTerm  bool
	childErr   error
	runningErr error
}

func (p *fakeProcess) Pid() int32 { return p.pid }

func (p *fakeProcess) Children() ([]Process, error) {
	if p.childErr != nil {
		return nil, p.childErr
	}
	out := make([]Process, 0, len(p.children))
	for _, kid := range p.children {
		out = append(out, kid)
	}
	return out, nil
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.termOrder = append(*p.termOrder, p.pid)
	if p.dieOnTerm {
		p.running = false
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	p.running = false
	return nil
}

func (p *fakeProcess) IsRunning() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runningErr != nil {
		return false, p.runningErr
	}
	return p.running, nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type fakeTree struct {
	procs map[int]*fakeProcess
}

func (t fakeTree) Lookup(pid int) (Process, error) {
	proc, ok := t.procs[pid]
	if !ok {
		return nil, ErrNotFound
	}
	return proc, nil
}

// buildTree returns root(1) -> child(2) -> grandchild(3) plus a second
// child(4), all live and dying on the graceful signal.
func buildTree(order *[]int32) (fakeTree, *fakeProcess) {
	grandchild := &fakeProcess{pid: 3, running: true, dieOnTerm: true, termOrder: order}
	child := &fakeProcess{pid: 2, running: true, dieOnTerm: true, termOrder: order, children: []*fakeProcess{grandchild}}
	sibling := &fakeProcess{pid: 4, running: true, dieOnTerm: true, termOrder: order}
	root := &fakeProcess{pid: 1, running: true, dieOnTerm: true, termOrder: order, children: []*fakeProcess{child, sibling}}
	tree := fakeTree{procs: map[int]*fakeProcess{1: root, 2: child, 3: grandchild, 4: sibling}}
	return tree, root
}

func TestTerminateSignalsChildrenBeforeRoot(t *testing.T) {
	var order []int32
	tree, root := buildTree(&order)

	if err := Terminate(context.Background(), tree, 1, 200*time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("signalled %v, want all four processes", order)
	}
	if order[len(order)-1] != root.pid {
		t.Fatalf("signal order %v, want the root last", order)
	}
	if root.wasKilled() {
		t.Fatal("root was killed despite exiting on the graceful signal")
	}
}

func TestTerminateKillsSurvivorsAfterGrace(t *testing.T) {
	var order []int32
	stubborn := &fakeProcess{pid: 2, running: true, termOrder: &order}
	root := &fakeProcess{pid: 1, running: true, dieOnTerm: true, termOrder: &order, children: []*fakeProcess{stubborn}}
	tree := fakeTree{procs: map[int]*fakeProcess{1: root, 2: stubborn}}

	if err := Terminate(context.Background(), tree, 1, 50*time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if !stubborn.wasKilled() {
		t.Fatal("survivor was not killed after the grace period")
	}
	if root.wasKilled() {
		t.Fatal("root was killed despite a graceful exit")
	}
}

func TestTerminateMissingRootIsNoOp(t *testing.T) {
	tree := fakeTree{procs: map[int]*fakeProcess{}}
	if err := Terminate(context.Background(), tree, 42, time.Second); err != nil {
		t.Fatalf("terminate on a vanished pid: %v", err)
	}
}

func TestTerminateStillSignalsOnEnumerationError(t *testing.T) {
	var order []int32
	root := &fakeProcess{pid: 1, running: true, dieOnTerm: true, termOrder: &order, childErr: errors.New("denied")}
	tree := fakeTree{procs: map[int]*fakeProcess{1: root}}

	if err := Terminate(context.Background(), tree, 1, 100*time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("signalled %v, want just the root", order)
	}
}

func TestTerminateHonoursContextCancellation(t *testing.T) {
	var order []int32
	stubborn := &fakeProcess{pid: 1, running: true, termOrder: &order}
	tree := fakeTree{procs: map[int]*fakeProcess{1: stubborn}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Terminate(ctx, tree, 1, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("terminate err = %v, want context.Canceled", err)
	}
}

func TestDescendantsWalksDepthFirst(t *testing.T) {
	var order []int32
	_, root := buildTree(&order)

	got := descendants(root)
	pids := make([]int32, 0, len(got))
	for _, proc := range got {
		pids = append(pids, proc.Pid())
	}
	want := []int32{2, 3, 4}
	if len(pids) != len(want) {
		t.Fatalf("descendants = %v, want %v", pids, want)
	}
	for i := range want {
		if pids[i] != want[i] {
			t.Fatalf("descendants = %v, want %v", pids, want)
		}
	}
}
