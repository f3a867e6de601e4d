package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/thenullengine/ailab/internal/installer"
	"github.com/thenullengine/ailab/internal/metrics"
	"github.com/thenullengine/ailab/internal/proctree"
	"github.com/thenullengine/ailab/internal/pump"
)

const (
	defaultSettleDelay  = 2 * time.Second
	defaultReadyTimeout = 30 * time.Second
	defaultStopGrace    = proctree.DefaultGrace
)

// Confirmer answers yes/no questions on behalf of the user before a stop is
// carried out. Implementations live in the UI layer (terminal prompt, modal).
type Confirmer interface {
	Confirm(service, question string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(service, question string) bool

func (f ConfirmFunc) Confirm(service, question string) bool { return f(service, question) }

// Spec describes one managed application: how to decide whether it is
// installed, how to launch it, and which pipelines install or update it.
// The closures consult configuration at call time so settings edited between
// operations take effect without rebuilding the controller.
type Spec struct {
	Name  string
	Title string

	// URL is the local address the started service eventually serves. A
	// browser tab is opened against it once per start.
	URL string

	// SettleDelay is the minimum wait before the browser side effect; the
	// service needs time to bind its port. ReadyTimeout bounds the
	// readiness poll layered on top of the delay.
	SettleDelay  time.Duration
	ReadyTimeout time.Duration

	// StopGrace is the wait after graceful termination signals before
	// survivors are killed.
	StopGrace time.Duration

	// CheckInstalled probes the filesystem for the install marker and the
	// launcher artifact. nil error means Start's precondition holds.
	CheckInstalled func() error

	// Command assembles the argv and working directory for a run.
	Command func() (argv []string, dir string, err error)

	// InstallSteps and UpdateSteps build the respective pipelines.
	// A nil UpdateSteps means the service has no update operation.
	InstallSteps func() ([]installer.Step, error)
	UpdateSteps  func() ([]installer.Step, error)
}

// process is the surface the controller needs from a managed process.
// *Proc satisfies it; tests substitute fakes.
type process interface {
	PID() int
	Output() io.ReadCloser
	Wait(ctx context.Context) error
	Exited() bool
	ExitCode() (int, bool)
}

// Controller is the state machine for one managed service. Admission is the
// only synchronization across operations: a second request while one is in
// flight is rejected, never queued. The state and the tracked process handle
// are the sole shared fields; the goroutine running the admitted operation is
// their single writer until it resolves back to Idle.
type Controller struct {
	spec    Spec
	events  chan<- Event
	confirm Confirmer

	spawn      func(argv []string, dir string) (process, error)
	terminate  func(ctx context.Context, pid int, grace time.Duration) error
	awaitReady func(ctx context.Context, url string) error
	openURL    func(url string) error

	mu    sync.Mutex
	state State
	proc  process
}

// Option configures a controller at construction time.
type Option func(*Controller)

// WithConfirmer installs the yes/no collaborator consulted before Stop.
func WithConfirmer(confirm Confirmer) Option {
	return func(c *Controller) { c.confirm = confirm }
}

// WithBrowserOpener overrides the fire-and-forget URL opener.
func WithBrowserOpener(open func(url string) error) Option {
	return func(c *Controller) { c.openURL = open }
}

// WithReadinessProbe overrides the poll that gates the browser side effect.
func WithReadinessProbe(wait func(ctx context.Context, url string) error) Option {
	return func(c *Controller) { c.awaitReady = wait }
}

// NewController builds a controller publishing notifications to events. The
// channel is serviced by the UI layer's fan-in; the controller only appends.
func NewController(spec Spec, events chan<- Event, opts ...Option) *Controller {
	if spec.SettleDelay <= 0 {
		spec.SettleDelay = defaultSettleDelay
	}
	if spec.ReadyTimeout <= 0 {
		spec.ReadyTimeout = defaultReadyTimeout
	}
	if spec.StopGrace <= 0 {
		spec.StopGrace = defaultStopGrace
	}
	c := &Controller{
		spec:   spec,
		events: events,
		state:  StateIdle,
		spawn: func(argv []string, dir string) (process, error) {
			return spawn(argv, dir)
		},
		terminate: func(ctx context.Context, pid int, grace time.Duration) error {
			return proctree.Terminate(ctx, proctree.System(), pid, grace)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetServiceState(spec.Name, string(StateIdle))
	return c
}

// Name returns the service identifier.
func (c *Controller) Name() string { return c.spec.Name }

// Title returns the human-facing service name.
func (c *Controller) Title() string { return c.spec.Title }

// URL returns the service's local UI address, if any.
func (c *Controller) URL() string { return c.spec.URL }

// HasUpdate reports whether the service defines an update pipeline.
func (c *Controller) HasUpdate() bool { return c.spec.UpdateSteps != nil }

// Installed probes the on-disk install markers for the service. It does not
// take the controller lock; the check reads the filesystem only.
func (c *Controller) Installed() bool {
	if c.spec.CheckInstalled == nil {
		return false
	}
	return c.spec.CheckInstalled() == nil
}

// Status is a point-in-time snapshot of a controller.
type Status struct {
	Service string
	Title   string
	State   State
	PID     int
	Tracked bool
}

// Status returns the current state and whether a process handle is tracked.
// Pure read, safe from any goroutine.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Service: c.spec.Name, Title: c.spec.Title, State: c.state}
	if c.proc != nil {
		st.Tracked = true
		st.PID = c.proc.PID()
	}
	return st
}

// Install transitions Idle -> Installing, runs the install pipeline on a
// background goroutine and resolves back to Idle on success or failure. The
// returned channel delivers the pipeline outcome.
func (c *Controller) Install(ctx context.Context) (<-chan error, error) {
	if c.spec.InstallSteps == nil {
		return nil, fmt.Errorf("%s: install: %w", c.spec.Name, ErrUnsupported)
	}
	return c.runPipeline(ctx, "install", c.spec.InstallSteps)
}

// Update runs the service's update pipeline under the same admission and
// state rules as Install.
func (c *Controller) Update(ctx context.Context) (<-chan error, error) {
	if c.spec.UpdateSteps == nil {
		return nil, fmt.Errorf("%s: update: %w", c.spec.Name, ErrUnsupported)
	}
	return c.runPipeline(ctx, "update", c.spec.UpdateSteps)
}

func (c *Controller) runPipeline(ctx context.Context, verb string, build func() ([]installer.Step, error)) (<-chan error, error) {
	if err := c.transition(StateIdle, StateInstalling); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		var runErr error
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("%s panicked: %v", verb, r)
			}
			// The machine must never stay stuck in Installing.
			c.setState(StateIdle)
			if runErr != nil {
				metrics.IncrementPipelineFailure(c.spec.Name, verb)
				c.emitAlert("error", fmt.Sprintf("%s %s failed", c.spec.Title, verb), runErr)
			} else {
				c.emitAlert("info", fmt.Sprintf("%s %s complete", c.spec.Title, verb), nil)
			}
			done <- runErr
		}()

		steps, err := build()
		if err != nil {
			runErr = err
			return
		}
		sink := pump.Func(func(line string) { c.emitLog(SourceInstall, line) })
		runErr = installer.Run(ctx, steps, sink)
	}()
	return done, nil
}

// Start validates the install precondition, spawns the service process and
// transitions Idle -> Starting -> Running. The returned channel resolves when
// the process has exited and the controller is back at Idle. A non-zero exit
// is reported through events, not raised as a hard error.
func (c *Controller) Start(ctx context.Context) (<-chan error, error) {
	return c.startFrom(ctx, StateIdle, true)
}

func (c *Controller) startFrom(ctx context.Context, from State, checkInstall bool) (<-chan error, error) {
	if checkInstall && c.spec.CheckInstalled != nil {
		if err := c.spec.CheckInstalled(); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", c.spec.Name, ErrNotInstalled, err)
		}
	}
	if err := c.transition(from, StateStarting); err != nil {
		return nil, err
	}

	argv, dir, err := c.spec.Command()
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("%s: assemble command: %w", c.spec.Name, err)
	}

	proc, err := c.spawn(argv, dir)
	if err != nil {
		c.setState(StateIdle)
		c.emitAlert("error", fmt.Sprintf("failed to start %s", c.spec.Title), err)
		return nil, err
	}

	c.mu.Lock()
	c.proc = proc
	c.state = StateRunning
	c.mu.Unlock()
	metrics.SetServiceState(c.spec.Name, string(StateRunning))
	c.emitState(StateRunning)
	c.emitLog(SourceSystem, fmt.Sprintf("started %s (pid %d)", c.spec.Title, proc.PID()))

	done := make(chan error, 1)
	go c.watch(proc, done)
	go c.announce(proc)
	return done, nil
}

// watch owns the run: it pumps output on a dedicated goroutine, waits for the
// process to exit, and resolves the controller back to Idle unless a stop or
// restart path has already taken ownership of the state.
func (c *Controller) watch(proc process, done chan<- error) {
	var pumpWG sync.WaitGroup
	pumpWG.Add(1)
	go func() {
		defer pumpWG.Done()
		sink := pump.Func(func(line string) { c.emitLog(SourceProcess, line) })
		_ = pump.Run(proc.Output(), sink)
	}()

	// The pump reaching end-of-stream says the output is finished; the exit
	// code still comes from the wait below.
	_ = proc.Wait(context.Background())
	pumpWG.Wait()

	code, _ := proc.ExitCode()
	if code != 0 {
		c.emitWarn(SourceSystem, fmt.Sprintf("[%s exited with code %d]", c.spec.Title, code))
	} else {
		c.emitLog(SourceSystem, fmt.Sprintf("[%s stopped]", c.spec.Title))
	}

	c.mu.Lock()
	owned := c.state == StateRunning && c.proc == proc
	if owned {
		c.proc = nil
		c.state = StateIdle
	}
	c.mu.Unlock()

	if owned {
		metrics.SetServiceState(c.spec.Name, string(StateIdle))
		c.emitState(StateIdle)
		if code != 0 {
			c.emitAlert("error", fmt.Sprintf("%s exited with code %d", c.spec.Title, code), nil)
			done <- fmt.Errorf("%s exited with code %d", c.spec.Name, code)
			return
		}
	}
	done <- nil
}

// announce fires the browser side effect exactly once per start: after the
// settle delay, and once the service's URL answers (or the readiness poll
// times out), unless the process has already died.
func (c *Controller) announce(proc process) {
	if c.spec.URL == "" || c.openURL == nil {
		return
	}
	time.Sleep(c.spec.SettleDelay)
	if c.awaitReady != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.spec.ReadyTimeout)
		_ = c.awaitReady(ctx, c.spec.URL)
		cancel()
	}
	if proc.Exited() {
		return
	}
	if err := c.openURL(c.spec.URL); err != nil {
		c.emitWarn(SourceSystem, fmt.Sprintf("open browser: %v", err))
		return
	}
	c.emitLog(SourceSystem, "opened browser to "+c.spec.URL)
}

// Stop asks for confirmation, then terminates the tracked process tree and
// transitions Running -> Stopping -> Idle. It blocks for up to the grace
// period plus the forced-kill wait, so it must run off the UI thread.
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx, StateRunning, true)
}

func (c *Controller) stop(ctx context.Context, from State, confirm bool) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil {
		return fmt.Errorf("%s: %w", c.spec.Name, ErrNotRunning)
	}
	if proc.Exited() {
		// The process died out-of-band; correct the bookkeeping rather
		// than attempt a termination.
		c.mu.Lock()
		corrected := false
		if c.proc == proc {
			c.proc = nil
			if c.state == StateRunning {
				c.state = StateIdle
				corrected = true
			}
		}
		c.mu.Unlock()
		if corrected {
			metrics.SetServiceState(c.spec.Name, string(StateIdle))
			c.emitState(StateIdle)
		}
		return fmt.Errorf("%s: %w", c.spec.Name, ErrNotRunning)
	}

	if confirm && c.confirm != nil {
		if !c.confirm.Confirm(c.spec.Name, fmt.Sprintf("Stop %s?", c.spec.Title)) {
			return fmt.Errorf("%s: %w", c.spec.Name, ErrDeclined)
		}
	}

	if from == StateRunning {
		if err := c.transition(StateRunning, StateStopping); err != nil {
			return fmt.Errorf("%s: %w", c.spec.Name, ErrNotRunning)
		}
	}
	c.emitLog(SourceSystem, fmt.Sprintf("[stopping %s...]", c.spec.Title))

	termErr := c.terminate(ctx, proc.PID(), c.spec.StopGrace)
	_ = proc.Wait(ctx)

	c.mu.Lock()
	if c.proc == proc {
		c.proc = nil
	}
	if from == StateRunning {
		c.state = StateIdle
	}
	c.mu.Unlock()
	if from == StateRunning {
		metrics.SetServiceState(c.spec.Name, string(StateIdle))
		c.emitState(StateIdle)
	}
	return termErr
}

// Restart is stop-without-confirmation followed by start, sequenced on one
// goroutine so the two phases never interleave: Start is not attempted until
// the termination wait has completed.
func (c *Controller) Restart(ctx context.Context) (<-chan error, error) {
	if err := c.transition(StateRunning, StateRestarting); err != nil {
		return nil, err
	}
	metrics.IncrementRestart(c.spec.Name)

	done := make(chan error, 1)
	go func() {
		var runErr error
		forcedIdle := true
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("restart panicked: %v", r)
			}
			if runErr != nil {
				if forcedIdle {
					c.setState(StateIdle)
				}
				c.emitAlert("error", fmt.Sprintf("%s restart failed", c.spec.Title), runErr)
				done <- runErr
			}
		}()

		c.emitLog(SourceSystem, fmt.Sprintf("[restarting %s...]", c.spec.Title))
		if err := c.stop(ctx, StateRestarting, false); err != nil && !IsPrecondition(err) {
			runErr = err
			return
		}

		inner, err := c.startFrom(ctx, StateRestarting, false)
		if err != nil {
			runErr = err
			forcedIdle = false
			return
		}
		go func() { done <- <-inner }()
	}()
	return done, nil
}

// IsPrecondition reports whether err belongs to the synchronously-rejected
// error class (busy, not installed, nothing to stop, declined).
func IsPrecondition(err error) bool {
	for _, sentinel := range []error{ErrBusy, ErrNotInstalled, ErrNotRunning, ErrDeclined, ErrUnsupported} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// transition performs the admission check and the state change atomically.
func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	if c.state != from {
		cur := c.state
		c.mu.Unlock()
		if cur.Working() {
			return fmt.Errorf("%s is %s: %w", c.spec.Name, cur, ErrBusy)
		}
		return fmt.Errorf("%s is %s, want %s: %w", c.spec.Name, cur, from, ErrBusy)
	}
	c.state = to
	c.mu.Unlock()
	metrics.SetServiceState(c.spec.Name, string(to))
	c.emitState(to)
	return nil
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()
	if changed {
		metrics.SetServiceState(c.spec.Name, string(state))
		c.emitState(state)
	}
}
