// Package tui is the interactive terminal interface: a service table, a log
// pane and single-key triggers for the controller operations.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thenullengine/ailab/internal/supervise"
)

const (
	tableTitle      = "Services"
	logsTitle       = "Logs"
	modalPageName   = "modal"
	defaultLogLines = 500
	helpLine        = "[i]nstall  [u]pdate  [s]tart  [x]stop  [r]estart  [b]rowser  [q]uit"
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the number of log lines retained per service.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// WithBrowserOpener sets the opener behind the [b] key.
func WithBrowserOpener(open func(url string) error) Option {
	return func(u *UI) { u.openURL = open }
}

// UI drives the tview application. Controller operations run on their own
// goroutines; every widget mutation goes through QueueUpdateDraw.
type UI struct {
	app      *tview.Application
	pages    *tview.Pages
	table    *tview.Table
	logs     *tview.TextView
	registry *supervise.Registry
	events   <-chan supervise.Event
	openURL  func(url string) error

	services map[string]*serviceState
	order    []string
	selected string
	maxLogs  int

	mu sync.RWMutex

	opCtx    context.Context
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

type serviceState struct {
	name      string
	title     string
	state     supervise.State
	pid       int
	installed bool
	message   string

	logs []string
}

// New constructs a UI over the given registry, consuming the merged event
// stream.
func New(registry *supervise.Registry, events <-chan supervise.Event, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)

	help := tview.NewTextView().SetTextAlign(tview.AlignCenter)
	help.SetText(helpLine)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 2, true).
		AddItem(logs, 0, 3, false).
		AddItem(help, 1, 0, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := &UI{
		app:      app,
		pages:    pages,
		table:    table,
		logs:     logs,
		registry: registry,
		events:   events,
		services: make(map[string]*serviceState),
		maxLogs:  defaultLogLines,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	for _, name := range registry.Names() {
		ctrl, err := registry.Get(name)
		if err != nil {
			continue
		}
		ui.order = append(ui.order, name)
		ui.services[name] = &serviceState{
			name:      name,
			title:     ctrl.Title(),
			state:     supervise.StateIdle,
			installed: ctrl.Installed(),
		}
	}
	if len(ui.order) > 0 {
		ui.selected = ui.order[0]
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.renderLogsLocked()
	ui.mu.Unlock()

	return ui
}

// Done is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the application loop and consumes events until the context is
// cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	u.opCtx = ctx

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

// Confirm shows a yes/no modal and blocks the calling goroutine until the
// user answers. Satisfies supervise.Confirmer; never call it from the UI
// thread.
func (u *UI) Confirm(service, question string) bool {
	answer := make(chan bool, 1)
	u.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(question).
			AddButtons([]string{"Yes", "No"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				u.pages.RemovePage(modalPageName)
				u.app.SetFocus(u.table)
				answer <- buttonLabel == "Yes"
			})
		u.pages.AddPage(modalPageName, modal, true, true)
	})
	select {
	case v := <-answer:
		return v
	case <-u.done:
		return false
	}
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			u.applyEvent(evt)
		case <-ticker.C:
			u.refreshRuntime()
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'i', 'I':
			u.dispatch("install", func(c *supervise.Controller) error {
				_, err := c.Install(u.opCtx)
				return err
			})
			return nil
		case 'u', 'U':
			u.dispatch("update", func(c *supervise.Controller) error {
				_, err := c.Update(u.opCtx)
				return err
			})
			return nil
		case 's', 'S':
			u.dispatch("start", func(c *supervise.Controller) error {
				_, err := c.Start(u.opCtx)
				return err
			})
			return nil
		case 'x', 'X':
			u.dispatch("stop", func(c *supervise.Controller) error {
				return c.Stop(u.opCtx)
			})
			return nil
		case 'r', 'R':
			u.dispatch("restart", func(c *supervise.Controller) error {
				_, err := c.Restart(u.opCtx)
				return err
			})
			return nil
		case 'b', 'B':
			u.openSelected()
			return nil
		}
	}
	return event
}

// dispatch runs a controller operation off the UI thread. Admission errors
// come back immediately and surface as a modal; everything after admission
// arrives through the event stream.
func (u *UI) dispatch(verb string, op func(*supervise.Controller) error) {
	u.mu.RLock()
	name := u.selected
	u.mu.RUnlock()
	if name == "" {
		return
	}
	ctrl, err := u.registry.Get(name)
	if err != nil {
		u.showMessage(err.Error())
		return
	}
	go func() {
		err := op(ctrl)
		if err == nil || errors.Is(err, supervise.ErrDeclined) {
			return
		}
		u.showMessage(fmt.Sprintf("%s %s: %v", verb, name, err))
	}()
}

func (u *UI) openSelected() {
	u.mu.RLock()
	name := u.selected
	u.mu.RUnlock()
	if name == "" || u.openURL == nil {
		return
	}
	ctrl, err := u.registry.Get(name)
	if err != nil || ctrl.URL() == "" {
		return
	}
	url := ctrl.URL()
	go func() {
		if err := u.openURL(url); err != nil {
			u.showMessage(fmt.Sprintf("open %s: %v", url, err))
		}
	}()
}

func (u *UI) showMessage(message string) {
	u.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(message).
			AddButtons([]string{"OK"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				u.pages.RemovePage(modalPageName)
				u.app.SetFocus(u.table)
			})
		u.pages.RemovePage(modalPageName)
		u.pages.AddPage(modalPageName, modal, true, true)
	})
}

func (u *UI) toggleFocus() {
	if u.logs.HasFocus() {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
}

func (u *UI) applyEvent(evt supervise.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	u.mu.Lock()
	state := u.services[evt.Service]
	if state == nil {
		u.mu.Unlock()
		return
	}

	var alert string
	switch evt.Type {
	case supervise.EventTypeState:
		state.state = evt.State
		if ctrl, err := u.registry.Get(evt.Service); err == nil {
			st := ctrl.Status()
			state.pid = st.PID
			state.installed = ctrl.Installed()
		}
	case supervise.EventTypeAlert:
		state.message = evt.Message
		if evt.Err != nil {
			alert = fmt.Sprintf("%s: %s\n\n%v", state.title, evt.Message, evt.Err)
		} else {
			alert = fmt.Sprintf("%s: %s", state.title, evt.Message)
		}
		state.logs = u.appendLog(state.logs, evt)
	case supervise.EventTypeLog:
		state.logs = u.appendLog(state.logs, evt)
	}

	selected := state.name == u.selected
	u.mu.Unlock()

	if alert != "" {
		u.showMessage(alert)
	}
	u.queueRefresh(selected)
}

func (u *UI) appendLog(lines []string, evt supervise.Event) []string {
	line := fmt.Sprintf("%s [%s] %s",
		evt.Timestamp.Format("15:04:05"), evt.Source, evt.Message)
	lines = append(lines, line)
	if len(lines) > u.maxLogs {
		trim := len(lines) - u.maxLogs
		lines = append([]string(nil), lines[trim:]...)
	}
	return lines
}

// refreshRuntime re-reads PIDs and install markers on a timer so the table
// stays honest even without events.
func (u *UI) refreshRuntime() {
	u.mu.Lock()
	for _, name := range u.order {
		ctrl, err := u.registry.Get(name)
		if err != nil {
			continue
		}
		st := ctrl.Status()
		state := u.services[name]
		state.state = st.State
		state.pid = st.PID
		state.installed = ctrl.Installed()
	}
	u.mu.Unlock()
	u.queueRefresh(false)
}

func (u *UI) queueRefresh(updateLogs bool) {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		if updateLogs {
			u.renderLogsLocked()
		}
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"SERVICE", "TITLE", "STATE", "INSTALLED", "PID", "MESSAGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	for row, name := range u.order {
		state := u.services[name]
		installed := "no"
		if state.installed {
			installed = "yes"
		}
		pid := "-"
		if state.pid != 0 {
			pid = fmt.Sprintf("%d", state.pid)
		}
		message := state.message
		if len(message) > 60 {
			message = message[:57] + "..."
		}

		values := []string{
			name,
			state.title,
			stateLabel(state.state),
			installed,
			pid,
			message,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 2 {
				cell = cell.SetTextColor(stateColor(state.state))
			}
			u.table.SetCell(row+1, col, cell)
		}
	}

	u.ensureSelectionLocked()
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	var state *serviceState
	if u.selected != "" {
		state = u.services[u.selected]
	}
	if state == nil {
		u.logs.SetTitle(logsTitle)
		return
	}

	u.logs.SetTitle(fmt.Sprintf("%s (%s)", logsTitle, state.title))
	for _, line := range state.logs {
		fmt.Fprintln(u.logs, tview.Escape(line))
	}
	u.logs.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked() {
	if len(u.order) == 0 {
		u.selected = ""
		u.table.Select(0, 0)
		return
	}
	idx := 0
	for i, name := range u.order {
		if name == u.selected {
			idx = i
			break
		}
	}
	if u.selected == "" {
		u.selected = u.order[0]
	}
	u.table.Select(idx+1, 0)
}

func (u *UI) syncSelection(row int) {
	if row <= 0 || row-1 >= len(u.order) {
		return
	}
	u.selected = u.order[row-1]
}

func stateLabel(s supervise.State) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func stateColor(s supervise.State) tcell.Color {
	switch s {
	case supervise.StateRunning:
		return tcell.ColorGreen
	case supervise.StateInstalling, supervise.StateStarting, supervise.StateStopping, supervise.StateRestarting:
		return tcell.ColorYellow
	default:
		return tcell.ColorDefault
	}
}
