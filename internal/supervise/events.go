package supervise

import (
	"time"
)

// EventType captures the high level notifications emitted by controllers.
type EventType string

const (
	// EventTypeState announces a lifecycle transition. Consumers derive
	// trigger enablement (which buttons/keys are live) from these.
	EventTypeState EventType = "state"
	// EventTypeLog carries one line of service or pipeline output.
	EventTypeLog EventType = "log"
	// EventTypeAlert is an operation-ending summary suitable for a modal
	// dialog: success or failure of an install, an unexpected error, a
	// non-zero exit.
	EventTypeAlert EventType = "alert"
)

// Log sources mirror where a line originated.
const (
	SourceProcess = "process"
	SourceInstall = "install"
	SourceSystem  = "system"
)

// Event is a single notification published by a Controller. The UI layer is
// the only consumer; the core never reads its own events back.
type Event struct {
	Timestamp time.Time
	Service   string
	Type      EventType
	State     State
	Message   string
	Level     string
	Source    string
	Err       error
}

func (c *Controller) emitState(state State) {
	c.emit(Event{
		Type:    EventTypeState,
		State:   state,
		Message: "service " + string(state),
		Level:   "info",
		Source:  SourceSystem,
	})
}

func (c *Controller) emitLog(source, line string) {
	c.emit(Event{Type: EventTypeLog, Message: line, Level: "info", Source: source})
}

func (c *Controller) emitWarn(source, line string) {
	c.emit(Event{Type: EventTypeLog, Message: line, Level: "warn", Source: source})
}

func (c *Controller) emitAlert(level, message string, err error) {
	c.emit(Event{Type: EventTypeAlert, Message: message, Level: level, Source: SourceSystem, Err: err})
}

func (c *Controller) emit(evt Event) {
	if c.events == nil {
		return
	}
	evt.Timestamp = time.Now()
	evt.Service = c.spec.Name
	c.events <- evt
}
