// Package logmux fans in notification streams from multiple service
// controllers and delivers them to a single consumer over a bounded channel.
package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/thenullengine/ailab/internal/supervise"
)

// Mux merges controller event channels. State changes and alerts are always
// delivered, blocking if necessary; log
// lines are dropped under backpressure and summarized with a synthesized
// warning so the consumer learns how many lines it missed.
type Mux struct {
	out chan supervise.Event

	mu     sync.Mutex
	drops  map[string]int
	inputs sync.WaitGroup
}

// New constructs a mux with an output buffer of the provided size.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan supervise.Event, size),
		drops: make(map[string]int),
	}
}

// Output exposes the merged event channel. It is closed by Close once every
// source has drained.
func (m *Mux) Output() <-chan supervise.Event {
	return m.out
}

// Add registers a source channel. The mux consumes it until it is closed.
func (m *Mux) Add(source <-chan supervise.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			m.deliver(evt)
		}
	}()
}

// Close waits for all sources to drain, flushes pending drop summaries, and
// closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	for service, count := range m.takeAllDrops() {
		m.out <- dropEvent(service, count)
	}
	close(m.out)
}

func (m *Mux) deliver(evt supervise.Event) {
	if evt.Type != supervise.EventTypeLog {
		m.flush(evt.Service)
		m.out <- evt
		return
	}
	if !m.flush(evt.Service) {
		m.recordDrop(evt.Service, 1)
		return
	}
	select {
	case m.out <- evt:
	default:
		m.recordDrop(evt.Service, 1)
	}
}

// flush tries to emit any pending drop summary for the service ahead of the
// next line so ordering stays honest. It reports whether the output has room.
func (m *Mux) flush(service string) bool {
	count := m.takeDrops(service)
	if count == 0 {
		return true
	}
	select {
	case m.out <- dropEvent(service, count):
		return true
	default:
		m.recordDrop(service, count)
		return false
	}
}

func (m *Mux) recordDrop(service string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[service] += count
}

func (m *Mux) takeDrops(service string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.drops[service]
	if count != 0 {
		delete(m.drops, service)
	}
	return count
}

func (m *Mux) takeAllDrops() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.drops) == 0 {
		return nil
	}
	pending := m.drops
	m.drops = make(map[string]int)
	return pending
}

func dropEvent(service string, count int) supervise.Event {
	return supervise.Event{
		Timestamp: time.Now(),
		Service:   service,
		Type:      supervise.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    supervise.SourceSystem,
	}
}
