package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/tasktrack/internal/events"
)

// EventLogger persists bus events to JSONL audit files, one file per run.
type EventLogger struct {
	dir         string
	bus         *events.Bus
	unsubscribe func()

	mu     sync.Mutex // serializes file appends
	errors int
}

// NewEventLogger creates an EventLogger that subscribes to the given event
// types (all events when none are given) and writes them as JSONL to dir.
func NewEventLogger(dir string, bus *events.Bus, eventTypes ...events.EventType) *EventLogger {
	el := &EventLogger{
		dir: dir,
		bus: bus,
	}
	el.unsubscribe = bus.Subscribe(el.handleEvent, eventTypes...)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

// Errors returns the number of events that could not be written.
func (el *EventLogger) Errors() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.errors
}

func (el *EventLogger) handleEvent(e events.Event) {
	el.mu.Lock()
	defer el.mu.Unlock()

	if err := el.writeEvent(e); err != nil {
		el.errors++
	}
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := el.LogPath(e.RunID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// LogPath returns the audit file for runID.
func (el *EventLogger) LogPath(runID string) string {
	if runID == "" {
		return filepath.Join(el.dir, "_global.jsonl")
	}
	return filepath.Join(el.dir, runID+".jsonl")
}
