// Package events publishes attribute lifecycle notifications.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"product-attribute-service/internal/logger"
)

// Event names.
const (
	AttributeCreated = "attribute.created"
	AttributeUpdated = "attribute.updated"
	AttributeDeleted = "attribute.deleted"
)

// Event carries the affected ids. Count always equals len(IDs).
type Event struct {
	Name  string   `json:"name"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// New builds an event for ids.
func New(name string, ids []string) Event {
	return Event{Name: name, IDs: append([]string(nil), ids...), Count: len(ids)}
}

// Emitter delivers events. Emission is a side effect and is never undone.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogEmitter writes each event as a structured log line.
type LogEmitter struct {
	log *zap.Logger
}

func NewLogEmitter(log *zap.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) error {
	l := e.log
	if l == nil {
		l = logger.FromContext(ctx)
	}
	l.Info("event emitted",
		zap.String("event", event.Name),
		zap.Strings("ids", event.IDs),
		zap.Int("count", event.Count),
	)
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned by Emit after recording.
	Err error
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
