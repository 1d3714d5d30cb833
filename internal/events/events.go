// Package events is an in-process publish/subscribe bus for workflow outcomes.
package events

import (
	"context"
	"fmt"
	"sync"

	console "sitepilot/internal/utils/logger"
)

var log = console.New("EVENTS")

// EditResult is published when a queued page edit finishes.
const EditResult = "edit.result"

// EditResultPayload reports the outcome of one queued edit to its session room.
type EditResultPayload struct {
	Room    string `json:"room"`
	EditID  string `json:"editId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ResultPublisher delivers edit outcomes to whichever process holds the session's sockets.
type ResultPublisher interface {
	PublishEditResult(ctx context.Context, result EditResultPayload) error
}

type EventHandler func(interface{})

type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

var defaultBus = NewEventBus()

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers a handler for an event
func (bus *EventBus) On(event string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[event] = append(bus.handlers[event], handler)
	log.Debug("Registered handler for event: %s", event)
}

// Emit triggers an event with the given data. Handlers run on their own goroutines.
func (bus *EventBus) Emit(event string, data interface{}) {
	bus.mu.RLock()
	handlers := append([]EventHandler(nil), bus.handlers[event]...)
	bus.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	log.Debug("Emitting event: %s", event)

	for _, handler := range handlers {
		bus.wg.Add(1)
		go func(h EventHandler) {
			defer bus.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					_ = log.Error("Panic in event handler for "+event, fmt.Errorf("panic: %v", r))
				}
			}()
			h(data)
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (bus *EventBus) Wait() {
	bus.wg.Wait()
}

// PublishEditResult emits result on this bus only. It serves single-process deployments.
func (bus *EventBus) PublishEditResult(_ context.Context, result EditResultPayload) error {
	bus.Emit(EditResult, result)
	return nil
}

// On Global event functions that use the default event bus
func On(event string, handler EventHandler) {
	defaultBus.On(event, handler)
}

func Emit(event string, data interface{}) {
	defaultBus.Emit(event, data)
}

// Default returns the process-wide bus.
func Default() *EventBus {
	return defaultBus
}
