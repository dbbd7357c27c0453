package engine

import "sync"

// Event is a multi-cast event with no payload.
type Event struct {
	mu        sync.Mutex
	listeners []func()
}

// AddListener adds a callback to be invoked when the event fires
func (e *Event) AddListener(callback func()) {
	if callback == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, callback)
	e.mu.Unlock()
}

// RemoveAllListeners clears all listeners
func (e *Event) RemoveAllListeners() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

// Invoke calls all registered listeners. Listeners may add listeners or
// clear the event; changes apply to the next Invoke.
func (e *Event) Invoke() {
	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()
	for _, listener := range listeners {
		listener()
	}
}

func (e *Event) GetListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// EventWithArg is a generic event with one argument
type EventWithArg[T any] struct {
	mu        sync.Mutex
	listeners []func(T)
}

func (e *EventWithArg[T]) AddListener(callback func(T)) {
	if callback == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, callback)
	e.mu.Unlock()
}

func (e *EventWithArg[T]) RemoveAllListeners() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

func (e *EventWithArg[T]) Invoke(arg T) {
	e.mu.Lock()
	listeners := e.listeners
	e.mu.Unlock()
	for _, listener := range listeners {
		listener(arg)
	}
}

func (e *EventWithArg[T]) GetListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
