package conn

import (
	"log/slog"
	"sync"
	"time"
)

// Connected is emitted after a successful connect.
type Connected struct {
	At time.Time
}

// Disconnected is emitted after an explicit disconnect.
type Disconnected struct {
	At time.Time
}

// Error is emitted when the connection exhausts its attempt budget and
// enters StateFailed.
type Error struct {
	Cause error
}

// emitter holds observer lists and notifies them best-effort: a panicking
// handler is logged and does not block the remaining handlers.
type emitter struct {
	mu           sync.Mutex
	onConnect    []func(Connected)
	onDisconnect []func(Disconnected)
	onError      []func(Error)
	logger       *slog.Logger
}

func (e *emitter) addConnect(fn func(Connected)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConnect = append(e.onConnect, fn)
}

func (e *emitter) addDisconnect(fn func(Disconnected)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = append(e.onDisconnect, fn)
}

func (e *emitter) addError(fn func(Error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = append(e.onError, fn)
}

func (e *emitter) emitConnected(ev Connected) {
	e.mu.Lock()
	handlers := append([]func(Connected){}, e.onConnect...)
	e.mu.Unlock()
	for _, fn := range handlers {
		e.safely(func() { fn(ev) })
	}
}

func (e *emitter) emitDisconnected(ev Disconnected) {
	e.mu.Lock()
	handlers := append([]func(Disconnected){}, e.onDisconnect...)
	e.mu.Unlock()
	for _, fn := range handlers {
		e.safely(func() { fn(ev) })
	}
}

func (e *emitter) emitError(ev Error) {
	e.mu.Lock()
	handlers := append([]func(Error){}, e.onError...)
	e.mu.Unlock()
	for _, fn := range handlers {
		e.safely(func() { fn(ev) })
	}
}

func (e *emitter) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("connection event handler panicked", "panic", r)
		}
	}()
	fn()
}
